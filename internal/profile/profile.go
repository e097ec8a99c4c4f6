package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Calendar providers.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderICS    = "ics"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where selfcare stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Scheduling configuration
	HomeTimezone     string        // SELFCARE_HOME_TIMEZONE (default: America/Los_Angeles)
	CalendarProvider string        // SELFCARE_CALENDAR_PROVIDER (default: local)
	CalendarID       string        // SELFCARE_CALENDAR_ID (default: primary)
	FetchTimeout     time.Duration // SELFCARE_FETCH_TIMEOUT (default: 5s)
	SearchWindowDays int           // SELFCARE_SEARCH_WINDOW_DAYS (default: 7)
	SearchLeadTime   time.Duration // SELFCARE_SEARCH_LEAD_TIME (default: 1h)
	ConflictPadding  time.Duration // SELFCARE_CONFLICT_PADDING (default: 1h)
	SlotFilter       string        // SELFCARE_SLOT_FILTER (CEL expression, optional)
	HistoryLimit     int           // SELFCARE_HISTORY_LIMIT (default: 50)

	// Google Calendar
	GoogleClientID     string // SELFCARE_GOOGLE_CLIENT_ID
	GoogleClientSecret string // SELFCARE_GOOGLE_CLIENT_SECRET
	GoogleRefreshToken string // SELFCARE_GOOGLE_REFRESH_TOKEN
	GoogleBaseURL      string // SELFCARE_GOOGLE_BASE_URL (default: https://www.googleapis.com/calendar/v3)

	// ICS feeds, comma separated in SELFCARE_ICS_FEEDS
	ICSFeeds []string

	// API rate limiting
	RateLimitPerSecond float64 // SELFCARE_RATE_LIMIT (default: 10)
	RateLimitBurst     int     // SELFCARE_RATE_LIMIT_BURST (default: 20)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// HomeLocation loads the configured home timezone.
func (p *Profile) HomeLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(p.HomeTimezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid home timezone %q", p.HomeTimezone)
	}
	return loc, nil
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
// Fields already set by the caller (flags, config file) are kept.
func (p *Profile) FromEnv() {
	setString := func(field *string, key, defaultValue string) {
		if *field != "" {
			return
		}
		*field = getEnvOrDefault(key, defaultValue)
	}
	setDuration := func(field *time.Duration, key string, defaultValue time.Duration) {
		if *field != 0 {
			return
		}
		*field = defaultValue
		if raw := os.Getenv(key); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				slog.Warn("ignoring invalid duration", slog.String("key", key), slog.String("value", raw))
				return
			}
			*field = d
		}
	}
	setInt := func(field *int, key string, defaultValue int) {
		if *field != 0 {
			return
		}
		*field = defaultValue
		if raw := os.Getenv(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				slog.Warn("ignoring invalid integer", slog.String("key", key), slog.String("value", raw))
				return
			}
			*field = n
		}
	}

	setString(&p.Mode, "SELFCARE_MODE", "dev")
	setString(&p.Addr, "SELFCARE_ADDR", "")
	setInt(&p.Port, "SELFCARE_PORT", 8081)
	setString(&p.Data, "SELFCARE_DATA", "")
	setString(&p.Driver, "SELFCARE_DRIVER", "sqlite")
	setString(&p.DSN, "SELFCARE_DSN", "")

	setString(&p.HomeTimezone, "SELFCARE_HOME_TIMEZONE", "America/Los_Angeles")
	setString(&p.CalendarProvider, "SELFCARE_CALENDAR_PROVIDER", ProviderLocal)
	setString(&p.CalendarID, "SELFCARE_CALENDAR_ID", "primary")
	setDuration(&p.FetchTimeout, "SELFCARE_FETCH_TIMEOUT", 5*time.Second)
	setInt(&p.SearchWindowDays, "SELFCARE_SEARCH_WINDOW_DAYS", 7)
	setDuration(&p.SearchLeadTime, "SELFCARE_SEARCH_LEAD_TIME", time.Hour)
	setDuration(&p.ConflictPadding, "SELFCARE_CONFLICT_PADDING", time.Hour)
	setString(&p.SlotFilter, "SELFCARE_SLOT_FILTER", "")
	setInt(&p.HistoryLimit, "SELFCARE_HISTORY_LIMIT", 50)

	setString(&p.GoogleClientID, "SELFCARE_GOOGLE_CLIENT_ID", "")
	setString(&p.GoogleClientSecret, "SELFCARE_GOOGLE_CLIENT_SECRET", "")
	setString(&p.GoogleRefreshToken, "SELFCARE_GOOGLE_REFRESH_TOKEN", "")
	setString(&p.GoogleBaseURL, "SELFCARE_GOOGLE_BASE_URL", "https://www.googleapis.com/calendar/v3")

	if len(p.ICSFeeds) == 0 {
		p.ICSFeeds = splitList(os.Getenv("SELFCARE_ICS_FEEDS"))
	}

	if p.RateLimitPerSecond == 0 {
		p.RateLimitPerSecond = 10
		if raw := os.Getenv("SELFCARE_RATE_LIMIT"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				p.RateLimitPerSecond = v
			}
		}
	}
	setInt(&p.RateLimitBurst, "SELFCARE_RATE_LIMIT_BURST", 20)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if _, err := p.HomeLocation(); err != nil {
		return err
	}

	switch p.CalendarProvider {
	case ProviderLocal:
	case ProviderGoogle:
		if p.GoogleClientID == "" || p.GoogleRefreshToken == "" {
			return errors.New("google calendar provider requires client id and refresh token")
		}
	case ProviderICS:
		if len(p.ICSFeeds) == 0 {
			return errors.New("ics calendar provider requires at least one feed url")
		}
	default:
		return errors.Errorf("unknown calendar provider %q", p.CalendarProvider)
	}

	if p.FetchTimeout <= 0 || p.SearchLeadTime < 0 || p.ConflictPadding < 0 {
		return errors.New("fetch timeout must be positive and paddings non-negative")
	}
	if p.SearchWindowDays <= 0 {
		return errors.Errorf("search window must be at least one day, got %d", p.SearchWindowDays)
	}
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = 50
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "selfcare")
		} else {
			p.Data = "/var/opt/selfcare"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}
	if _, err := os.Stat(p.Data); os.IsNotExist(err) {
		if err := os.MkdirAll(p.Data, 0770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("selfcare_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
