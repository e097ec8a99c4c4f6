// Package google reads and writes a Google Calendar through its REST API.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/oauth2"

	"github.com/hrygo/selfcare/plugin/ai/timeout"
	"github.com/hrygo/selfcare/server/service/schedule"
)

const (
	// DefaultBaseURL is the Calendar API v3 root.
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

	// Scope grants read and write access to calendars.
	Scope = "https://www.googleapis.com/auth/calendar"

	// DefaultReminderMinutes is the popup reminder lead time on created events.
	DefaultReminderMinutes = 10

	maxPages        = 50
	maxErrorBodyLen = 500
)

// Endpoint is Google's OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Config holds the credentials of an installed-app OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// Optional overrides.
	BaseURL         string
	TokenURL        string
	ReminderMinutes int
}

// Calendar is a BusyIntervalSource and EventCreator for Google Calendar.
type Calendar struct {
	baseURL         string
	client          *http.Client
	home            *time.Location
	markdown        goldmark.Markdown
	reminderMinutes int
}

// NewCalendar creates a calendar whose requests are authorized with an access
// token refreshed from cfg.RefreshToken. ctx governs token refreshes and
// should outlive individual requests.
func NewCalendar(ctx context.Context, cfg Config, home *time.Location) *Calendar {
	endpoint := Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{Scope},
	}
	if _, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); !ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout.HTTPClientTimeout})
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = timeout.HTTPClientTimeout
	return NewCalendarWithClient(cfg.BaseURL, client, home, cfg.ReminderMinutes)
}

// NewCalendarWithClient creates a calendar over an already authorized client.
func NewCalendarWithClient(baseURL string, client *http.Client, home *time.Location, reminderMinutes int) *Calendar {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if home == nil {
		home = time.UTC
	}
	if reminderMinutes <= 0 {
		reminderMinutes = DefaultReminderMinutes
	}
	return &Calendar{
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          client,
		home:            home,
		markdown:        goldmark.New(),
		reminderMinutes: reminderMinutes,
	}
}

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type event struct {
	ID           string    `json:"id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Description  string    `json:"description,omitempty"`
	Transparency string    `json:"transparency,omitempty"`
	HTMLLink     string    `json:"htmlLink,omitempty"`
	Start        eventTime `json:"start"`
	End          eventTime `json:"end"`
	Reminders    *struct {
		UseDefault bool       `json:"useDefault"`
		Overrides  []reminder `json:"overrides"`
	} `json:"reminders,omitempty"`
}

type reminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type eventList struct {
	Items         []event `json:"items"`
	NextPageToken string  `json:"nextPageToken"`
}

// FetchBusy lists the events of calendarID between start and end, expanding
// recurring events. Cancelled and transparent events are skipped.
func (c *Calendar) FetchBusy(ctx context.Context, calendarID string, start, end time.Time) ([]schedule.BusyInterval, error) {
	fail := func(err error) error {
		return &schedule.ExternalFetchError{CalendarID: calendarID, Cause: err}
	}

	busy := make([]schedule.BusyInterval, 0)
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("timeMin", start.Format(time.RFC3339))
		params.Set("timeMax", end.Format(time.RFC3339))
		params.Set("singleEvents", "true")
		params.Set("orderBy", "startTime")
		params.Set("maxResults", "250")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var list eventList
		if err := c.do(ctx, http.MethodGet, c.eventsURL(calendarID)+"?"+params.Encode(), nil, &list); err != nil {
			return nil, fail(fmt.Errorf("list events: %w", err))
		}
		for _, e := range list.Items {
			b, ok, err := c.busyInterval(e)
			if err != nil {
				slog.Debug("skipping unreadable google event", "event_id", e.ID, "error", err)
				continue
			}
			if ok {
				busy = append(busy, b)
			}
		}
		if list.NextPageToken == "" {
			return busy, nil
		}
		pageToken = list.NextPageToken
	}
	slog.Warn("google event listing truncated", "calendar_id", calendarID, "pages", maxPages)
	return busy, nil
}

// CreateEvent inserts a timed event with a popup reminder. The description
// is rendered from Markdown to HTML.
func (c *Calendar) CreateEvent(ctx context.Context, req *schedule.CreateEventRequest) (*schedule.CreatedEvent, error) {
	tz := req.Timezone
	if tz == "" {
		tz = c.home.String()
	}
	description, err := c.renderDescription(req.Description)
	if err != nil {
		return nil, err
	}

	body := event{
		Summary:     req.Title,
		Description: description,
		Start:       eventTime{DateTime: req.Interval.Start.Format(time.RFC3339), TimeZone: tz},
		End:         eventTime{DateTime: req.Interval.End.Format(time.RFC3339), TimeZone: tz},
	}
	body.Reminders = &struct {
		UseDefault bool       `json:"useDefault"`
		Overrides  []reminder `json:"overrides"`
	}{
		Overrides: []reminder{{Method: "popup", Minutes: c.reminderMinutes}},
	}

	var created event
	if err := c.do(ctx, http.MethodPost, c.eventsURL(req.CalendarID), body, &created); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &schedule.CreatedEvent{
		ID:       created.ID,
		Link:     created.HTMLLink,
		Interval: req.Interval,
	}, nil
}

func (c *Calendar) renderDescription(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render description: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (c *Calendar) busyInterval(e event) (schedule.BusyInterval, bool, error) {
	if e.Status == "cancelled" || e.Transparency == "transparent" {
		return schedule.BusyInterval{}, false, nil
	}
	start, allDay, err := c.parseEventTime(e.Start)
	if err != nil {
		return schedule.BusyInterval{}, false, err
	}
	end, _, err := c.parseEventTime(e.End)
	if err != nil {
		return schedule.BusyInterval{}, false, err
	}
	if !end.After(start) {
		return schedule.BusyInterval{}, false, nil
	}
	return schedule.BusyInterval{
		Interval: schedule.Interval{Start: start, End: end},
		Title:    e.Summary,
		AllDay:   allDay,
	}, true, nil
}

// parseEventTime reads a dateTime, or a date for all-day events.
func (c *Calendar) parseEventTime(t eventTime) (time.Time, bool, error) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false, err
		}
		return parsed.In(c.home), false, nil
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, t.Date, c.home)
		return parsed, true, err
	}
	return time.Time{}, false, fmt.Errorf("event time has neither dateTime nor date")
}

func (c *Calendar) eventsURL(calendarID string) string {
	return fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
}

func (c *Calendar) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBodyLen {
			data = data[:maxErrorBodyLen]
		}
		return fmt.Errorf("calendar API error %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
