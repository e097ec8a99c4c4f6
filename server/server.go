package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/selfcare/internal/profile"
	"github.com/hrygo/selfcare/plugin/ai/timeout"
	"github.com/hrygo/selfcare/plugin/calendar/google"
	"github.com/hrygo/selfcare/plugin/calendar/ics"
	"github.com/hrygo/selfcare/plugin/calendar/local"
	apiv1 "github.com/hrygo/selfcare/server/router/api/v1"
	"github.com/hrygo/selfcare/server/service/schedule"
	"github.com/hrygo/selfcare/store"
)

type Server struct {
	Profile      *profile.Profile
	Store        *store.Store
	Orchestrator *schedule.Orchestrator

	echoServer *echo.Echo
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	orchestrator, err := NewOrchestrator(ctx, profile, store)
	if err != nil {
		return nil, err
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())

	s := &Server{
		Profile:      profile,
		Store:        store,
		Orchestrator: orchestrator,
		echoServer:   echoServer,
	}

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	apiv1.NewAPIV1Service(profile, store, orchestrator).RegisterRoutes(echoServer)
	return s, nil
}

// NewOrchestrator builds the scheduling orchestrator for the configured
// calendar provider.
func NewOrchestrator(ctx context.Context, p *profile.Profile, store *store.Store) (*schedule.Orchestrator, error) {
	home, err := p.HomeLocation()
	if err != nil {
		return nil, err
	}
	filter, err := schedule.NewSlotFilter(p.SlotFilter, home)
	if err != nil {
		return nil, errors.Wrap(err, "invalid slot filter")
	}

	cfg := schedule.DefaultConfig(home)
	cfg.CalendarID = p.CalendarID
	cfg.SearchWindow = time.Duration(p.SearchWindowDays) * 24 * time.Hour
	cfg.SearchLeadTime = p.SearchLeadTime
	cfg.ConflictPadding = p.ConflictPadding
	cfg.FetchTimeout = p.FetchTimeout
	cfg.Filter = filter

	localCalendar := local.NewCalendar(store, home)
	var source schedule.BusyIntervalSource
	var creator schedule.EventCreator
	switch p.CalendarProvider {
	case "", profile.ProviderLocal:
		source, creator = localCalendar, localCalendar
	case profile.ProviderGoogle:
		cal := google.NewCalendar(ctx, google.Config{
			ClientID:     p.GoogleClientID,
			ClientSecret: p.GoogleClientSecret,
			RefreshToken: p.GoogleRefreshToken,
			BaseURL:      p.GoogleBaseURL,
		}, home)
		source, creator = cal, cal
	case profile.ProviderICS:
		// Feeds are read-only; bookings land in the local store and are
		// published through the bookings.ics export.
		feeds := ics.NewSource(p.ICSFeeds, &http.Client{Timeout: timeout.HTTPClientTimeout}, home)
		source = schedule.NewMultiSource(feeds, localCalendar)
		creator = localCalendar
	default:
		return nil, errors.Errorf("unknown calendar provider %q", p.CalendarProvider)
	}

	slog.Info("calendar provider ready",
		slog.String("provider", p.CalendarProvider),
		slog.String("calendar_id", cfg.CalendarID),
		slog.String("home_timezone", home.String()),
		slog.String("slot_filter", filter.String()),
	)
	return schedule.NewOrchestrator(cfg, source, creator), nil
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	s.echoServer.Listener = listener
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", slog.String("error", err.Error()))
		}
	}()
	slog.Info("server started", slog.String("address", address))
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, timeout.ServerShutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	slog.Info("server stopped properly")
}
