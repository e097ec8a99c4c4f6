package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/selfcare/internal/profile"
	"github.com/hrygo/selfcare/server/internal/observability"
	servermw "github.com/hrygo/selfcare/server/middleware"
	"github.com/hrygo/selfcare/server/service/schedule"
	"github.com/hrygo/selfcare/store"
)

// RequestIDHeader carries the request id in and out of the API.
const RequestIDHeader = "X-Request-ID"

type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	Orchestrator *schedule.Orchestrator
	Metrics      *observability.Metrics

	rateLimiter *servermw.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, orchestrator *schedule.Orchestrator) *APIV1Service {
	return &APIV1Service{
		Profile:      profile,
		Store:        store,
		Orchestrator: orchestrator,
		Metrics:      observability.GlobalMetrics(),
		rateLimiter:  servermw.NewRateLimiter(profile.RateLimitPerSecond, profile.RateLimitBurst),
	}
}

// RegisterRoutes registers the JSON API under /api/v1.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1",
		middleware.CORS(),
		s.requestContext(),
		s.rateLimiter.Middleware(),
	)

	g.POST("/schedule", s.Schedule)
	g.GET("/free-slots", s.FindFreeSlots)
	g.POST("/conflicts/check", s.CheckConflict)
	g.POST("/time/resolve", s.ResolveTime)
	g.GET("/preferences", s.GetPreferences)

	g.POST("/actions/execute", s.ExecuteAction)
	g.POST("/actions/feedback", s.RecordFeedback)

	g.GET("/bookings", s.ListBookings)
	g.GET("/bookings.ics", s.ExportBookings)
	g.GET("/bookings/feed", s.BookingFeed)
	g.GET("/bookings/:uid", s.GetBooking)
	g.DELETE("/bookings/:uid", s.DeleteBooking)

	g.GET("/system/metrics/overview", s.GetMetricsOverview)
}

// requestContext attaches a RequestContext to every request and records
// per-route metrics once the handler returns.
func (s *APIV1Service) requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			operation := c.Request().Method + " " + c.Path()
			requestID := c.Request().Header.Get(RequestIDHeader)
			var rc *observability.RequestContext
			if requestID != "" {
				rc = observability.NewRequestContextWithID(slog.Default(), requestID, operation, s.Profile.CalendarID)
			} else {
				rc = observability.NewRequestContext(slog.Default(), operation, s.Profile.CalendarID)
			}
			c.Response().Header().Set(RequestIDHeader, rc.RequestID)
			c.SetRequest(c.Request().WithContext(observability.WithRequestContext(c.Request().Context(), rc)))

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			s.Metrics.RecordRequest(operation)
			s.Metrics.RecordDuration(operation, rc.Duration())
			if err != nil || status >= http.StatusBadRequest {
				s.Metrics.RecordFailure(operation)
			}
			rc.Debug("request completed",
				slog.Int("status", status),
				slog.Int64(observability.LogFieldDuration, rc.DurationMs()),
			)
			return err
		}
	}
}

// now returns the orchestrator's clock in the home timezone.
func (s *APIV1Service) now() time.Time {
	return s.Orchestrator.Resolver().Now()
}

func (s *APIV1Service) home() *time.Location {
	return s.Orchestrator.Config().Home
}
