package v1

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/selfcare/plugin/ai/action"
	"github.com/hrygo/selfcare/plugin/ai/aitime"
	"github.com/hrygo/selfcare/server/service/schedule"
)

// defaultSlotMinutes is the minimum slot length when the client sends none.
const defaultSlotMinutes = 30

// ScheduleRequest is the body of POST /api/v1/schedule.
type ScheduleRequest struct {
	TimeWindow      string `json:"time_window"`
	DurationMinutes int    `json:"duration_minutes"`
	Purpose         string `json:"purpose"`
	Description     string `json:"description"`
	UserID          int32  `json:"user_id"`
}

// ScheduleResponse wraps the orchestrator outcome with a coarse status.
type ScheduleResponse struct {
	Status string `json:"status"`
	*schedule.Outcome
}

// Schedule books a self-care block.
// POST /api/v1/schedule
func (s *APIV1Service) Schedule(c echo.Context) error {
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return invalidArgument(c, "invalid request body")
	}
	params := action.CalendarBlockParams{
		DurationMinutes: req.DurationMinutes,
		TimeWindow:      req.TimeWindow,
		Purpose:         req.Purpose,
	}
	if err := params.Validate(); err != nil {
		return respondError(c, err)
	}

	outcome, err := s.scheduleBlock(c.Request().Context(), params, req.Description, req.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ScheduleResponse{Status: string(outcome.State), Outcome: outcome})
}

// scheduleBlock runs a validated calendar block through the orchestrator.
func (s *APIV1Service) scheduleBlock(ctx context.Context, params action.CalendarBlockParams, description string, userID int32) (*schedule.Outcome, error) {
	spec, err := params.Spec()
	if err != nil {
		return nil, err
	}
	var history []action.Record
	if spec.IsUnset() && userID != 0 {
		history, err = s.loadHistory(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	return s.Orchestrator.Schedule(ctx, &schedule.Request{
		Spec:            spec,
		DurationMinutes: params.DurationMinutes,
		Purpose:         params.Purpose,
		Description:     description,
		History:         history,
	})
}

// FreeSlotsResponse is the body of GET /api/v1/free-slots.
type FreeSlotsResponse struct {
	Slots       []schedule.FreeSlot `json:"slots"`
	WindowStart string              `json:"window_start"`
	WindowEnd   string              `json:"window_end"`
	Degraded    bool                `json:"degraded,omitempty"`
}

// FindFreeSlots lists free slots in a window.
// GET /api/v1/free-slots?start=&end=&duration_minutes=
func (s *APIV1Service) FindFreeSlots(c echo.Context) error {
	minutes := defaultSlotMinutes
	if raw := c.QueryParam("duration_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return invalidArgument(c, "duration_minutes must be a positive integer")
		}
		minutes = n
	}

	now := s.now()
	resolver := s.Orchestrator.Resolver()
	start, err := resolver.ParseWindowBound(c.QueryParam("start"), now, false)
	if err != nil {
		return respondError(c, err)
	}
	end, err := resolver.ParseWindowBound(c.QueryParam("end"), now, true)
	if err != nil {
		return respondError(c, err)
	}
	window, err := schedule.NewInterval(start, end)
	if err != nil {
		return invalidArgument(c, err.Error())
	}

	slots, degraded := s.Orchestrator.FindFreeSlots(c.Request().Context(), window, minutes)
	return c.JSON(http.StatusOK, FreeSlotsResponse{
		Slots:       slots,
		WindowStart: window.Start.Format(time.RFC3339),
		WindowEnd:   window.End.Format(time.RFC3339),
		Degraded:    degraded,
	})
}

// ConflictCheckRequest is the body of POST /api/v1/conflicts/check.
type ConflictCheckRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ConflictCheckResponse is the result of a conflict check.
type ConflictCheckResponse struct {
	schedule.ConflictResult
	Degraded bool `json:"degraded,omitempty"`
}

// CheckConflict checks a candidate interval against the calendar.
// POST /api/v1/conflicts/check
func (s *APIV1Service) CheckConflict(c echo.Context) error {
	var req ConflictCheckRequest
	if err := c.Bind(&req); err != nil {
		return invalidArgument(c, "invalid request body")
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return invalidArgument(c, "start must be an RFC 3339 date-time")
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return invalidArgument(c, "end must be an RFC 3339 date-time")
	}
	candidate, err := schedule.NewInterval(start, end)
	if err != nil {
		return invalidArgument(c, err.Error())
	}

	result, degraded := s.Orchestrator.CheckConflict(c.Request().Context(), candidate)
	return c.JSON(http.StatusOK, ConflictCheckResponse{ConflictResult: result, Degraded: degraded})
}

// ResolveTimeRequest is the body of POST /api/v1/time/resolve.
type ResolveTimeRequest struct {
	TimeSpec string `json:"time_spec"`
}

// ResolveTimeResponse carries a resolved instant.
type ResolveTimeResponse struct {
	Resolved string `json:"resolved"`
	Kind     string `json:"kind"`
}

// ResolveTime resolves a time spec to a concrete future instant.
// POST /api/v1/time/resolve
func (s *APIV1Service) ResolveTime(c echo.Context) error {
	var req ResolveTimeRequest
	if err := c.Bind(&req); err != nil {
		return invalidArgument(c, "invalid request body")
	}
	spec, err := aitime.ParseTimeSpec(req.TimeSpec)
	if err != nil {
		return respondError(c, err)
	}
	if spec.IsUnset() {
		return invalidArgument(c, "time_spec is required")
	}
	resolved, err := s.Orchestrator.Resolver().Resolve(spec, s.now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ResolveTimeResponse{
		Resolved: resolved.Format(time.RFC3339),
		Kind:     spec.Kind().String(),
	})
}

// GetPreferences returns the preference profile learned from a user's history.
// GET /api/v1/preferences?user_id=
func (s *APIV1Service) GetPreferences(c echo.Context) error {
	userID, err := parseUserID(c.QueryParam("user_id"))
	if err != nil {
		return invalidArgument(c, err.Error())
	}
	history, err := s.loadHistory(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s.Orchestrator.Learner().Learn(history))
}
