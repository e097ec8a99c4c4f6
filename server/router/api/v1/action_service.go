package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/selfcare/plugin/ai/action"
	"github.com/hrygo/selfcare/server/internal/observability"
	"github.com/hrygo/selfcare/server/service/schedule"
	"github.com/hrygo/selfcare/store"
)

// Execution statuses for actions the server does not perform itself.
const (
	ActionStatusAcknowledged = "acknowledged"
)

// ExecuteActionRequest is the body of POST /api/v1/actions/execute.
type ExecuteActionRequest struct {
	Type        action.Type     `json:"type"`
	Params      json.RawMessage `json:"params"`
	Description string          `json:"description"`
	UserID      int32           `json:"user_id"`
}

// ExecuteActionResponse reports what happened to an executed action.
type ExecuteActionResponse struct {
	Type     action.Type       `json:"type"`
	Status   string            `json:"status"`
	Params   action.Params     `json:"params"`
	Schedule *schedule.Outcome `json:"schedule,omitempty"`
}

// ExecuteAction performs a confirmed action. Calendar blocks are scheduled;
// journal entries and quiz retakes are acknowledged for the client to perform.
// POST /api/v1/actions/execute
func (s *APIV1Service) ExecuteAction(c echo.Context) error {
	var req ExecuteActionRequest
	if err := c.Bind(&req); err != nil {
		return invalidArgument(c, "invalid request body")
	}
	params, err := action.DecodeParams(req.Type, req.Params)
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()

	resp := ExecuteActionResponse{Type: params.Type(), Status: ActionStatusAcknowledged, Params: params}
	var scheduledAt *time.Time
	switch p := params.(type) {
	case action.CalendarBlockParams:
		description := req.Description
		if description == "" {
			description = action.DefaultDescription
		}
		outcome, err := s.scheduleBlock(ctx, p, description, req.UserID)
		if err != nil {
			return respondError(c, err)
		}
		resp.Status = string(outcome.State)
		resp.Schedule = outcome
		if outcome.Booked() {
			scheduledAt = &outcome.Interval.Start
		}
	case action.JournalEntryParams, action.RetakeQuizParams:
	}

	if req.UserID != 0 {
		if _, err := s.saveRecord(ctx, req.UserID, params, action.OutcomeConfirmed, scheduledAt); err != nil {
			// The action already happened; a lost record only weakens preferences.
			observability.Logger(ctx).Warn("failed to record executed action",
				"action_type", string(params.Type()),
				"error", err,
			)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// FeedbackRequest is the body of POST /api/v1/actions/feedback.
type FeedbackRequest struct {
	UserID      int32           `json:"user_id"`
	Type        action.Type     `json:"type"`
	Outcome     string          `json:"outcome"`
	Params      json.RawMessage `json:"params"`
	ScheduledAt string          `json:"scheduled_at"`
}

// ActionRecordResponse is the API view of a stored action record.
type ActionRecordResponse struct {
	ID          int32           `json:"id"`
	UserID      int32           `json:"user_id"`
	Type        string          `json:"type"`
	Outcome     string          `json:"outcome"`
	Params      json.RawMessage `json:"params"`
	ScheduledAt string          `json:"scheduled_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// RecordFeedback stores the user's response to a suggested action.
// POST /api/v1/actions/feedback
func (s *APIV1Service) RecordFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return invalidArgument(c, "invalid request body")
	}
	if req.UserID == 0 {
		return invalidArgument(c, "user_id is required")
	}
	params, err := action.DecodeParams(req.Type, req.Params)
	if err != nil {
		return respondError(c, err)
	}
	var scheduledAt *time.Time
	if req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return invalidArgument(c, "scheduled_at must be an RFC 3339 date-time")
		}
		scheduledAt = &t
	}

	record, err := s.saveRecord(c.Request().Context(), req.UserID, params, action.ParseOutcome(req.Outcome), scheduledAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, s.convertActionRecord(record))
}

func (s *APIV1Service) saveRecord(ctx context.Context, userID int32, params action.Params, outcome action.Outcome, scheduledAt *time.Time) (*store.ActionRecord, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode action params: %w", err)
	}
	create := &store.ActionRecord{
		UserID:     userID,
		ActionType: string(params.Type()),
		Outcome:    string(outcome),
		Params:     string(raw),
	}
	if scheduledAt != nil {
		ts := scheduledAt.Unix()
		create.ScheduledTs = &ts
	}
	return s.Store.CreateActionRecord(ctx, create)
}

// loadHistory reads the most recent action records of userID.
func (s *APIV1Service) loadHistory(ctx context.Context, userID int32) ([]action.Record, error) {
	limit := s.Profile.HistoryLimit
	list, err := s.Store.ListActionRecords(ctx, &store.FindActionRecord{UserID: &userID, Limit: &limit})
	if err != nil {
		return nil, fmt.Errorf("load action history: %w", err)
	}
	history := make([]action.Record, 0, len(list))
	for _, r := range list {
		history = append(history, convertRecordFromStore(r))
	}
	return history, nil
}

// convertRecordFromStore decodes a stored record. Params that no longer
// validate are dropped; the record still counts when it has a booked start.
func convertRecordFromStore(r *store.ActionRecord) action.Record {
	record := action.Record{
		ID:        int64(r.ID),
		UserID:    r.UserID,
		Type:      action.Type(r.ActionType),
		Outcome:   action.ParseOutcome(r.Outcome),
		Timestamp: time.Unix(r.CreatedTs, 0),
	}
	if r.ScheduledTs != nil {
		t := time.Unix(*r.ScheduledTs, 0)
		record.ScheduledAt = &t
	}
	if params, err := action.DecodeParams(record.Type, json.RawMessage(r.Params)); err == nil {
		record.Params = params
	}
	return record
}

func (s *APIV1Service) convertActionRecord(r *store.ActionRecord) ActionRecordResponse {
	resp := ActionRecordResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.ActionType,
		Outcome:   r.Outcome,
		Params:    json.RawMessage(r.Params),
		CreatedAt: time.Unix(r.CreatedTs, 0).In(s.home()).Format(time.RFC3339),
	}
	if r.ScheduledTs != nil {
		resp.ScheduledAt = time.Unix(*r.ScheduledTs, 0).In(s.home()).Format(time.RFC3339)
	}
	return resp
}

func parseUserID(raw string) (int32, error) {
	if raw == "" {
		return 0, fmt.Errorf("user_id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("user_id must be a positive integer")
	}
	return int32(id), nil
}
