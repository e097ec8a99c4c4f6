package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/selfcare/internal/profile"
	"github.com/hrygo/selfcare/plugin/ai/habit"
	"github.com/hrygo/selfcare/plugin/calendar/local"
	apierrors "github.com/hrygo/selfcare/server/internal/errors"
	"github.com/hrygo/selfcare/server/internal/observability"
	"github.com/hrygo/selfcare/server/service/schedule"
	"github.com/hrygo/selfcare/store"
	"github.com/hrygo/selfcare/store/db"
)

type testServer struct {
	echo    *echo.Echo
	service *APIV1Service
	store   *store.Store
	home    *time.Location
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	home, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	p := &profile.Profile{
		Mode:               "dev",
		Driver:             "sqlite",
		DSN:                filepath.Join(t.TempDir(), "api.db"),
		HomeTimezone:       home.String(),
		CalendarID:         "primary",
		HistoryLimit:       50,
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
	}
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	now := time.Date(2025, 6, 2, 8, 0, 0, 0, home)
	metrics := observability.NewMetrics(100)
	cal := local.NewCalendar(s, home)
	orch := schedule.NewOrchestrator(schedule.DefaultConfig(home), cal, cal).
		WithClock(func() time.Time { return now }).
		WithMetrics(metrics)

	svc := NewAPIV1Service(p, s, orch)
	svc.Metrics = metrics
	e := echo.New()
	svc.RegisterRoutes(e)
	return &testServer{echo: e, service: svc, store: s, home: home}
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSchedule(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/schedule", ScheduleRequest{
		TimeWindow: "today_afternoon", DurationMinutes: 30, Purpose: "Walk",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	booked := decode[schedule.Outcome](t, rec)
	assert.Equal(t, schedule.StateBooked, booked.State)
	require.NotNil(t, booked.Interval)
	assert.True(t, time.Date(2025, 6, 2, 14, 0, 0, 0, ts.home).Equal(booked.Interval.Start))
	require.NotNil(t, booked.Event)

	rec = ts.do(t, http.MethodPost, "/api/v1/schedule", ScheduleRequest{
		TimeWindow: "today_afternoon", DurationMinutes: 15, Purpose: "Breathe",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decode[ScheduleResponse](t, rec)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Equal(t, schedule.ReasonConflict, rejected.Reason)
	assert.Contains(t, rejected.Message, "'Walk'")
}

func TestSchedule_InvalidRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		req  ScheduleRequest
		code apierrors.ErrorCode
	}{
		{"duration too short", ScheduleRequest{DurationMinutes: 2, Purpose: "Walk"}, apierrors.ErrCodeInvalidArgument},
		{"missing purpose", ScheduleRequest{DurationMinutes: 30}, apierrors.ErrCodeInvalidArgument},
		{"unknown time window", ScheduleRequest{TimeWindow: "someday", DurationMinutes: 30, Purpose: "Walk"}, apierrors.ErrCodeParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/schedule", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestFindFreeSlots(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/schedule", ScheduleRequest{
		TimeWindow: "today_afternoon", DurationMinutes: 60, Purpose: "Walk",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/free-slots?start=2025-06-02T12:00:00&end=2025-06-02T17:00:00&duration_minutes=30", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Slots []struct {
			Start           string `json:"start"`
			End             string `json:"end"`
			DurationMinutes int    `json:"duration_minutes"`
		} `json:"slots"`
		WindowStart string `json:"window_start"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 2)
	assert.Equal(t, "2025-06-02T12:00:00-07:00", resp.Slots[0].Start)
	assert.Equal(t, "2025-06-02T14:00:00-07:00", resp.Slots[0].End)
	assert.Equal(t, "2025-06-02T15:00:00-07:00", resp.Slots[1].Start)
	assert.Equal(t, 120, resp.Slots[1].DurationMinutes)

	rec = ts.do(t, http.MethodGet, "/api/v1/free-slots?start=2025-06-03&end=2025-06-02", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckConflict(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/schedule", ScheduleRequest{
		TimeWindow: "today_afternoon", DurationMinutes: 60, Purpose: "Yoga",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/conflicts/check", ConflictCheckRequest{
		Start: "2025-06-02T14:30:00-07:00", End: "2025-06-02T15:30:00-07:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[ConflictCheckResponse](t, rec)
	assert.True(t, result.HasConflict)
	assert.Contains(t, result.Message, "'Yoga'")

	rec = ts.do(t, http.MethodPost, "/api/v1/conflicts/check", ConflictCheckRequest{
		Start: "2025-06-02T18:00:00-07:00", End: "2025-06-02T18:30:00-07:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ConflictCheckResponse](t, rec).HasConflict)

	rec = ts.do(t, http.MethodPost, "/api/v1/conflicts/check", ConflictCheckRequest{Start: "soon", End: "later"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveTime(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		spec     string
		status   int
		resolved string
		kind     string
	}{
		{"now", http.StatusOK, "2025-06-02T08:05:00-07:00", "keyword"},
		{"tomorrow_morning", http.StatusOK, "2025-06-03T09:00:00-07:00", "keyword"},
		{"2025-06-02T07:00:00", http.StatusOK, "2025-06-03T07:00:00-07:00", "explicit"},
		{"", http.StatusBadRequest, "", ""},
		{"whenever", http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/time/resolve", ResolveTimeRequest{TimeSpec: tt.spec})
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			resp := decode[ResolveTimeResponse](t, rec)
			assert.Equal(t, tt.resolved, resp.Resolved)
			assert.Equal(t, tt.kind, resp.Kind)
		})
	}
}

func TestExecuteActionAndPreferences(t *testing.T) {
	ts := newTestServer(t)

	for _, window := range []string{"today_afternoon", "tomorrow_afternoon"} {
		rec := ts.do(t, http.MethodPost, "/api/v1/actions/execute", map[string]any{
			"type":    "create_calendar_block",
			"user_id": 7,
			"params":  map[string]any{"duration_minutes": 20, "time_window": window, "purpose": "Stretch"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Status   string            `json:"status"`
			Schedule *schedule.Outcome `json:"schedule"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "booked", resp.Status)
		require.NotNil(t, resp.Schedule)
	}

	userID := int32(7)
	records, err := ts.store.ListActionRecords(context.Background(), &store.FindActionRecord{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "confirmed", r.Outcome)
		require.NotNil(t, r.ScheduledTs)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/preferences?user_id=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prefs := decode[habit.PreferenceProfile](t, rec)
	assert.True(t, prefs.HasPattern)
	assert.Equal(t, 2, prefs.SampleSize)
	assert.Equal(t, []int{14}, prefs.PreferredHours)

	rec = ts.do(t, http.MethodGet, "/api/v1/preferences?user_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteAction_Acknowledged(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/actions/execute", map[string]any{
		"type":   "create_journal_entry",
		"params": map[string]any{"prompt_template": "What felt good today?"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ActionStatusAcknowledged, decode[ExecuteActionResponse](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/api/v1/actions/execute", map[string]any{
		"type": "launch_rocket",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordFeedback(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/actions/feedback", map[string]any{
		"type":    "create_calendar_block",
		"outcome": "dismissed",
		"params":  map[string]any{"duration_minutes": 20, "purpose": "Stretch"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "user_id is required")

	rec = ts.do(t, http.MethodPost, "/api/v1/actions/feedback", map[string]any{
		"user_id": 3,
		"type":    "create_calendar_block",
		"outcome": "dismissed",
		"params":  map[string]any{"duration_minutes": 20, "purpose": "Stretch"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[ActionRecordResponse](t, rec)
	assert.Equal(t, int32(3), resp.UserID)
	assert.Equal(t, "dismissed", resp.Outcome)
	assert.Empty(t, resp.ScheduledAt)
}

func TestBookings(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/schedule", ScheduleRequest{
		TimeWindow: "today_evening", DurationMinutes: 30, Purpose: "Walk", Description: "Around the block",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	outcome := decode[schedule.Outcome](t, rec)
	require.NotNil(t, outcome.Event)
	uid := outcome.Event.ID

	rec = ts.do(t, http.MethodGet, "/api/v1/bookings?start=today&end=tomorrow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListBookingsResponse](t, rec)
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, "Walk", list.Bookings[0].Title)
	assert.Equal(t, "2025-06-02T19:00:00-07:00", list.Bookings[0].Start)

	rec = ts.do(t, http.MethodGet, "/api/v1/bookings/"+uid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Around the block", decode[BookingResponse](t, rec).Description)

	rec = ts.do(t, http.MethodGet, "/api/v1/bookings.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/calendar")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Walk")

	rec = ts.do(t, http.MethodGet, "/api/v1/bookings/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<feed")
	assert.Contains(t, rec.Body.String(), "Walk")

	rec = ts.do(t, http.MethodDelete, "/api/v1/bookings/"+uid, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/bookings/"+uid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.ErrCodeNotFound, decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/bookings/"+uid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBookings_PastRange(t *testing.T) {
	ts := newTestServer(t)
	start := time.Date(2025, 5, 20, 7, 0, 0, 0, ts.home)
	_, err := ts.store.CreateBooking(context.Background(), &store.Booking{
		UID:        "past-walk",
		CalendarID: "primary",
		Title:      "Morning walk",
		StartTs:    start.Unix(),
		EndTs:      start.Add(30 * time.Minute).Unix(),
		Timezone:   ts.home.String(),
	})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/api/v1/bookings?start=2025-05-15&end=2025-05-25", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[ListBookingsResponse](t, rec)
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, "past-walk", list.Bookings[0].UID)
	assert.Equal(t, "2025-05-20T07:00:00-07:00", list.Bookings[0].Start)

	rec = ts.do(t, http.MethodGet, "/api/v1/bookings.ics?start=2025-05-15&end=2025-05-25", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "SUMMARY:Morning walk")

	rec = ts.do(t, http.MethodGet, "/api/v1/bookings?start=2025-05-21&end=2025-05-25", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[ListBookingsResponse](t, rec).Bookings)

	rec = ts.do(t, http.MethodGet, "/api/v1/bookings?start=2025-05-25&end=2025-05-15", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMetricsOverview(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/schedule", ScheduleRequest{
		TimeWindow: "today_afternoon", DurationMinutes: 30, Purpose: "Walk",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/v1/schedule", ScheduleRequest{DurationMinutes: 1, Purpose: "Walk"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/system/metrics/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MetricsOverviewResponse](t, rec)
	assert.Equal(t, int64(2), resp.TotalRequests)
	assert.Equal(t, int64(1), resp.ErrorCount)
	assert.InDelta(t, 50.0, resp.SuccessRate, 0.001)
	assert.Equal(t, int64(1), resp.Outcomes["booked"])

	var found bool
	for _, op := range resp.Operations {
		if op.Name == "POST /api/v1/schedule" {
			found = true
			assert.Equal(t, int64(2), op.Count)
			assert.Equal(t, int64(1), op.Errors)
		}
	}
	assert.True(t, found)
}
