package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/selfcare/plugin/ai/action"
	"github.com/hrygo/selfcare/plugin/ai/aitime"
	"github.com/hrygo/selfcare/server/internal/observability"
)

// fakeCalendar is an in-memory BusyIntervalSource and EventCreator that
// records the order of calls made against it.
type fakeCalendar struct {
	mu        sync.Mutex
	busy      []BusyInterval
	fetchErr  error
	createErr error
	block     bool

	calls        []string
	fetchWindows []Interval
	created      []*CreateEventRequest
	hadDeadline  []bool
}

func (f *fakeCalendar) FetchBusy(ctx context.Context, _ string, start, end time.Time) ([]BusyInterval, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "fetch")
	f.fetchWindows = append(f.fetchWindows, Interval{Start: start, End: end})
	_, ok := ctx.Deadline()
	f.hadDeadline = append(f.hadDeadline, ok)
	block, err, busy := f.block, f.fetchErr, f.busy
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return busy, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, req *CreateEventRequest) (*CreatedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &CreatedEvent{ID: "evt-1", Link: "/bookings/evt-1", Interval: req.Interval}, nil
}

func newTestOrchestrator(cal *fakeCalendar, mutate func(*Config)) (*Orchestrator, *observability.Metrics) {
	cfg := DefaultConfig(testHome)
	if mutate != nil {
		mutate(&cfg)
	}
	metrics := observability.NewMetrics(10)
	o := NewOrchestrator(cfg, cal, cal).
		WithClock(func() time.Time { return at(8, 0) }).
		WithMetrics(metrics)
	return o, metrics
}

func mustSpec(t *testing.T, s string) aitime.TimeSpec {
	t.Helper()
	spec, err := aitime.ParseTimeSpec(s)
	require.NoError(t, err)
	return spec
}

func bookedAt(hh int) action.Record {
	ts := at(hh, 0).AddDate(0, 0, -3)
	return action.Record{
		Type:        action.TypeCalendarBlock,
		Outcome:     action.OutcomeConfirmed,
		ScheduledAt: &ts,
		Params:      action.CalendarBlockParams{DurationMinutes: 15, Purpose: "Stretch"},
	}
}

func TestSchedule_ExplicitSpecBooked(t *testing.T) {
	cal := &fakeCalendar{}
	o, metrics := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{
		Spec:            mustSpec(t, "today_morning"),
		DurationMinutes: 15,
		Purpose:         "Breathing break",
	})
	require.NoError(t, err)
	assert.True(t, out.Booked())
	assert.Equal(t, []State{
		StateStart, StateTimeResolved, StateFreeSlotsFetched,
		StateCandidateChosen, StateConflictChecked, StateBooked,
	}, out.Trace)
	require.NotNil(t, out.Interval)
	assert.True(t, at(9, 0).Equal(out.Interval.Start))
	assert.True(t, at(9, 15).Equal(out.Interval.End))
	require.NotNil(t, out.Event)
	assert.Equal(t, "evt-1", out.Event.ID)

	// The padded conflict fetch is the call immediately before the booking.
	require.Equal(t, []string{"fetch", "create"}, cal.calls)
	window := cal.fetchWindows[len(cal.fetchWindows)-1]
	assert.True(t, at(8, 0).Equal(window.Start))
	assert.True(t, at(10, 15).Equal(window.End))
	assert.True(t, cal.hadDeadline[0], "fetch runs under a timeout")

	require.Len(t, cal.created, 1)
	assert.Equal(t, "Breathing break", cal.created[0].Title)
	assert.Equal(t, action.DefaultDescription, cal.created[0].Description)
	assert.Equal(t, "primary", cal.created[0].CalendarID)
	assert.Equal(t, "America/Los_Angeles", cal.created[0].Timezone)

	assert.EqualValues(t, 1, metrics.Snapshot().Outcomes["booked"])
}

func TestSchedule_ExplicitSpecConflict(t *testing.T) {
	cal := &fakeCalendar{busy: []BusyInterval{busy("Yoga", at(9, 0), at(9, 30))}}
	o, metrics := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{
		Spec:            mustSpec(t, "2025-06-02T09:10"),
		DurationMinutes: 15,
		Purpose:         "Walk",
	})
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Equal(t, ReasonConflict, out.Reason)
	assert.Equal(t, "Time slot conflicts with existing event: 'Yoga' (09:00 AM - 09:30 AM PDT)", out.Message)
	assert.Equal(t, StateConflictChecked, out.Trace[len(out.Trace)-2])
	assert.NotContains(t, cal.calls, "create")
	assert.EqualValues(t, 1, metrics.Snapshot().Outcomes["rejected:conflict"])
}

func TestSchedule_UnsetSpecPicksFirstSlotWithoutHistory(t *testing.T) {
	cal := &fakeCalendar{}
	o, _ := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{DurationMinutes: 20, Purpose: "Meditate"})
	require.NoError(t, err)
	assert.True(t, out.Booked())
	assert.True(t, at(9, 0).Equal(out.Interval.Start), "window starts one hour from now")
	require.NotNil(t, out.Profile)
	assert.False(t, out.Profile.HasPattern)

	require.Equal(t, []string{"fetch", "fetch", "create"}, cal.calls)
	search := cal.fetchWindows[0]
	assert.True(t, at(9, 0).Equal(search.Start))
	assert.True(t, at(9, 0).AddDate(0, 0, 7).Equal(search.End))
}

func TestSchedule_UnsetSpecStartsOnWholeMinutes(t *testing.T) {
	cal := &fakeCalendar{busy: []BusyInterval{
		busy("Call", at(9, 5), at(9, 40).Add(20*time.Second)),
	}}
	o, _ := newTestOrchestrator(cal, nil)
	o.WithClock(func() time.Time { return at(8, 3).Add(27*time.Second + 481*time.Millisecond) })

	out, err := o.Schedule(context.Background(), &Request{DurationMinutes: 20, Purpose: "Meditate"})
	require.NoError(t, err)
	require.True(t, out.Booked())
	assert.True(t, at(9, 41).Equal(out.Interval.Start), "got %s", out.Interval.Start)
	assert.True(t, at(10, 1).Equal(out.Interval.End))
	assert.True(t, at(9, 5).Equal(cal.fetchWindows[0].Start), "search starts on the 5-minute grid")
}

func TestSchedule_UnsetSpecFollowsPreferences(t *testing.T) {
	cal := &fakeCalendar{busy: []BusyInterval{
		busy("Work", at(10, 0), at(14, 0)),
		busy("Travel", at(15, 0), at(9, 0).AddDate(0, 0, 8)),
	}}
	o, _ := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{
		DurationMinutes: 30,
		Purpose:         "Journal",
		History:         []action.Record{bookedAt(14), bookedAt(14)},
	})
	require.NoError(t, err)
	require.True(t, out.Booked())
	assert.True(t, at(14, 0).Equal(out.Interval.Start))
	assert.True(t, out.Profile.HasPattern)
	assert.Equal(t, []int{14}, out.Profile.PreferredHours)
}

func TestSchedule_UnsetSpecNoAvailability(t *testing.T) {
	cal := &fakeCalendar{busy: []BusyInterval{busy("Retreat", at(0, 0), at(0, 0).AddDate(0, 0, 10))}}
	o, metrics := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{DurationMinutes: 30, Purpose: "Rest"})
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Equal(t, ReasonNoAvailability, out.Reason)
	assert.Nil(t, out.Interval)
	assert.Equal(t, []State{StateStart, StateTimeResolved, StateFreeSlotsFetched, StateRejected}, out.Trace)
	assert.Equal(t, []string{"fetch"}, cal.calls)
	assert.EqualValues(t, 1, metrics.Snapshot().Outcomes["rejected:no_availability"])
}

func TestSchedule_UnsetSpecTooShortGaps(t *testing.T) {
	// Ten-minute gaps every hour never fit a 30-minute block.
	var list []BusyInterval
	start := at(9, 0)
	for h := 0; h < 7*24+1; h++ {
		s := start.Add(time.Duration(h)*time.Hour + 10*time.Minute)
		list = append(list, busy("Block", s, s.Add(50*time.Minute)))
	}
	cal := &fakeCalendar{busy: list}
	o, _ := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{DurationMinutes: 30, Purpose: "Rest"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoAvailability, out.Reason)
}

func TestSchedule_SlotFilter(t *testing.T) {
	filter, err := NewSlotFilter("hour >= 12", testHome)
	require.NoError(t, err)
	cal := &fakeCalendar{busy: []BusyInterval{busy("Work", at(10, 0), at(14, 0))}}
	o, _ := newTestOrchestrator(cal, func(c *Config) { c.Filter = filter })

	out, err := o.Schedule(context.Background(), &Request{DurationMinutes: 30, Purpose: "Stretch"})
	require.NoError(t, err)
	require.True(t, out.Booked())
	assert.True(t, at(14, 0).Equal(out.Interval.Start))
}

func TestSchedule_FetchFailureFailsOpen(t *testing.T) {
	cal := &fakeCalendar{fetchErr: errors.New("503 from calendar")}
	o, metrics := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{
		Spec:            mustSpec(t, "in_1_hour"),
		DurationMinutes: 15,
		Purpose:         "Tea",
	})
	require.NoError(t, err)
	assert.True(t, out.Booked())
	assert.Equal(t, []string{DegradedConflictFetch}, out.Degraded)

	s := metrics.Snapshot()
	assert.EqualValues(t, 1, s.FailOpen)
	assert.EqualValues(t, 1, s.FetchFailures)
}

func TestSchedule_SearchFetchFailureDegradesToEmpty(t *testing.T) {
	cal := &fakeCalendar{fetchErr: errors.New("unreachable")}
	o, _ := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{DurationMinutes: 15, Purpose: "Tea"})
	require.NoError(t, err)
	assert.True(t, out.Booked())
	assert.True(t, at(9, 0).Equal(out.Interval.Start))
	assert.Equal(t, []string{DegradedSearchFetch, DegradedConflictFetch}, out.Degraded)
}

func TestSchedule_FetchTimeout(t *testing.T) {
	cal := &fakeCalendar{block: true}
	o, _ := newTestOrchestrator(cal, func(c *Config) { c.FetchTimeout = 20 * time.Millisecond })

	started := time.Now()
	out, err := o.Schedule(context.Background(), &Request{
		Spec:            mustSpec(t, "in_2_hours"),
		DurationMinutes: 15,
		Purpose:         "Tea",
	})
	require.NoError(t, err)
	assert.True(t, out.Booked())
	assert.Contains(t, out.Degraded, DegradedConflictFetch)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestSchedule_WriteTimeConflict(t *testing.T) {
	cal := &fakeCalendar{createErr: &ConflictError{Message: "Time slot conflicts with existing event: 'Walk' (09:00 AM - 09:30 AM PDT)"}}
	o, _ := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{
		Spec:            mustSpec(t, "today_morning"),
		DurationMinutes: 15,
		Purpose:         "Tea",
	})
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Equal(t, ReasonConflict, out.Reason)
	assert.Contains(t, out.Message, "'Walk'")
}

func TestSchedule_CreateFailure(t *testing.T) {
	cal := &fakeCalendar{createErr: errors.New("calendar write failed")}
	o, _ := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{
		Spec:            mustSpec(t, "today_morning"),
		DurationMinutes: 15,
		Purpose:         "Tea",
	})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrBookingFailed)
	assert.Contains(t, err.Error(), "calendar write failed")
}

func TestSchedule_InvalidRequest(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeCalendar{}, nil)

	_, err := o.Schedule(context.Background(), &Request{Purpose: "Tea"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = o.Schedule(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSchedule_ExplicitPastRollsForward(t *testing.T) {
	cal := &fakeCalendar{}
	o, _ := newTestOrchestrator(cal, nil)

	out, err := o.Schedule(context.Background(), &Request{
		Spec:            mustSpec(t, "2025-06-02T07:00"),
		DurationMinutes: 15,
		Purpose:         "Tea",
	})
	require.NoError(t, err)
	assert.True(t, at(7, 0).AddDate(0, 0, 1).Equal(out.Interval.Start))
}

func TestOrchestrator_FindFreeSlots(t *testing.T) {
	cal := &fakeCalendar{busy: []BusyInterval{busy("Standup", at(10, 0), at(10, 30))}}
	o, _ := newTestOrchestrator(cal, nil)

	slots, degraded := o.FindFreeSlots(context.Background(), Interval{Start: at(9, 0), End: at(12, 0)}, 30)
	assert.False(t, degraded)
	require.Len(t, slots, 2)
	assert.Equal(t, 60, slots[0].DurationMinutes)
	assert.Equal(t, 90, slots[1].DurationMinutes)

	cal.fetchErr = errors.New("down")
	slots, degraded = o.FindFreeSlots(context.Background(), Interval{Start: at(9, 0), End: at(12, 0)}, 30)
	assert.True(t, degraded)
	require.Len(t, slots, 1)
	assert.Equal(t, 180, slots[0].DurationMinutes)
}

func TestOrchestrator_CheckConflict(t *testing.T) {
	cal := &fakeCalendar{busy: []BusyInterval{busy("Standup", at(10, 0), at(10, 30))}}
	o, _ := newTestOrchestrator(cal, nil)

	result, degraded := o.CheckConflict(context.Background(), Interval{Start: at(10, 15), End: at(10, 45)})
	assert.False(t, degraded)
	assert.True(t, result.HasConflict)

	cal.fetchErr = errors.New("down")
	result, degraded = o.CheckConflict(context.Background(), Interval{Start: at(10, 15), End: at(10, 45)})
	assert.True(t, degraded)
	assert.False(t, result.HasConflict)
}

func TestOrchestrator_NilSource(t *testing.T) {
	cal := &fakeCalendar{}
	o := NewOrchestrator(DefaultConfig(testHome), nil, cal).
		WithClock(func() time.Time { return at(8, 0) }).
		WithMetrics(observability.NewMetrics(10))

	out, err := o.Schedule(context.Background(), &Request{Spec: mustSpec(t, "today_evening"), DurationMinutes: 15, Purpose: "Tea"})
	require.NoError(t, err)
	assert.True(t, out.Booked())
	assert.True(t, at(19, 0).Equal(out.Interval.Start))
}
