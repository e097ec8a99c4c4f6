package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hrygo/selfcare/plugin/ai/action"
	"github.com/hrygo/selfcare/plugin/ai/aitime"
	"github.com/hrygo/selfcare/plugin/ai/habit"
	"github.com/hrygo/selfcare/plugin/ai/timeout"
	"github.com/hrygo/selfcare/server/internal/observability"
)

// State is a step of a single scheduling request.
type State string

const (
	StateStart            State = "start"
	StateTimeResolved     State = "time_resolved"
	StateFreeSlotsFetched State = "free_slots_fetched"
	StateCandidateChosen  State = "candidate_chosen"
	StateConflictChecked  State = "conflict_checked"
	StateBooked           State = "booked"
	StateRejected         State = "rejected"
)

// RejectReason explains a Rejected outcome.
type RejectReason string

const (
	ReasonNone           RejectReason = ""
	ReasonConflict       RejectReason = "conflict"
	ReasonNoAvailability RejectReason = "no_availability"
)

// Degradation notes recorded on an Outcome.
const (
	DegradedSearchFetch   = "search_fetch_failed"
	DegradedConflictFetch = "conflict_fetch_failed_fail_open"
)

var (
	// ErrInvalidRequest matches malformed scheduling requests.
	ErrInvalidRequest = errors.New("invalid scheduling request")
	// ErrBookingFailed matches a calendar write that failed for a reason other than a conflict.
	ErrBookingFailed = errors.New("create event")
)

// Config tunes the orchestrator.
type Config struct {
	Home            *time.Location
	CalendarID      string
	SearchWindow    time.Duration
	SearchLeadTime  time.Duration
	ConflictPadding time.Duration
	FetchTimeout    time.Duration
	Filter          *SlotFilter
}

// DefaultConfig returns the default configuration for home.
func DefaultConfig(home *time.Location) Config {
	return Config{
		Home:            home,
		CalendarID:      "primary",
		SearchWindow:    7 * 24 * time.Hour,
		SearchLeadTime:  time.Hour,
		ConflictPadding: DefaultConflictPadding,
		FetchTimeout:    timeout.CalendarFetchTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Home)
	if c.Home == nil {
		c.Home = time.UTC
	}
	if c.CalendarID == "" {
		c.CalendarID = d.CalendarID
	}
	if c.SearchWindow <= 0 {
		c.SearchWindow = d.SearchWindow
	}
	if c.SearchLeadTime < 0 {
		c.SearchLeadTime = d.SearchLeadTime
	}
	if c.ConflictPadding < 0 {
		c.ConflictPadding = d.ConflictPadding
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	return c
}

// Request asks for one self-care block.
type Request struct {
	// Spec is the requested start; an unset spec lets the engine choose.
	Spec            aitime.TimeSpec
	DurationMinutes int
	Purpose         string
	Description     string
	// History is the user's recent actions, most recent first.
	History []action.Record
}

// Outcome is the terminal result of Schedule.
type Outcome struct {
	State    State                    `json:"state"`
	Reason   RejectReason             `json:"reason,omitempty"`
	Message  string                   `json:"message,omitempty"`
	Interval *Interval                `json:"interval,omitempty"`
	Event    *CreatedEvent            `json:"event,omitempty"`
	Profile  *habit.PreferenceProfile `json:"profile,omitempty"`
	Degraded []string                 `json:"degraded,omitempty"`
	Trace    []State                  `json:"trace"`
}

// Booked reports whether the request produced a booking.
func (o *Outcome) Booked() bool {
	return o.State == StateBooked
}

// Orchestrator turns a time request into a booked interval or a definite
// rejection. It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	source   BusyIntervalSource
	creator  EventCreator
	resolver *aitime.Resolver
	learner  *habit.Learner
	detector *ConflictDetector
	selector *SlotSelector
	now      func() time.Time
	metrics  *observability.Metrics
}

// NewOrchestrator wires the scheduling components around source and creator.
func NewOrchestrator(cfg Config, source BusyIntervalSource, creator EventCreator) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:      cfg,
		source:   source,
		creator:  creator,
		resolver: aitime.NewResolver(cfg.Home),
		learner:  habit.NewLearner(cfg.Home),
		detector: NewConflictDetector(cfg.Home),
		selector: NewSlotSelector(cfg.Home),
		now:      time.Now,
		metrics:  observability.GlobalMetrics(),
	}
}

// WithClock replaces the clock, for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	o.resolver = o.resolver.WithClock(now)
	return o
}

// WithMetrics replaces the metrics sink.
func (o *Orchestrator) WithMetrics(m *observability.Metrics) *Orchestrator {
	if m != nil {
		o.metrics = m
	}
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Resolver returns the time resolver bound to the home timezone and clock.
func (o *Orchestrator) Resolver() *aitime.Resolver {
	return o.resolver
}

// Learner returns the preference learner.
func (o *Orchestrator) Learner() *habit.Learner {
	return o.learner
}

// Schedule runs one request through
// Start → TimeResolved → FreeSlotsFetched → CandidateChosen → ConflictChecked → Booked|Rejected.
//
// Conflict and NoAvailability are returned as Rejected outcomes, not errors.
// Errors are reserved for invalid requests, unparsable specs and failed
// bookings.
//
// The conflict check and the booking are separate calendar operations, so a
// booking made elsewhere between them can still overlap. The check runs
// immediately before CreateEvent to keep that window short; creators that
// can re-check at write time (the local store) report it as *ConflictError.
func (o *Orchestrator) Schedule(ctx context.Context, req *Request) (*Outcome, error) {
	if req == nil || req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidRequest)
	}
	logger := observability.Logger(ctx)
	now := o.now().In(o.cfg.Home)
	duration := time.Duration(req.DurationMinutes) * time.Minute

	out := &Outcome{Trace: []State{StateStart}}
	advance := func(s State) {
		out.State = s
		out.Trace = append(out.Trace, s)
		logger.Debug("schedule state", "state", string(s))
	}

	var candidate Interval
	if !req.Spec.IsUnset() {
		start, err := o.resolver.Resolve(req.Spec, now)
		if err != nil {
			return nil, err
		}
		advance(StateTimeResolved)
		advance(StateFreeSlotsFetched)
		candidate = Interval{Start: start, End: start.Add(duration)}
	} else {
		windowStart := ceilTime(now.Add(o.cfg.SearchLeadTime), searchGranularity)
		window := Interval{Start: windowStart, End: windowStart.Add(o.cfg.SearchWindow)}
		advance(StateTimeResolved)

		busy, err := o.fetchBusy(ctx, window)
		if err != nil {
			out.Degraded = append(out.Degraded, DegradedSearchFetch)
		}
		slots := alignSlots(ComputeFreeSlots(busy, window, req.DurationMinutes, now), req.DurationMinutes)
		slots = o.cfg.Filter.Apply(slots)
		advance(StateFreeSlotsFetched)

		profile := o.learner.Learn(req.History)
		out.Profile = &profile
		slot, ok := o.selector.SelectBestFitting(slots, profile, req.DurationMinutes)
		if !ok {
			return o.reject(out, ReasonNoAvailability, fmt.Sprintf(
				"No free %d-minute slot found in the next %d days", req.DurationMinutes,
				int(o.cfg.SearchWindow/(24*time.Hour)))), nil
		}
		candidate = Interval{Start: slot.Start, End: slot.Start.Add(duration)}
	}
	candidate = candidate.In(o.cfg.Home)
	out.Interval = &candidate
	advance(StateCandidateChosen)

	result, degraded := o.checkConflict(ctx, candidate)
	if degraded {
		out.Degraded = append(out.Degraded, DegradedConflictFetch)
	}
	advance(StateConflictChecked)
	if result.HasConflict {
		return o.reject(out, ReasonConflict, result.Message), nil
	}

	event, err := o.book(ctx, req, candidate)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return o.reject(out, ReasonConflict, conflict.Message), nil
		}
		o.metrics.RecordOutcome("error")
		return nil, fmt.Errorf("%w: %w", ErrBookingFailed, err)
	}
	out.Event = event
	advance(StateBooked)
	o.metrics.RecordOutcome(string(StateBooked))
	logger.Info("self-care block booked",
		"event_id", event.ID,
		"start", candidate.Start.Format(time.RFC3339),
		"duration_minutes", req.DurationMinutes,
	)
	return out, nil
}

func (o *Orchestrator) reject(out *Outcome, reason RejectReason, message string) *Outcome {
	out.State = StateRejected
	out.Trace = append(out.Trace, StateRejected)
	out.Reason = reason
	out.Message = message
	o.metrics.RecordOutcome(string(StateRejected) + ":" + string(reason))
	return out
}

func (o *Orchestrator) book(ctx context.Context, req *Request, candidate Interval) (*CreatedEvent, error) {
	if o.creator == nil {
		return nil, errors.New("no event creator configured")
	}
	description := req.Description
	if description == "" {
		description = action.DefaultDescription
	}
	writeCtx, cancel := context.WithTimeout(ctx, timeout.CalendarWriteTimeout)
	defer cancel()
	return o.creator.CreateEvent(writeCtx, &CreateEventRequest{
		CalendarID:  o.cfg.CalendarID,
		Title:       req.Purpose,
		Description: description,
		Interval:    candidate,
		Timezone:    o.cfg.Home.String(),
	})
}

// FindFreeSlots returns the free slots in window of at least minDurationMinutes.
// A failed fetch degrades to an empty busy list and is reported as degraded.
func (o *Orchestrator) FindFreeSlots(ctx context.Context, window Interval, minDurationMinutes int) ([]FreeSlot, bool) {
	busy, err := o.fetchBusy(ctx, window)
	slots := ComputeFreeSlots(busy, window.In(o.cfg.Home), minDurationMinutes, o.now())
	return slots, err != nil
}

// CheckConflict checks candidate against busy intervals fetched for the padded
// window. A failed fetch is fail-open: no conflict, degraded.
func (o *Orchestrator) CheckConflict(ctx context.Context, candidate Interval) (ConflictResult, bool) {
	return o.checkConflict(ctx, candidate)
}

func (o *Orchestrator) checkConflict(ctx context.Context, candidate Interval) (ConflictResult, bool) {
	busy, err := o.fetchBusy(ctx, ConflictWindow(candidate, o.cfg.ConflictPadding))
	if err != nil {
		o.metrics.RecordFailOpen()
		observability.Logger(ctx).Warn("conflict check proceeding without busy data",
			"candidate_start", candidate.Start.Format(time.RFC3339),
			"error", err,
		)
		return ConflictResult{}, true
	}
	return o.detector.CheckConflict(candidate, busy), false
}

// fetchBusy reads busy intervals under the fetch timeout. On failure it
// returns a nil list and the error; callers degrade rather than abort.
func (o *Orchestrator) fetchBusy(ctx context.Context, window Interval) ([]BusyInterval, error) {
	logger := observability.Logger(ctx).With(observability.LogFieldCalendarID, o.cfg.CalendarID)
	if o.source == nil {
		err := &ExternalFetchError{CalendarID: o.cfg.CalendarID, Cause: errors.New("no busy source configured")}
		o.metrics.RecordFetchFailure()
		logger.Warn("busy intervals unavailable",
			observability.LogFieldCalendarStatus, observability.CalendarStatusUnavailable,
			"error", err,
		)
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	started := time.Now()
	busy, err := o.source.FetchBusy(fetchCtx, o.cfg.CalendarID, window.Start, window.End)
	o.metrics.RecordOperation("fetch_busy", time.Since(started), err != nil)
	if err != nil {
		var fetchErr *ExternalFetchError
		if !errors.As(err, &fetchErr) {
			err = &ExternalFetchError{CalendarID: o.cfg.CalendarID, Cause: err}
		}
		o.metrics.RecordFetchFailure()
		logger.Warn("busy intervals unavailable, treating as no busy data",
			observability.LogFieldCalendarStatus, observability.CalendarStatusUnavailable,
			"window_start", window.Start.Format(time.RFC3339),
			"window_end", window.End.Format(time.RFC3339),
			"error", err,
		)
		return nil, err
	}
	if len(busy) == 0 {
		logger.Debug("calendar has no busy intervals in window",
			observability.LogFieldCalendarStatus, observability.CalendarStatusEmpty,
		)
	}
	return busy, nil
}
