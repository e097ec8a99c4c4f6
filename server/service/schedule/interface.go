// Package schedule finds free time on a calendar and books self-care blocks
// into it.
//
// Key features:
//   - Free gap computation over busy intervals, ignoring all-day events
//   - Conflict detection with a padded fetch window and fail-open fetches
//   - Preference-aware slot selection with an optional CEL slot filter
//   - A per-request orchestrator running from time resolution to booking
//
// Busy data comes from a BusyIntervalSource and bookings go to an EventCreator,
// so the package holds no calendar state of its own.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// BusyIntervalSource supplies busy intervals for a calendar within a window.
// Implementations may fail; callers treat a failure as "calendar unavailable",
// never as "calendar empty".
type BusyIntervalSource interface {
	FetchBusy(ctx context.Context, calendarID string, start, end time.Time) ([]BusyInterval, error)
}

// EventCreator books an interval on a calendar.
// Implementations that detect an overlap at write time return a *ConflictError.
type EventCreator interface {
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*CreatedEvent, error)
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval returns the interval [start, end), rejecting empty or inverted ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("invalid interval: start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Minutes returns the whole minutes in the interval.
func (i Interval) Minutes() int {
	return int(i.Duration() / time.Minute)
}

// Overlaps reports whether i and other share any instant.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// In returns the interval with both bounds expressed in loc.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

// BusyInterval is an occupied range on a calendar.
// All-day intervals never block gaps or conflicts.
type BusyInterval struct {
	Interval
	Title  string `json:"title"`
	AllDay bool   `json:"all_day"`
}

// FreeSlot is a gap between busy intervals that meets a minimum duration.
type FreeSlot struct {
	Interval
	DurationMinutes int
}

// MarshalJSON renders the slot as RFC 3339 start/end plus duration_minutes.
func (s FreeSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start           string `json:"start"`
		End             string `json:"end"`
		DurationMinutes int    `json:"duration_minutes"`
	}{
		Start:           s.Start.Format(time.RFC3339),
		End:             s.End.Format(time.RFC3339),
		DurationMinutes: s.DurationMinutes,
	})
}

// ConflictResult is the outcome of a conflict check.
type ConflictResult struct {
	HasConflict bool   `json:"has_conflict"`
	Message     string `json:"message,omitempty"`
}

// CreateEventRequest represents the request to book an interval.
type CreateEventRequest struct {
	CalendarID  string
	Title       string
	Description string
	Interval    Interval
	Timezone    string
}

// CreatedEvent is a booking accepted by an EventCreator.
type CreatedEvent struct {
	ID       string   `json:"id"`
	Link     string   `json:"link,omitempty"`
	Interval Interval `json:"interval"`
}
