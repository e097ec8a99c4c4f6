package schedule

import (
	"fmt"
	"time"

	"github.com/hrygo/selfcare/server/timezone"
)

// DefaultConflictPadding widens the busy fetch around a candidate so that
// events near the boundary are not missed.
const DefaultConflictPadding = time.Hour

const untitledEvent = "Untitled Event"

// ConflictDetector finds the first busy interval a candidate overlaps.
type ConflictDetector struct {
	home *time.Location
}

// NewConflictDetector creates a detector that formats messages in home.
func NewConflictDetector(home *time.Location) *ConflictDetector {
	if home == nil {
		home = time.UTC
	}
	return &ConflictDetector{home: home}
}

// CheckConflict reports whether candidate overlaps any non all-day busy
// interval. The message names the first conflicting event in the order given.
func (d *ConflictDetector) CheckConflict(candidate Interval, busy []BusyInterval) ConflictResult {
	if b := firstConflict(candidate, busy); b != nil {
		return ConflictResult{HasConflict: true, Message: d.Message(*b)}
	}
	return ConflictResult{}
}

// Message formats the user-facing explanation for a conflict with b.
func (d *ConflictDetector) Message(b BusyInterval) string {
	title := b.Title
	if title == "" {
		title = untitledEvent
	}
	return fmt.Sprintf("Time slot conflicts with existing event: '%s' (%s)",
		title, timezone.FormatClockRange(b.Start, b.End, d.home))
}

func firstConflict(candidate Interval, busy []BusyInterval) *BusyInterval {
	for i := range busy {
		if busy[i].AllDay {
			continue
		}
		if candidate.Overlaps(busy[i].Interval) {
			return &busy[i]
		}
	}
	return nil
}

// ConflictWindow returns candidate widened by padding on both sides.
func ConflictWindow(candidate Interval, padding time.Duration) Interval {
	if padding < 0 {
		padding = 0
	}
	return Interval{Start: candidate.Start.Add(-padding), End: candidate.End.Add(padding)}
}
