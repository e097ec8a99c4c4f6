package schedule

import (
	"slices"
	"time"
)

// ComputeFreeSlots sweeps the busy intervals and returns the gaps inside
// window that last at least minDurationMinutes and start no earlier than now.
//
// All-day intervals are ignored and overlapping intervals are merged by the
// sweep. The result is chronological, in window.Start's location, and never nil.
func ComputeFreeSlots(busy []BusyInterval, window Interval, minDurationMinutes int, now time.Time) []FreeSlot {
	slots := make([]FreeSlot, 0)
	if !window.Start.Before(window.End) {
		return slots
	}

	blocking := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if b.AllDay || !b.Start.Before(b.End) {
			continue
		}
		blocking = append(blocking, b.Interval)
	}
	slices.SortStableFunc(blocking, func(a, b Interval) int {
		return a.Start.Compare(b.Start)
	})

	loc := window.Start.Location()
	minDuration := time.Duration(minDurationMinutes) * time.Minute

	emit := func(start, end time.Time) {
		if end.After(window.End) {
			end = window.End
		}
		if !start.Before(end) || end.Sub(start) < minDuration {
			return
		}
		gap := Interval{Start: start.In(loc), End: end.In(loc)}
		slots = append(slots, FreeSlot{Interval: gap, DurationMinutes: gap.Minutes()})
	}

	cursor := window.Start
	if now.After(cursor) {
		cursor = now
	}
	for _, b := range blocking {
		if !cursor.Before(window.End) {
			break
		}
		if cursor.Before(b.Start) {
			emit(cursor, b.Start)
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(window.End) {
		emit(cursor, window.End)
	}
	return slots
}

// searchGranularity is the grid the automatic search window starts on.
const searchGranularity = 5 * time.Minute

// ceilTime rounds t up to the next multiple of d, keeping t when aligned.
func ceilTime(t time.Time, d time.Duration) time.Time {
	r := t.Truncate(d)
	if r.Equal(t) {
		return t
	}
	return r.Add(d)
}

// alignSlots rounds every slot start up to the whole minute and drops slots
// that no longer hold minDurationMinutes.
func alignSlots(slots []FreeSlot, minDurationMinutes int) []FreeSlot {
	aligned := make([]FreeSlot, 0, len(slots))
	for _, s := range slots {
		gap := Interval{Start: ceilTime(s.Start, time.Minute), End: s.End}
		if !gap.Start.Before(gap.End) || gap.Minutes() < minDurationMinutes {
			continue
		}
		aligned = append(aligned, FreeSlot{Interval: gap, DurationMinutes: gap.Minutes()})
	}
	return aligned
}
