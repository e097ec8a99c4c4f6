package aitime

import (
	"fmt"
	"time"
)

// LocalCheck is the outcome of pinning a civil time to a location.
type LocalCheck struct {
	Time     time.Time
	Warnings []string
	// Skipped is set when the civil time fell into a spring-forward gap.
	Skipped bool
	// Ambiguous is set when the civil time occurs twice (fall back).
	Ambiguous bool
}

// CheckLocal pins a civil time to loc, handling DST transitions:
//
//   - A time inside a spring-forward gap does not exist; it is moved forward by
//     the size of the gap (02:30 becomes 03:30 on a one hour jump).
//   - A time inside a fall-back overlap occurs twice; the first (daylight)
//     occurrence is used.
func CheckLocal(year int, month time.Month, day, hour, minute int, loc *time.Location) *LocalCheck {
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	result := &LocalCheck{Time: t}

	if t.Hour() != hour || t.Minute() != minute {
		// Reading the wall clock with the lowest nearby offset lands after the gap.
		_, offNow := t.Zone()
		_, offBefore := t.Add(-3 * time.Hour).Zone()
		_, offAfter := t.Add(3 * time.Hour).Zone()
		lowest := min(offNow, offBefore, offAfter)
		wall := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
		result.Time = wall.Add(-time.Duration(lowest) * time.Second).In(loc)
		result.Skipped = true
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%04d-%02d-%02d %02d:%02d does not exist in %s (DST gap), adjusted to %02d:%02d",
			year, month, day, hour, minute, loc, result.Time.Hour(), result.Time.Minute()))
		return result
	}

	for _, shift := range []time.Duration{-time.Hour, time.Hour} {
		other := t.Add(shift)
		if sameWallClock(t, other) {
			result.Ambiguous = true
			if other.Before(t) {
				result.Time = other
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"%04d-%02d-%02d %02d:%02d is ambiguous in %s (DST fall back), using first occurrence",
				year, month, day, hour, minute, loc))
			break
		}
	}
	return result
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd && a.Hour() == b.Hour() && a.Minute() == b.Minute()
}
