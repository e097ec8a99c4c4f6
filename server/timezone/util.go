// Package timezone provides timezone utilities for the scheduling engine.
//
// Every instant the engine compares or displays is normalized to a single
// home timezone. The home timezone is configuration, never sniffed from the
// process environment at call time.
package timezone

import (
	"fmt"
	"time"
)

const (
	// TimezoneUTC is the UTC timezone identifier
	TimezoneUTC = "UTC"

	// TimezoneAmericaLosAngeles is the Pacific Time timezone
	TimezoneAmericaLosAngeles = "America/Los_Angeles"

	// ClockLayout is the 12-hour clock used in user facing messages.
	ClockLayout = "03:04 PM"
)

// ParseTimezone parses an IANA timezone identifier (e.g., "America/Los_Angeles").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == TimezoneUTC {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// MustParseTimezone parses a timezone or panics if invalid.
// Use this for constants that are known to be valid at compile time.
func MustParseTimezone(tz string) *time.Location {
	loc, err := ParseTimezone(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	if tz == "" || tz == TimezoneUTC {
		return true
	}

	_, err := time.LoadLocation(tz)
	return err == nil
}

// StartOfDay returns the start of the day (00:00:00) in the given timezone.
func StartOfDay(t time.Time, tz *time.Location) time.Time {
	if tz == nil {
		tz = time.UTC
	}
	local := t.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
}

// EndOfDay returns 23:59:59 of the day in the given timezone.
func EndOfDay(t time.Time, tz *time.Location) time.Time {
	if tz == nil {
		tz = time.UTC
	}
	local := t.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, tz)
}

// AtHour returns hour:00 on the calendar day of t in tz.
func AtHour(t time.Time, hour int, tz *time.Location) time.Time {
	if tz == nil {
		tz = time.UTC
	}
	local := t.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, tz)
}

// FormatClockRange formats an interval for humans, e.g. "02:00 PM - 02:30 PM PST".
// The zone abbreviation is taken from the start instant.
func FormatClockRange(start, end time.Time, tz *time.Location) string {
	if tz == nil {
		tz = time.UTC
	}
	s, e := start.In(tz), end.In(tz)
	zone, _ := s.Zone()
	return fmt.Sprintf("%s - %s %s", s.Format(ClockLayout), e.Format(ClockLayout), zone)
}

// FormatRFC3339 renders t in tz with a numeric offset.
func FormatRFC3339(t time.Time, tz *time.Location) string {
	if tz == nil {
		tz = time.UTC
	}
	return t.In(tz).Format(time.RFC3339)
}
