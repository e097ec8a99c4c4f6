package aitime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var daysAheadPattern = regexp.MustCompile(`^(\d+)\s*days?(?:\s+from\s+now)?$`)

// ParseWindowBound parses one bound of a free-time search window. It accepts
// the inputs of ParseDateBound; a start bound that lies in the past is clamped
// to now.
func (r *Resolver) ParseWindowBound(input string, now time.Time, isEnd bool) (time.Time, error) {
	bound, err := r.ParseDateBound(input, now, isEnd)
	if err != nil {
		return time.Time{}, err
	}
	if !isEnd && bound.Before(now) {
		bound = now.In(r.home)
	}
	return bound, nil
}

// ParseDateBound parses one bound of a date range: "today", "tomorrow",
// "N days", "YYYY-MM-DD" or an explicit date-time. Day-granular inputs expand to
// the start of the day for a start bound and 23:59:59 for an end bound. Past
// bounds are kept as given.
func (r *Resolver) ParseDateBound(input string, now time.Time, isEnd bool) (time.Time, error) {
	now = now.In(r.home)
	raw := strings.ToLower(strings.TrimSpace(input))

	dayBound := func(day time.Time) time.Time {
		if isEnd {
			return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, r.home)
		}
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.home)
	}

	var bound time.Time
	switch {
	case raw == "" && isEnd:
		bound = dayBound(now.AddDate(0, 0, 7))
	case raw == "" || raw == "now":
		bound = now
	case raw == "today":
		bound = dayBound(now)
	case raw == "tomorrow":
		bound = dayBound(now.AddDate(0, 0, 1))
	case daysAheadPattern.MatchString(raw):
		n, _ := strconv.Atoi(daysAheadPattern.FindStringSubmatch(raw)[1])
		bound = dayBound(now.AddDate(0, 0, n))
	case !strings.Contains(raw, "t"):
		day, err := time.ParseInLocation("2006-01-02", raw, r.home)
		if err != nil {
			return time.Time{}, newParseError(input, "expected today, tomorrow, N days, YYYY-MM-DD or a date-time")
		}
		bound = dayBound(day)
	default:
		spec, err := ParseTimeSpec(strings.TrimSpace(input))
		if err != nil {
			return time.Time{}, err
		}
		if spec.Kind() != KindExplicit {
			return time.Time{}, newParseError(input, "window bounds accept explicit date-times only")
		}
		e := spec.Explicit()
		bound = time.Date(e.Year, e.Month, e.Day, e.Hour, e.Minute, e.Second, 0, e.Location(r.home))
	}

	return bound.In(r.home), nil
}
