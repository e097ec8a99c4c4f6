package aitime

import (
	"log/slog"
	"time"
)

const (
	// nowGranularity is the boundary "now" rounds up to.
	nowGranularity = 5 * time.Minute
	// minimumLead is the smallest distance from now a resolved instant may have
	// when the fallback guard kicks in.
	minimumLead = 5 * time.Minute
)

// Resolver resolves TimeSpecs against a home timezone.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	home *time.Location
	now  func() time.Time
}

// NewResolver creates a resolver for the given home timezone.
func NewResolver(home *time.Location) *Resolver {
	if home == nil {
		home = time.UTC
	}
	return &Resolver{
		home: home,
		now:  time.Now,
	}
}

// WithClock returns a resolver that reads the current time from now.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	return &Resolver{
		home: r.home,
		now:  now,
	}
}

// Home returns the home timezone.
func (r *Resolver) Home() *time.Location {
	return r.home
}

// Now returns the current time in the home timezone.
func (r *Resolver) Now() time.Time {
	return r.now().In(r.home)
}

// ResolveString parses input and resolves it against now.
func (r *Resolver) ResolveString(input string, now time.Time) (time.Time, error) {
	spec, err := ParseTimeSpec(input)
	if err != nil {
		return time.Time{}, err
	}
	return r.Resolve(spec, now)
}

// Resolve maps spec to an instant strictly later than now, expressed in the
// home timezone.
func (r *Resolver) Resolve(spec TimeSpec, now time.Time) (time.Time, error) {
	now = now.In(r.home)

	var resolved time.Time
	switch spec.Kind() {
	case KindUnset:
		return time.Time{}, ErrUnsetSpec
	case KindKeyword:
		var err error
		if resolved, err = r.resolveKeyword(spec.Keyword(), now); err != nil {
			return time.Time{}, err
		}
	case KindExplicit:
		resolved = r.resolveExplicit(spec.Explicit(), now)
	default:
		return time.Time{}, newParseError(spec.String(), "unknown spec kind")
	}

	if !resolved.After(now) {
		resolved = now.Add(minimumLead).Truncate(time.Minute)
	}
	return resolved.In(r.home), nil
}

func (r *Resolver) resolveKeyword(k Keyword, now time.Time) (time.Time, error) {
	switch k {
	case KeywordNow:
		return ceilTo(now.Add(minimumLead), nowGranularity), nil
	case KeywordInOneHour:
		return now.Add(time.Hour), nil
	case KeywordInTwoHours:
		return now.Add(2 * time.Hour), nil
	}

	daily, ok := dailyKeywords[k]
	if !ok {
		return time.Time{}, newParseError(string(k), "unknown keyword")
	}
	day := now.AddDate(0, 0, daily.dayOffset)
	t := time.Date(day.Year(), day.Month(), day.Day(), daily.hour, 0, 0, 0, r.home)
	if !t.After(now) {
		t = time.Date(day.Year(), day.Month(), day.Day()+1, daily.hour, 0, 0, 0, r.home)
	}
	return t, nil
}

func (r *Resolver) resolveExplicit(e Explicit, now time.Time) time.Time {
	loc := e.Location(r.home)
	check := CheckLocal(e.Year, e.Month, e.Day, e.Hour, e.Minute, loc)
	for _, w := range check.Warnings {
		slog.Debug("aitime: explicit time adjusted", "warning", w, "timezone", loc.String())
	}
	t := check.Time.Add(time.Duration(e.Second) * time.Second)

	if !t.After(now) {
		local := t.In(loc)
		t = time.Date(local.Year(), local.Month(), local.Day()+1, local.Hour(), local.Minute(), local.Second(), 0, loc)
	}
	return t
}

// ceilTo rounds t up to the next multiple of d (t itself when already aligned).
func ceilTo(t time.Time, d time.Duration) time.Time {
	floor := t.Truncate(d)
	if floor.Before(t) {
		return floor.Add(d)
	}
	return floor
}
