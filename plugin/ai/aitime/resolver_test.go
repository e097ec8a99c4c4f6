package aitime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var losAngeles = mustLoad("America/Los_Angeles")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func la(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, losAngeles)
}

func TestParseTimeSpec(t *testing.T) {
	t.Run("empty is unset", func(t *testing.T) {
		spec, err := ParseTimeSpec("  ")
		require.NoError(t, err)
		assert.True(t, spec.IsUnset())
	})

	t.Run("keywords are case insensitive", func(t *testing.T) {
		for _, k := range Keywords {
			spec, err := ParseTimeSpec(string(k))
			require.NoError(t, err)
			assert.Equal(t, KindKeyword, spec.Kind())
			assert.Equal(t, k, spec.Keyword())
		}
		spec, err := ParseTimeSpec("TODAY_MORNING")
		require.NoError(t, err)
		assert.Equal(t, KeywordTodayMorning, spec.Keyword())
	})

	t.Run("explicit forms", func(t *testing.T) {
		spec, err := ParseTimeSpec("2025-06-01T10:30")
		require.NoError(t, err)
		require.Equal(t, KindExplicit, spec.Kind())
		e := spec.Explicit()
		assert.Equal(t, 2025, e.Year)
		assert.Equal(t, time.June, e.Month)
		assert.Equal(t, 10, e.Hour)
		assert.Equal(t, 30, e.Minute)
		assert.Nil(t, e.Offset)
		assert.Empty(t, e.Zone)

		spec, err = ParseTimeSpec("2025-06-01T10:30:15-07:00")
		require.NoError(t, err)
		e = spec.Explicit()
		assert.Equal(t, 15, e.Second)
		require.NotNil(t, e.Offset)
		assert.Equal(t, -7*3600, *e.Offset)

		spec, err = ParseTimeSpec("2025-06-01T10:30Z")
		require.NoError(t, err)
		require.NotNil(t, spec.Explicit().Offset)
		assert.Equal(t, 0, *spec.Explicit().Offset)

		spec, err = ParseTimeSpec("2025-06-01T10:30+05:30|Asia/Tokyo")
		require.NoError(t, err)
		assert.Equal(t, "Asia/Tokyo", spec.Explicit().Zone)
		assert.Equal(t, "Asia/Tokyo", spec.Explicit().Location(time.UTC).String())
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		inputs := []string{
			"later",
			"2025-06-01 10:00",
			"2025-13-01T10:00",
			"2025-02-30T10:00",
			"2025-06-01T25:00",
			"2025-06-01T10:61",
			"2025-06-01T10:00+15:00",
			"2025-06-01T10:00|Not/AZone",
			"2025-06-01T10",
		}
		for _, input := range inputs {
			_, err := ParseTimeSpec(input)
			require.Error(t, err, input)
			assert.True(t, errors.Is(err, ErrParse), input)
			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr), input)
		}
	})
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(losAngeles)

	tests := []struct {
		name string
		spec string
		now  time.Time
		want time.Time
	}{
		{"today_morning before nine", "today_morning", la(2025, 6, 10, 8, 0, 0), la(2025, 6, 10, 9, 0, 0)},
		{"today_morning after nine rolls forward", "today_morning", la(2025, 6, 10, 10, 0, 0), la(2025, 6, 11, 9, 0, 0)},
		{"today_morning exactly at nine rolls forward", "today_morning", la(2025, 6, 10, 9, 0, 0), la(2025, 6, 11, 9, 0, 0)},
		{"today_afternoon", "today_afternoon", la(2025, 6, 10, 10, 0, 0), la(2025, 6, 10, 14, 0, 0)},
		{"today_evening rolls forward", "today_evening", la(2025, 6, 10, 20, 0, 0), la(2025, 6, 11, 19, 0, 0)},
		{"tomorrow_morning late at night", "tomorrow_morning", la(2025, 6, 10, 23, 30, 0), la(2025, 6, 11, 9, 0, 0)},
		{"tomorrow_afternoon", "tomorrow_afternoon", la(2025, 6, 10, 8, 0, 0), la(2025, 6, 11, 14, 0, 0)},
		{"in_1_hour", "in_1_hour", la(2025, 6, 10, 8, 17, 42), la(2025, 6, 10, 9, 17, 42)},
		{"in_2_hours", "in_2_hours", la(2025, 6, 10, 8, 17, 42), la(2025, 6, 10, 10, 17, 42)},
		{"now rounds up with floor", "now", la(2025, 6, 10, 8, 17, 42), la(2025, 6, 10, 8, 25, 0)},
		{"now on a boundary", "now", la(2025, 6, 10, 8, 0, 0), la(2025, 6, 10, 8, 5, 0)},
		{"now near the hour", "now", la(2025, 6, 10, 8, 58, 0), la(2025, 6, 10, 9, 5, 0)},
		{"explicit future in home zone", "2025-06-10T15:00", la(2025, 6, 10, 8, 0, 0), la(2025, 6, 10, 15, 0, 0)},
		{"explicit past moves one day", "2025-06-10T07:00", la(2025, 6, 10, 8, 0, 0), la(2025, 6, 11, 7, 0, 0)},
		{"explicit offset equal to now moves one day", "2025-06-10T15:00+00:00", la(2025, 6, 10, 8, 0, 0), time.Date(2025, 6, 11, 15, 0, 0, 0, time.UTC)},
		{"zone name overrides offset", "2025-06-10T15:00+00:00|America/New_York", la(2025, 6, 10, 8, 0, 0), la(2025, 6, 10, 12, 0, 0)},
		{"far past falls back to lead", "2024-01-01T10:00", la(2025, 6, 10, 8, 0, 30), la(2025, 6, 10, 8, 5, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveString(tt.spec, tt.now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, losAngeles, got.Location())
		})
	}
}

func TestResolver_AlwaysAfterNow(t *testing.T) {
	r := NewResolver(losAngeles)
	start := la(2025, 6, 10, 0, 0, 0)
	for minutes := 0; minutes < 24*60; minutes += 17 {
		now := start.Add(time.Duration(minutes) * time.Minute)
		for _, k := range Keywords {
			spec, err := KeywordSpec(k)
			require.NoError(t, err)
			got, err := r.Resolve(spec, now)
			require.NoError(t, err)
			assert.True(t, got.After(now), "%s at %s resolved to %s", k, now, got)
		}
	}
}

func TestResolver_Unset(t *testing.T) {
	r := NewResolver(losAngeles)
	_, err := r.Resolve(Unset(), time.Now())
	assert.ErrorIs(t, err, ErrUnsetSpec)
}

func TestResolver_WithClock(t *testing.T) {
	fixed := la(2025, 6, 10, 8, 0, 0)
	r := NewResolver(losAngeles).WithClock(func() time.Time { return fixed.UTC() })
	assert.True(t, fixed.Equal(r.Now()))
	assert.Equal(t, losAngeles, r.Now().Location())
}

func TestCheckLocal(t *testing.T) {
	t.Run("spring forward gap moves forward", func(t *testing.T) {
		check := CheckLocal(2025, time.March, 9, 2, 30, losAngeles)
		assert.True(t, check.Skipped)
		assert.False(t, check.Ambiguous)
		assert.Len(t, check.Warnings, 1)
		assert.True(t, la(2025, 3, 9, 3, 30, 0).Equal(check.Time), "got %s", check.Time)
	})

	t.Run("fall back uses first occurrence", func(t *testing.T) {
		check := CheckLocal(2025, time.November, 2, 1, 30, losAngeles)
		assert.True(t, check.Ambiguous)
		assert.False(t, check.Skipped)
		assert.True(t, time.Date(2025, 11, 2, 8, 30, 0, 0, time.UTC).Equal(check.Time), "got %s", check.Time.UTC())
	})

	t.Run("ordinary time", func(t *testing.T) {
		check := CheckLocal(2025, time.June, 10, 9, 0, losAngeles)
		assert.False(t, check.Skipped)
		assert.False(t, check.Ambiguous)
		assert.Empty(t, check.Warnings)
	})
}

func TestResolver_ParseWindowBound(t *testing.T) {
	r := NewResolver(losAngeles)
	now := la(2025, 6, 10, 8, 30, 0)

	tests := []struct {
		name  string
		input string
		isEnd bool
		want  time.Time
	}{
		{"today start clamps to now", "today", false, now},
		{"today end", "today", true, la(2025, 6, 10, 23, 59, 59)},
		{"tomorrow start", "tomorrow", false, la(2025, 6, 11, 0, 0, 0)},
		{"tomorrow end", "Tomorrow", true, la(2025, 6, 11, 23, 59, 59)},
		{"days ahead", "3 days", true, la(2025, 6, 13, 23, 59, 59)},
		{"days from now", "7 days from now", true, la(2025, 6, 17, 23, 59, 59)},
		{"empty end defaults to a week", "", true, la(2025, 6, 17, 23, 59, 59)},
		{"empty start is now", "", false, now},
		{"date", "2025-06-12", false, la(2025, 6, 12, 0, 0, 0)},
		{"date end", "2025-06-12", true, la(2025, 6, 12, 23, 59, 59)},
		{"explicit", "2025-06-12T09:15", false, la(2025, 6, 12, 9, 15, 0)},
		{"explicit past start clamps", "2025-06-09T09:15", false, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ParseWindowBound(tt.input, now, tt.isEnd)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}

	_, err := r.ParseWindowBound("next blue moon", now, false)
	assert.ErrorIs(t, err, ErrParse)
}

func TestResolver_ParseDateBound(t *testing.T) {
	r := NewResolver(losAngeles)
	now := la(2025, 6, 10, 8, 30, 0)

	tests := []struct {
		name  string
		input string
		isEnd bool
		want  time.Time
	}{
		{"today start", "today", false, la(2025, 6, 10, 0, 0, 0)},
		{"past date start", "2025-06-01", false, la(2025, 6, 1, 0, 0, 0)},
		{"past date end", "2025-06-05", true, la(2025, 6, 5, 23, 59, 59)},
		{"past explicit start", "2025-06-09T09:15", false, la(2025, 6, 9, 9, 15, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ParseDateBound(tt.input, now, tt.isEnd)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}

	_, err := r.ParseDateBound("last tuesday", now, false)
	assert.ErrorIs(t, err, ErrParse)
}

func TestPeriodHour(t *testing.T) {
	h, ok := PeriodHour("Morning")
	assert.True(t, ok)
	assert.Equal(t, 9, h)
	h, _ = PeriodHour("afternoon")
	assert.Equal(t, 14, h)
	h, _ = PeriodHour("evening")
	assert.Equal(t, 19, h)
	_, ok = PeriodHour("midnight")
	assert.False(t, ok)
}
