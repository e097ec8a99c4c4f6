package habit

import (
	"strings"
	"time"

	"github.com/hrygo/selfcare/plugin/ai/action"
	"github.com/hrygo/selfcare/plugin/ai/aitime"
)

// Learner derives a PreferenceProfile from action history.
// It is stateless; a single Learner may serve concurrent requests.
type Learner struct {
	home *time.Location
}

// NewLearner creates a learner that reads booked instants in the home timezone.
func NewLearner(home *time.Location) *Learner {
	if home == nil {
		home = time.UTC
	}
	return &Learner{home: home}
}

// Learn builds a profile from confirmed calendar blocks in history.
func (l *Learner) Learn(history []action.Record) PreferenceProfile {
	hours := make([]int, 0, len(history))
	for _, record := range history {
		if !record.IsConfirmedScheduling() {
			continue
		}
		if hour, ok := l.hourOf(record); ok {
			hours = append(hours, hour)
		}
	}

	if len(hours) == 0 {
		return EmptyProfile()
	}

	counts := make(map[int]int, len(hours))
	for _, h := range hours {
		counts[h]++
	}

	return PreferenceProfile{
		PreferredHours: topNHours(counts, MaxPreferredHours),
		DominantPeriod: hourToPeriod(meanHour(hours)),
		HasPattern:     len(hours) >= MinPatternSamples,
		SampleSize:     len(hours),
	}
}

// hourOf extracts the home-zone hour of a record: the booked start when known,
// otherwise the explicit time window read in its own zone, otherwise the
// canonical hour of a morning/afternoon/evening keyword.
func (l *Learner) hourOf(record action.Record) (int, bool) {
	if record.ScheduledAt != nil && !record.ScheduledAt.IsZero() {
		return record.ScheduledAt.In(l.home).Hour(), true
	}

	block, ok := record.Params.(action.CalendarBlockParams)
	if !ok {
		return 0, false
	}
	spec, err := block.Spec()
	if err != nil {
		return 0, false
	}

	switch spec.Kind() {
	case aitime.KindExplicit:
		e := spec.Explicit()
		at := time.Date(e.Year, e.Month, e.Day, e.Hour, e.Minute, e.Second, 0, e.Location(l.home))
		return at.In(l.home).Hour(), true
	case aitime.KindKeyword:
		keyword := string(spec.Keyword())
		for _, period := range []string{"morning", "afternoon", "evening"} {
			if strings.Contains(keyword, period) {
				return aitime.PeriodHour(period)
			}
		}
	}
	return 0, false
}
