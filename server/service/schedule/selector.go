package schedule

import (
	"time"

	"github.com/hrygo/selfcare/plugin/ai/habit"
)

const (
	maxHourScore     = 24
	neutralHourScore = 12
)

// SlotSelector picks the free slot closest to a user's preferred hours.
type SlotSelector struct {
	home *time.Location
}

// NewSlotSelector creates a selector that reads slot hours in home.
func NewSlotSelector(home *time.Location) *SlotSelector {
	if home == nil {
		home = time.UTC
	}
	return &SlotSelector{home: home}
}

// SelectBest returns the highest scoring slot. Without a usable pattern the
// first slot wins; equal scores keep the earliest slot.
func (s *SlotSelector) SelectBest(slots []FreeSlot, profile habit.PreferenceProfile) (FreeSlot, bool) {
	if len(slots) == 0 {
		return FreeSlot{}, false
	}
	if !profile.HasPattern || len(profile.PreferredHours) == 0 {
		return slots[0], true
	}

	best, bestScore := 0, -1
	for i, slot := range slots {
		score := s.score(slot, profile.PreferredHours)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return slots[best], true
}

// SelectBestFitting is SelectBest restricted to slots of at least
// durationMinutes.
func (s *SlotSelector) SelectBestFitting(slots []FreeSlot, profile habit.PreferenceProfile, durationMinutes int) (FreeSlot, bool) {
	fitting := make([]FreeSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.DurationMinutes >= durationMinutes {
			fitting = append(fitting, slot)
		}
	}
	return s.SelectBest(fitting, profile)
}

func (s *SlotSelector) score(slot FreeSlot, preferred []int) int {
	if slot.Start.IsZero() {
		return neutralHourScore
	}
	hour := slot.Start.In(s.home).Hour()
	closest := maxHourScore
	for _, p := range preferred {
		d := hour - p
		if d < 0 {
			d = -d
		}
		closest = min(closest, d)
	}
	return maxHourScore - closest
}
