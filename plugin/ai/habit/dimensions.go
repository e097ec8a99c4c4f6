// Package habit learns when a user likes to schedule self-care.
package habit

// Period is a coarse part of the day.
type Period string

const (
	PeriodNone      Period = ""
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// PreferenceProfile summarises the hours a user has accepted scheduling at.
// It is derived fresh from history on every request and never persisted.
type PreferenceProfile struct {
	// PreferredHours holds up to MaxPreferredHours hours (0-23), most frequent first.
	PreferredHours []int `json:"preferred_hours"`
	// DominantPeriod is the period of the mean accepted hour.
	DominantPeriod Period `json:"dominant_period"`
	// HasPattern is true once MinPatternSamples qualifying samples exist.
	HasPattern bool `json:"has_pattern"`
	// SampleSize is the number of qualifying samples.
	SampleSize int `json:"sample_size"`
}

const (
	// MaxPreferredHours caps PreferenceProfile.PreferredHours.
	MaxPreferredHours = 3
	// MinPatternSamples is the sample count needed before preferences apply.
	MinPatternSamples = 2
)

// EmptyProfile is the profile of a user with no qualifying history.
func EmptyProfile() PreferenceProfile {
	return PreferenceProfile{
		PreferredHours: []int{},
		DominantPeriod: PeriodNone,
	}
}
