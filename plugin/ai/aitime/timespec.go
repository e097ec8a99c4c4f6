// Package aitime turns loosely specified time requests into absolute,
// timezone-aware instants.
package aitime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind tags which interpretation a TimeSpec carries.
type Kind int

const (
	// KindUnset means the engine must choose a time.
	KindUnset Kind = iota
	// KindKeyword is one of the fixed relative keywords.
	KindKeyword
	// KindExplicit is an explicit civil date-time.
	KindExplicit
)

func (k Kind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindExplicit:
		return "explicit"
	default:
		return "unset"
	}
}

// Keyword is a relative time keyword.
type Keyword string

const (
	KeywordNow               Keyword = "now"
	KeywordInOneHour         Keyword = "in_1_hour"
	KeywordInTwoHours        Keyword = "in_2_hours"
	KeywordTodayMorning      Keyword = "today_morning"
	KeywordTodayAfternoon    Keyword = "today_afternoon"
	KeywordTodayEvening      Keyword = "today_evening"
	KeywordTomorrowMorning   Keyword = "tomorrow_morning"
	KeywordTomorrowAfternoon Keyword = "tomorrow_afternoon"
)

// Keywords lists the accepted keywords in documentation order.
var Keywords = []Keyword{
	KeywordNow,
	KeywordInOneHour,
	KeywordInTwoHours,
	KeywordTodayMorning,
	KeywordTodayAfternoon,
	KeywordTodayEvening,
	KeywordTomorrowMorning,
	KeywordTomorrowAfternoon,
}

// periodHours maps day periods to their canonical hour.
var periodHours = map[string]int{
	"morning":   9,
	"afternoon": 14,
	"evening":   19,
}

// dailyKeywords maps daily keywords to (day offset, hour).
var dailyKeywords = map[Keyword]struct {
	dayOffset int
	hour      int
}{
	KeywordTodayMorning:      {0, 9},
	KeywordTodayAfternoon:    {0, 14},
	KeywordTodayEvening:      {0, 19},
	KeywordTomorrowMorning:   {1, 9},
	KeywordTomorrowAfternoon: {1, 14},
}

// PeriodHour returns the canonical hour for "morning", "afternoon" or "evening".
func PeriodHour(period string) (int, bool) {
	h, ok := periodHours[strings.ToLower(period)]
	return h, ok
}

// Explicit is a civil date-time with optional offset and zone hint.
type Explicit struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
	// Offset is the UTC offset in seconds when one was written.
	Offset *int
	// Zone is the IANA zone name from a "|Zone" suffix.
	Zone string

	loc *time.Location
}

// Location returns the location implied by the spec: the named zone, then the
// written offset, then fallback.
func (e Explicit) Location(fallback *time.Location) *time.Location {
	switch {
	case e.loc != nil:
		return e.loc
	case e.Offset != nil:
		return time.FixedZone("", *e.Offset)
	default:
		return fallback
	}
}

// TimeSpec is a tagged time request. The zero value is unset.
type TimeSpec struct {
	kind     Kind
	keyword  Keyword
	explicit Explicit
	raw      string
}

// Unset returns the spec that lets the engine choose a time.
func Unset() TimeSpec {
	return TimeSpec{}
}

// KeywordSpec returns a keyword spec, or a ParseError for an unknown keyword.
func KeywordSpec(k Keyword) (TimeSpec, error) {
	for _, known := range Keywords {
		if known == k {
			return TimeSpec{kind: KindKeyword, keyword: k, raw: string(k)}, nil
		}
	}
	return TimeSpec{}, newParseError(string(k), "unknown keyword")
}

func (s TimeSpec) Kind() Kind         { return s.kind }
func (s TimeSpec) IsUnset() bool      { return s.kind == KindUnset }
func (s TimeSpec) Keyword() Keyword   { return s.keyword }
func (s TimeSpec) Explicit() Explicit { return s.explicit }
func (s TimeSpec) String() string     { return s.raw }

// MarshalText renders the spec in its textual grammar.
func (s TimeSpec) MarshalText() ([]byte, error) {
	return []byte(s.raw), nil
}

// UnmarshalText parses the textual grammar, so TimeSpec can sit in JSON payloads.
func (s *TimeSpec) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeSpec(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// explicitPattern is YYYY-MM-DDTHH:MM[:SS][Z|±HH:MM][|Zone].
var explicitPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2})(?::(\d{2}))?(Z|[+-]\d{2}:\d{2})?(?:\|(.+))?$`)

// ParseTimeSpec parses the textual grammar. An empty string is unset.
func ParseTimeSpec(input string) (TimeSpec, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Unset(), nil
	}

	if spec, err := KeywordSpec(Keyword(strings.ToLower(input))); err == nil {
		return spec, nil
	}
	if !strings.Contains(input, "T") {
		return TimeSpec{}, newParseError(input, "unknown keyword")
	}

	m := explicitPattern.FindStringSubmatch(input)
	if m == nil {
		return TimeSpec{}, newParseError(input, "expected YYYY-MM-DDTHH:MM[:SS][±HH:MM][|Zone]")
	}

	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	e := Explicit{
		Year:   atoi(m[1]),
		Month:  time.Month(atoi(m[2])),
		Day:    atoi(m[3]),
		Hour:   atoi(m[4]),
		Minute: atoi(m[5]),
	}
	if m[6] != "" {
		e.Second = atoi(m[6])
	}
	if err := validateCivil(e); err != nil {
		return TimeSpec{}, newParseError(input, err.Error())
	}

	if m[7] != "" {
		offset, err := parseOffset(m[7])
		if err != nil {
			return TimeSpec{}, newParseError(input, err.Error())
		}
		e.Offset = &offset
	}

	if zone := strings.TrimSpace(m[8]); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return TimeSpec{}, newParseError(input, fmt.Sprintf("unknown timezone %q", zone))
		}
		e.Zone = zone
		e.loc = loc
	}

	return TimeSpec{kind: KindExplicit, explicit: e, raw: input}, nil
}

func validateCivil(e Explicit) error {
	if e.Month < time.January || e.Month > time.December {
		return fmt.Errorf("month %d out of range", e.Month)
	}
	daysInMonth := time.Date(e.Year, e.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if e.Day < 1 || e.Day > daysInMonth {
		return fmt.Errorf("day %d out of range", e.Day)
	}
	if e.Hour > 23 || e.Minute > 59 || e.Second > 59 {
		return fmt.Errorf("time %02d:%02d:%02d out of range", e.Hour, e.Minute, e.Second)
	}
	return nil
}

func parseOffset(s string) (int, error) {
	if s == "Z" {
		return 0, nil
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	hours, _ := strconv.Atoi(s[1:3])
	minutes, _ := strconv.Atoi(s[4:6])
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("offset %s out of range", s)
	}
	return sign * (hours*3600 + minutes*60), nil
}
