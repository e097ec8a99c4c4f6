// Package action defines the actions the assistant can suggest and the record
// kept after the user confirms or dismisses one.
//
// Action parameters are a closed set of typed variants. Raw payloads are
// decoded and validated once by DecodeParams; everything downstream sees
// well-typed values only.
package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/selfcare/plugin/ai/aitime"
)

// Type identifies an action kind.
type Type string

const (
	TypeCalendarBlock Type = "create_calendar_block"
	TypeJournalEntry  Type = "create_journal_entry"
	TypeRetakeQuiz    Type = "suggest_retake_quiz"
)

// Outcome is the user's response to a suggested action.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeDismissed Outcome = "dismissed"
	OutcomeOther     Outcome = "other"
)

// ParseOutcome maps free text onto an Outcome; anything unknown is OutcomeOther.
func ParseOutcome(s string) Outcome {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeConfirmed:
		return OutcomeConfirmed
	case OutcomeDismissed:
		return OutcomeDismissed
	default:
		return OutcomeOther
	}
}

const (
	// MinBlockMinutes and MaxBlockMinutes bound a calendar block's duration.
	MinBlockMinutes = 5
	MaxBlockMinutes = 240

	// DefaultDescription is attached to calendar blocks created from an action.
	DefaultDescription = "Self-care activity from toolkit"
)

// ErrInvalidParams matches every parameter validation failure.
var ErrInvalidParams = errors.New("invalid action parameters")

// Params is implemented only by the variants in this package.
type Params interface {
	Type() Type
	Validate() error
	isParams()
}

// CalendarBlockParams asks for a self-care block on the calendar.
type CalendarBlockParams struct {
	DurationMinutes int    `json:"duration_minutes"`
	TimeWindow      string `json:"time_window,omitempty"`
	Purpose         string `json:"purpose"`
}

func (CalendarBlockParams) Type() Type { return TypeCalendarBlock }
func (CalendarBlockParams) isParams()  {}

func (p CalendarBlockParams) Validate() error {
	if p.DurationMinutes < MinBlockMinutes || p.DurationMinutes > MaxBlockMinutes {
		return fmt.Errorf("%w: duration_minutes must be between %d and %d, got %d",
			ErrInvalidParams, MinBlockMinutes, MaxBlockMinutes, p.DurationMinutes)
	}
	if strings.TrimSpace(p.Purpose) == "" {
		return fmt.Errorf("%w: purpose is required", ErrInvalidParams)
	}
	if _, err := aitime.ParseTimeSpec(p.TimeWindow); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// Spec returns the parsed time window; empty means unset.
func (p CalendarBlockParams) Spec() (aitime.TimeSpec, error) {
	return aitime.ParseTimeSpec(p.TimeWindow)
}

// JournalEntryParams asks for a journal entry seeded with a prompt.
type JournalEntryParams struct {
	PromptTemplate string `json:"prompt_template"`
}

func (JournalEntryParams) Type() Type { return TypeJournalEntry }
func (JournalEntryParams) isParams()  {}

func (p JournalEntryParams) Validate() error {
	if strings.TrimSpace(p.PromptTemplate) == "" {
		return fmt.Errorf("%w: prompt_template is required", ErrInvalidParams)
	}
	return nil
}

// RetakeQuizParams suggests retaking the wellness quiz.
type RetakeQuizParams struct {
	Reason string `json:"reason,omitempty"`
}

func (RetakeQuizParams) Type() Type      { return TypeRetakeQuiz }
func (RetakeQuizParams) isParams()       {}
func (RetakeQuizParams) Validate() error { return nil }

// DecodeParams decodes raw JSON into the variant for t and validates it.
// Unknown fields are rejected.
func DecodeParams(t Type, raw json.RawMessage) (Params, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}

	var params Params
	var err error
	switch t {
	case TypeCalendarBlock:
		var p CalendarBlockParams
		err = decodeStrict(raw, &p)
		params = p
	case TypeJournalEntry:
		var p JournalEntryParams
		err = decodeStrict(raw, &p)
		params = p
	case TypeRetakeQuiz:
		var p RetakeQuizParams
		err = decodeStrict(raw, &p)
		params = p
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidParams, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Record is one suggested action and the user's response to it.
type Record struct {
	ID        int64
	UserID    int32
	Type      Type
	Outcome   Outcome
	Timestamp time.Time
	// ScheduledAt is the booked start, when the action produced a booking.
	ScheduledAt *time.Time
	Params      Params
}

// IsConfirmedScheduling reports whether the record is a confirmed calendar block.
func (r Record) IsConfirmedScheduling() bool {
	return r.Type == TypeCalendarBlock && r.Outcome == OutcomeConfirmed
}
