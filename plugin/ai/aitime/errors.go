package aitime

import (
	"errors"
	"fmt"
)

var (
	// ErrParse matches every ParseError via errors.Is.
	ErrParse = errors.New("unrecognized time spec")

	// ErrUnsetSpec is returned when an unset spec is resolved; the caller must pick a time.
	ErrUnsetSpec = errors.New("time spec is unset")
)

// ParseError reports input that matches none of the accepted time forms.
type ParseError struct {
	Input  string
	Reason string
}

func newParseError(input, reason string) *ParseError {
	return &ParseError{Input: input, Reason: reason}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid time spec %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
