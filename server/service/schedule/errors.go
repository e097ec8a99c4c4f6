package schedule

import (
	"errors"
	"fmt"
)

// ErrConflict matches every *ConflictError.
var ErrConflict = errors.New("schedule conflict")

// ConflictError is returned by an EventCreator that finds an overlapping
// event at write time.
type ConflictError struct {
	Message string
	Event   *BusyInterval
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ExternalFetchError reports a busy-interval source that could not be read.
type ExternalFetchError struct {
	CalendarID string
	Cause      error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("fetch busy intervals for calendar %q: %v", e.CalendarID, e.Cause)
}

func (e *ExternalFetchError) Unwrap() error {
	return e.Cause
}
