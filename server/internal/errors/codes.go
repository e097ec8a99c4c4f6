package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific error type for scheduling operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeParse indicates a time specification could not be parsed.
	ErrCodeParse ErrorCode = "PARSE_ERROR"
	// ErrCodeNotFound indicates the requested resource does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates the requested slot overlaps an existing event.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeNoAvailability indicates no free slot fits the request.
	ErrCodeNoAvailability ErrorCode = "NO_AVAILABILITY"
	// ErrCodeCalendarUnavailable indicates the calendar provider could not be reached.
	ErrCodeCalendarUnavailable ErrorCode = "CALENDAR_UNAVAILABLE"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an unexpected server failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// HTTPStatus maps an error code to its HTTP status.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeInvalidArgument, ErrCodeParse:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeNoAvailability:
		return http.StatusConflict
	case ErrCodeCalendarUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeContextCanceled:
		return 499
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// SchedulingError represents a structured error returned by the API.
type SchedulingError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *SchedulingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SchedulingError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *SchedulingError) WithContext(key string, value any) *SchedulingError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *SchedulingError {
	return &SchedulingError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Parse creates a parse error.
func Parse(cause error) *SchedulingError {
	return &SchedulingError{Code: ErrCodeParse, Message: "invalid time specification", Cause: cause}
}

// NotFound creates a not found error.
func NotFound(msg string) *SchedulingError {
	return &SchedulingError{Code: ErrCodeNotFound, Message: msg}
}

// Conflict creates a conflict error carrying the user-facing message.
func Conflict(msg string) *SchedulingError {
	return &SchedulingError{Code: ErrCodeConflict, Message: msg}
}

// NoAvailability creates a no availability error.
func NoAvailability(msg string) *SchedulingError {
	return &SchedulingError{Code: ErrCodeNoAvailability, Message: msg}
}

// CalendarUnavailable creates a calendar unavailable error.
func CalendarUnavailable(cause error) *SchedulingError {
	return &SchedulingError{Code: ErrCodeCalendarUnavailable, Message: "calendar unavailable", Cause: cause}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *SchedulingError {
	return &SchedulingError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *SchedulingError {
	return &SchedulingError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string) *SchedulingError {
	return &SchedulingError{Code: ErrCodeTimeout, Message: msg}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *SchedulingError {
	return &SchedulingError{Code: ErrCodeInternal, Message: "internal error", Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *SchedulingError {
	return &SchedulingError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or any error it wraps, carries code.
func IsCode(err error, code ErrorCode) bool {
	var se *SchedulingError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a SchedulingError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var se *SchedulingError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return defaultCode
}
