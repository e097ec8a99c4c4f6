package v1

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/selfcare/plugin/ai/action"
	"github.com/hrygo/selfcare/plugin/ai/aitime"
	apierrors "github.com/hrygo/selfcare/server/internal/errors"
	"github.com/hrygo/selfcare/server/internal/observability"
	"github.com/hrygo/selfcare/server/service/schedule"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    apierrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// toSchedulingError classifies err into the API error taxonomy.
func toSchedulingError(err error) *apierrors.SchedulingError {
	var se *apierrors.SchedulingError
	var fetchErr *schedule.ExternalFetchError
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, aitime.ErrParse):
		return apierrors.Parse(err)
	case errors.Is(err, action.ErrInvalidParams), errors.Is(err, schedule.ErrInvalidRequest):
		return apierrors.InvalidArgument(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.Wrap(err, apierrors.ErrCodeTimeout, "calendar request timed out")
	case errors.Is(err, context.Canceled):
		return apierrors.ContextCanceled(err)
	case errors.As(err, &fetchErr), errors.Is(err, schedule.ErrBookingFailed):
		return apierrors.CalendarUnavailable(err)
	default:
		return apierrors.Internal(err)
	}
}

// respondError writes err as an ErrorResponse with the status of its code.
// Internal causes are logged, not returned.
func respondError(c echo.Context, err error) error {
	se := toSchedulingError(err)
	message := se.Message
	if se.Cause != nil && se.Code != apierrors.ErrCodeInternal {
		message = message + ": " + se.Cause.Error()
	}

	logger := observability.Logger(c.Request().Context())
	if se.Code == apierrors.ErrCodeInternal || se.Code == apierrors.ErrCodeCalendarUnavailable {
		logger.Error("request failed",
			slog.String(observability.LogFieldErrorCode, string(se.Code)),
			slog.Any("error", err),
		)
	} else {
		logger.Debug("request rejected",
			slog.String(observability.LogFieldErrorCode, string(se.Code)),
			slog.String("message", message),
		)
	}
	return c.JSON(se.Code.HTTPStatus(), ErrorResponse{Code: se.Code, Message: message})
}

func invalidArgument(c echo.Context, message string) error {
	return respondError(c, apierrors.InvalidArgument(message))
}
