package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken):
		Unauthorized(w, "Invalid token")
	case errors.Is(err, jwt.ErrMissingEmployeeID), errors.Is(err, timesheet.ErrEmployeeRequired):
		Unauthorized(w, err.Error())
	case errors.Is(err, jwt.ErrAdminRequired):
		Forbidden(w, "Admin privilege required")

	// Timesheet lookups
	case errors.Is(err, timesheet.ErrEntryNotFound):
		NotFound(w, "Time entry not found")
	case errors.Is(err, timesheet.ErrBreakNotFound):
		NotFound(w, "Break not found")
	case errors.Is(err, timesheet.ErrShiftNotFound):
		NotFound(w, "Shift schedule not found")
	case errors.Is(err, timesheet.ErrEntryNotOwned):
		Forbidden(w, err.Error())

	// Clock state
	case errors.Is(err, timesheet.ErrAlreadyClockedIn):
		ConflictWithCode(w, "ALREADY_CLOCKED_IN", err.Error())
	case errors.Is(err, timesheet.ErrNotClockedIn):
		ConflictWithCode(w, "NOT_CLOCKED_IN", err.Error())
	case errors.Is(err, timesheet.ErrBreakAlreadyActive):
		ConflictWithCode(w, "BREAK_ALREADY_ACTIVE", err.Error())
	case errors.Is(err, timesheet.ErrNoActiveBreak):
		ConflictWithCode(w, "NO_ACTIVE_BREAK", err.Error())

	default:
		slog.Error("Unhandled request error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
