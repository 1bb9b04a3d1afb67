package timesheet

import "errors"

// Computation errors. None of these abort a request: they degrade the
// affected field to null and are reported as issues on the DaySummary.
var (
	ErrInvalidTime        = errors.New("invalid time value")
	ErrUnresolvedBreak    = errors.New("break cannot be resolved to a duration")
	ErrMissingSchedule    = errors.New("no shift schedule attached")
	ErrOvernightAmbiguous = errors.New("end earlier than start, resolved as overnight")
	ErrMissingIdentity    = errors.New("entry has no employee or date")
)

// Command and lookup errors
var (
	ErrEntryNotFound      = errors.New("time entry not found")
	ErrBreakNotFound      = errors.New("break not found")
	ErrShiftNotFound      = errors.New("shift schedule not found")
	ErrAlreadyClockedIn   = errors.New("you are already clocked in")
	ErrNotClockedIn       = errors.New("you are not clocked in")
	ErrBreakAlreadyActive = errors.New("a break is already in progress")
	ErrNoActiveBreak      = errors.New("no break in progress")
	ErrEmployeeRequired   = errors.New("employee_id claim is missing or invalid")
	ErrEntryNotOwned      = errors.New("time entry belongs to another employee")
)
