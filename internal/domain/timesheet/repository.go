package timesheet

import (
	"context"
	"time"
)

// TimeEntryRepository is the persistence contract for raw entries.
type TimeEntryRepository interface {
	// ListByEmployeeAndDateRange returns entries with breaks and attached
	// shift for the inclusive date range, ordered by date then clock-in.
	ListByEmployeeAndDateRange(ctx context.Context, employeeID string, from, to time.Time) ([]TimeEntry, error)

	// List returns entries across employees for admin listing and export
	List(ctx context.Context, filter EntryFilter) ([]TimeEntry, int64, error)

	GetByID(ctx context.Context, id string) (TimeEntry, error)

	// GetOpenEntry returns the latest entry without a clock-out
	GetOpenEntry(ctx context.Context, employeeID string) (TimeEntry, error)

	Create(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	Update(ctx context.Context, entry TimeEntry) error
	Delete(ctx context.Context, id string) error

	AddBreak(ctx context.Context, entryID string, b BreakInterval) (BreakInterval, error)
	UpdateBreak(ctx context.Context, entryID string, b BreakInterval) error
	RemoveBreak(ctx context.Context, entryID string, breakID string) error
}

// ShiftRepository resolves the shift assigned to an employee on a date.
type ShiftRepository interface {
	GetForEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*ShiftSchedule, error)
}
