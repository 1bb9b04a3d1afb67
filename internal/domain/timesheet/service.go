package timesheet

import (
	"context"
	"time"
)

// QueryService computes summaries from a fresh snapshot of raw entries.
// Every call re-fetches, so callers may invoke it whenever a refresh is due.
type QueryService interface {
	// GetDaySummary computes one employee-day
	GetDaySummary(ctx context.Context, employeeID string, date time.Time) (DaySummaryResponse, error)

	// GetWeekSummary computes the Monday–Sunday week containing date
	GetWeekSummary(ctx context.Context, employeeID string, date time.Time) (WeekSummaryResponse, error)

	// GetTimeline segments one employee-day for display
	GetTimeline(ctx context.Context, employeeID string, date time.Time) (TimelineResponse, error)

	// Snapshot re-fetches one day for the live stream
	Snapshot(ctx context.Context, employeeID string, date time.Time) (StreamSnapshot, error)

	// Tick re-evaluates progressive segments of a streamed timeline
	// against the current instant, without reading the store.
	Tick(live Timeline) (Timeline, TimelineResponse)

	// Today is the current calendar date in the organization timezone
	Today() time.Time

	// ListEntries lists raw entries (admin / export)
	ListEntries(ctx context.Context, filter EntryFilter) (ListEntriesResponse, error)
}

// CommandService mutates entries and triggers recomputation.
type CommandService interface {
	ClockIn(ctx context.Context, req ClockInRequest) (ClockActionResponse, error)
	ClockOut(ctx context.Context, req ClockOutRequest) (ClockActionResponse, error)
	StartBreak(ctx context.Context, req BreakRequest) (ClockActionResponse, error)
	EndBreak(ctx context.Context, req BreakRequest) (ClockActionResponse, error)
	RemoveBreak(ctx context.Context, req RemoveBreakRequest) (ClockActionResponse, error)

	// UpdateEntry is the admin manual edit
	UpdateEntry(ctx context.Context, req UpdateEntryRequest) (EntryResponse, error)

	// DeleteEntry is an explicit admin action; entries are never removed implicitly
	DeleteEntry(ctx context.Context, id string) error
}
