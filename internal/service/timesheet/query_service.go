package timesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

// snapshot reads raw entries and shifts and runs them through the engine.
// Both services share it so that commands reconcile against the same
// computation the queries serve.
type snapshot struct {
	entries timesheet.TimeEntryRepository
	shifts  timesheet.ShiftRepository
	engine  *Engine
}

// loadDay returns the raw entries of one employee-day and the assigned shift
func (s snapshot) loadDay(ctx context.Context, employeeID string, date time.Time) ([]timesheet.TimeEntry, *timesheet.ShiftSchedule, error) {
	date = CalendarDate(date)
	entries, err := s.entries.ListByEmployeeAndDateRange(ctx, employeeID, date, date)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	shifts, err := s.shiftsFor(ctx, employeeID, date, date)
	if err != nil {
		return nil, nil, err
	}
	return entries, shifts[date], nil
}

// shiftsFor resolves the assigned shift per date; future dates are skipped
// because they are never computed.
func (s snapshot) shiftsFor(ctx context.Context, employeeID string, from, to time.Time) (map[time.Time]*timesheet.ShiftSchedule, error) {
	today := s.engine.Today()
	shifts := make(map[time.Time]*timesheet.ShiftSchedule)

	for d := CalendarDate(from); !d.After(CalendarDate(to)); d = d.AddDate(0, 0, 1) {
		if d.After(today) {
			break
		}
		sh, err := s.shifts.GetForEmployeeAndDate(ctx, employeeID, d)
		if err != nil {
			if errors.Is(err, timesheet.ErrShiftNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get shift for %s: %w", d.Format(timesheet.DateLayout), err)
		}
		shifts[d] = sh
	}
	return shifts, nil
}

func (s snapshot) day(ctx context.Context, employeeID string, date time.Time) (timesheet.DaySummary, error) {
	entries, shift, err := s.loadDay(ctx, employeeID, date)
	if err != nil {
		return timesheet.DaySummary{}, err
	}

	grouped, dropped := GroupByDate(employeeID, entries)
	logDropped(employeeID, dropped)

	day := s.engine.BuildDay(employeeID, date, grouped[CalendarDate(date)], shift)
	logIssues(day)
	return day, nil
}

func (s snapshot) week(ctx context.Context, employeeID string, date time.Time) (timesheet.WeekSummary, error) {
	from := WeekStart(date)
	to := from.AddDate(0, 0, 6)

	entries, err := s.entries.ListByEmployeeAndDateRange(ctx, employeeID, from, to)
	if err != nil {
		return timesheet.WeekSummary{}, fmt.Errorf("failed to list time entries: %w", err)
	}
	shifts, err := s.shiftsFor(ctx, employeeID, from, to)
	if err != nil {
		return timesheet.WeekSummary{}, err
	}

	week, dropped := s.engine.BuildWeek(employeeID, date, entries, shifts, timesheet.WeekOverrides{})
	logDropped(employeeID, dropped)
	for _, d := range week.Days {
		logIssues(d)
	}
	return week, nil
}

func logDropped(employeeID string, dropped []timesheet.Issue) {
	for _, is := range dropped {
		slog.Debug("Skipping time entry without identity", "employee_id", employeeID, "entry_id", is.EntryID, "error", is.Err)
	}
}

func logIssues(day timesheet.DaySummary) {
	for _, is := range day.Issues {
		slog.Debug("Timesheet value degraded",
			"employee_id", day.EmployeeID,
			"date", day.Date.Format(timesheet.DateLayout),
			"entry_id", is.EntryID,
			"break_id", is.BreakID,
			"field", is.Field,
			"error", is.Err,
		)
	}
}

type QueryServiceImpl struct {
	snapshot
}

func NewQueryService(entryRepo timesheet.TimeEntryRepository, shiftRepo timesheet.ShiftRepository, engine *Engine) timesheet.QueryService {
	return &QueryServiceImpl{
		snapshot: snapshot{entries: entryRepo, shifts: shiftRepo, engine: engine},
	}
}

// GetDaySummary implements timesheet.QueryService.
func (q *QueryServiceImpl) GetDaySummary(ctx context.Context, employeeID string, date time.Time) (timesheet.DaySummaryResponse, error) {
	if employeeID == "" {
		return timesheet.DaySummaryResponse{}, timesheet.ErrEmployeeRequired
	}
	day, err := q.day(ctx, employeeID, date)
	if err != nil {
		return timesheet.DaySummaryResponse{}, err
	}
	return mapDaySummaryToResponse(day), nil
}

// GetWeekSummary implements timesheet.QueryService.
func (q *QueryServiceImpl) GetWeekSummary(ctx context.Context, employeeID string, date time.Time) (timesheet.WeekSummaryResponse, error) {
	if employeeID == "" {
		return timesheet.WeekSummaryResponse{}, timesheet.ErrEmployeeRequired
	}
	week, err := q.week(ctx, employeeID, date)
	if err != nil {
		return timesheet.WeekSummaryResponse{}, err
	}
	return mapWeekSummaryToResponse(week), nil
}

// GetTimeline implements timesheet.QueryService.
func (q *QueryServiceImpl) GetTimeline(ctx context.Context, employeeID string, date time.Time) (timesheet.TimelineResponse, error) {
	snap, err := q.Snapshot(ctx, employeeID, date)
	if err != nil {
		return timesheet.TimelineResponse{}, err
	}
	return snap.Timeline, nil
}

// Snapshot implements timesheet.QueryService.
func (q *QueryServiceImpl) Snapshot(ctx context.Context, employeeID string, date time.Time) (timesheet.StreamSnapshot, error) {
	if employeeID == "" {
		return timesheet.StreamSnapshot{}, timesheet.ErrEmployeeRequired
	}
	day, err := q.day(ctx, employeeID, date)
	if err != nil {
		return timesheet.StreamSnapshot{}, err
	}
	tl := q.engine.BuildTimeline(day)
	return timesheet.StreamSnapshot{
		Day:      mapDaySummaryToResponse(day),
		Timeline: mapTimelineToResponse(tl),
		Live:     tl,
	}, nil
}

// Tick implements timesheet.QueryService.
func (q *QueryServiceImpl) Tick(live timesheet.Timeline) (timesheet.Timeline, timesheet.TimelineResponse) {
	tl := q.engine.RefreshTimeline(live)
	return tl, mapTimelineToResponse(tl)
}

// Today implements timesheet.QueryService.
func (q *QueryServiceImpl) Today() time.Time {
	return q.engine.Today()
}

// ListEntries implements timesheet.QueryService.
func (q *QueryServiceImpl) ListEntries(ctx context.Context, filter timesheet.EntryFilter) (timesheet.ListEntriesResponse, error) {
	if err := filter.Validate(); err != nil {
		return timesheet.ListEntriesResponse{}, err
	}

	entries, total, err := q.entries.List(ctx, filter)
	if err != nil {
		return timesheet.ListEntriesResponse{}, fmt.Errorf("failed to list time entries: %w", err)
	}

	responses := make([]timesheet.EntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, mapEntryToResponse(e))
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.Limit)))
	showing := fmt.Sprintf("%d-%d of %d", (filter.Page-1)*filter.Limit+1, min(filter.Page*filter.Limit, int(total)), total)
	if total == 0 {
		showing = "0 of 0"
	}

	return timesheet.ListEntriesResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Entries:    responses,
	}, nil
}
