package timesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/refresh"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Transactor runs fn in one database transaction
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Invalidator is the refresh signal raised after every successful change
type Invalidator interface {
	Invalidate(employeeID string, reason refresh.Reason) int
}

type CommandServiceImpl struct {
	snapshot
	tx      Transactor
	trigger Invalidator
}

func NewCommandService(
	tx Transactor,
	entryRepo timesheet.TimeEntryRepository,
	shiftRepo timesheet.ShiftRepository,
	engine *Engine,
	trigger Invalidator,
) timesheet.CommandService {
	return &CommandServiceImpl{
		snapshot: snapshot{entries: entryRepo, shifts: shiftRepo, engine: engine},
		tx:       tx,
		trigger:  trigger,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// mapWriteError turns constraint violations into domain errors
func mapWriteError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation: second open entry
			return timesheet.ErrAlreadyClockedIn
		case "23503": // foreign_key_violation: unknown shift
			return timesheet.ErrShiftNotFound
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// openEntry returns the running entry or ErrNotClockedIn
func (c *CommandServiceImpl) openEntry(ctx context.Context, employeeID string) (timesheet.TimeEntry, error) {
	open, err := c.entries.GetOpenEntry(ctx, employeeID)
	if err != nil {
		if errors.Is(err, timesheet.ErrEntryNotFound) {
			return timesheet.TimeEntry{}, timesheet.ErrNotClockedIn
		}
		return timesheet.TimeEntry{}, fmt.Errorf("failed to get open entry: %w", err)
	}
	return open, nil
}

// settle answers a clock action. The day is first computed from the
// pre-change snapshot with the change applied (provisional), listeners are
// invalidated, and the provisional day is then reconciled with a fresh read.
func (c *CommandServiceImpl) settle(ctx context.Context, changed timesheet.TimeEntry, before []timesheet.TimeEntry, shift *timesheet.ShiftSchedule) timesheet.ClockActionResponse {
	entries := replaceEntry(before, changed)
	provisional := c.engine.BuildDay(changed.EmployeeID, changed.Date, entries, shift)
	provisional.Provisional = true

	c.trigger.Invalidate(changed.EmployeeID, refresh.ReasonClockAction)

	day := provisional
	authoritative, err := c.day(ctx, changed.EmployeeID, changed.Date)
	if err != nil {
		slog.Warn("Failed to re-read day after clock action, keeping provisional summary",
			"employee_id", changed.EmployeeID, "entry_id", changed.ID, "error", err)
	} else {
		day = Reconcile(provisional, authoritative)
	}

	return timesheet.ClockActionResponse{
		Entry: mapEntryToResponse(changed),
		Day:   mapDaySummaryToResponse(day),
	}
}

func replaceEntry(entries []timesheet.TimeEntry, changed timesheet.TimeEntry) []timesheet.TimeEntry {
	out := make([]timesheet.TimeEntry, 0, len(entries)+1)
	found := false
	for _, e := range entries {
		if e.ID == changed.ID {
			e = changed
			found = true
		}
		out = append(out, e)
	}
	if !found {
		out = append(out, changed)
	}
	return out
}

// ClockIn implements timesheet.CommandService.
func (c *CommandServiceImpl) ClockIn(ctx context.Context, req timesheet.ClockInRequest) (timesheet.ClockActionResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	_, err := c.entries.GetOpenEntry(ctx, req.EmployeeID)
	if err == nil {
		return timesheet.ClockActionResponse{}, timesheet.ErrAlreadyClockedIn
	}
	if !errors.Is(err, timesheet.ErrEntryNotFound) {
		return timesheet.ClockActionResponse{}, fmt.Errorf("failed to check open entry: %w", err)
	}

	now := c.engine.Clock().Now().UTC()
	today := c.engine.Today()
	event := timesheet.NewClockEvent(req.EmployeeID, timesheet.ClockEventIn, now)

	before, shift, err := c.loadDay(ctx, req.EmployeeID, today)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	entry := timesheet.TimeEntry{
		ID:         newID(),
		EmployeeID: req.EmployeeID,
		Date:       today,
		ClockIn:    timesheet.Instant(event.Timestamp),
		Location:   req.Location,
		WorkType:   timesheet.WorkType(req.WorkType),
		ShiftID:    req.ShiftID,
	}

	created, err := c.entries.Create(ctx, entry)
	if err != nil {
		return timesheet.ClockActionResponse{}, mapWriteError(err, "clock in")
	}

	slog.Info("Employee clocked in", "employee_id", created.EmployeeID, "entry_id", created.ID, "at", event.Timestamp)
	res := c.settle(ctx, created, before, shift)
	res.Event = &event
	return res, nil
}

// ClockOut implements timesheet.CommandService. A running break is closed
// at the same instant.
func (c *CommandServiceImpl) ClockOut(ctx context.Context, req timesheet.ClockOutRequest) (timesheet.ClockActionResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	open, err := c.openEntry(ctx, req.EmployeeID)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}
	before, shift, err := c.loadDay(ctx, open.EmployeeID, open.Date)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	event := timesheet.NewClockEvent(open.EmployeeID, timesheet.ClockEventOut, c.engine.Clock().Now())
	now := timesheet.Instant(event.Timestamp)
	if i := open.OpenBreak(); i >= 0 {
		open.Breaks[i].EndTime = timesheet.RawTimePtr(now)
	}
	open.ClockOut = timesheet.RawTimePtr(now)
	if open.Location == "" && req.Location != "" {
		open.Location = req.Location
	}

	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		return c.entries.Update(ctx, open)
	})
	if err != nil {
		return timesheet.ClockActionResponse{}, mapWriteError(err, "clock out")
	}

	slog.Info("Employee clocked out", "employee_id", open.EmployeeID, "entry_id", open.ID, "at", event.Timestamp)
	res := c.settle(ctx, open, before, shift)
	res.Event = &event
	return res, nil
}

// StartBreak implements timesheet.CommandService.
func (c *CommandServiceImpl) StartBreak(ctx context.Context, req timesheet.BreakRequest) (timesheet.ClockActionResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	open, err := c.openEntry(ctx, req.EmployeeID)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}
	if open.OpenBreak() >= 0 {
		return timesheet.ClockActionResponse{}, timesheet.ErrBreakAlreadyActive
	}
	before, shift, err := c.loadDay(ctx, open.EmployeeID, open.Date)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	b := timesheet.BreakInterval{
		ID:        newID(),
		StartTime: timesheet.RawTimePtr(timesheet.Instant(c.engine.Clock().Now().UTC())),
	}
	created, err := c.entries.AddBreak(ctx, open.ID, b)
	if err != nil {
		return timesheet.ClockActionResponse{}, mapWriteError(err, "start break")
	}
	open.Breaks = append(open.Breaks, created)

	return c.settle(ctx, open, before, shift), nil
}

// EndBreak implements timesheet.CommandService.
func (c *CommandServiceImpl) EndBreak(ctx context.Context, req timesheet.BreakRequest) (timesheet.ClockActionResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	open, err := c.openEntry(ctx, req.EmployeeID)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}
	i := open.OpenBreak()
	if i < 0 {
		return timesheet.ClockActionResponse{}, timesheet.ErrNoActiveBreak
	}
	before, shift, err := c.loadDay(ctx, open.EmployeeID, open.Date)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	open.Breaks[i].EndTime = timesheet.RawTimePtr(timesheet.Instant(c.engine.Clock().Now().UTC()))
	if err := c.entries.UpdateBreak(ctx, open.ID, open.Breaks[i]); err != nil {
		return timesheet.ClockActionResponse{}, mapWriteError(err, "end break")
	}

	return c.settle(ctx, open, before, shift), nil
}

// RemoveBreak implements timesheet.CommandService.
func (c *CommandServiceImpl) RemoveBreak(ctx context.Context, req timesheet.RemoveBreakRequest) (timesheet.ClockActionResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	entry, err := c.entries.GetByID(ctx, req.EntryID)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}
	if entry.EmployeeID != req.EmployeeID {
		return timesheet.ClockActionResponse{}, timesheet.ErrEntryNotOwned
	}

	idx := -1
	for i, b := range entry.Breaks {
		if b.ID == req.BreakID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return timesheet.ClockActionResponse{}, timesheet.ErrBreakNotFound
	}

	before, shift, err := c.loadDay(ctx, entry.EmployeeID, entry.Date)
	if err != nil {
		return timesheet.ClockActionResponse{}, err
	}

	if err := c.entries.RemoveBreak(ctx, entry.ID, req.BreakID); err != nil {
		return timesheet.ClockActionResponse{}, mapWriteError(err, "remove break")
	}
	entry.Breaks = append(entry.Breaks[:idx:idx], entry.Breaks[idx+1:]...)

	return c.settle(ctx, entry, before, shift), nil
}

// UpdateEntry implements timesheet.CommandService.
func (c *CommandServiceImpl) UpdateEntry(ctx context.Context, req timesheet.UpdateEntryRequest) (timesheet.EntryResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.EntryResponse{}, err
	}

	entry, err := c.entries.GetByID(ctx, req.ID)
	if err != nil {
		return timesheet.EntryResponse{}, err
	}

	req.Apply(&entry)
	for i := range entry.Breaks {
		if entry.Breaks[i].ID == "" {
			entry.Breaks[i].ID = newID()
		}
	}

	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		return c.entries.Update(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, timesheet.ErrEntryNotFound) {
			return timesheet.EntryResponse{}, err
		}
		return timesheet.EntryResponse{}, mapWriteError(err, "update time entry")
	}

	c.trigger.Invalidate(entry.EmployeeID, refresh.ReasonManualEdit)
	slog.Info("Time entry updated", "entry_id", entry.ID, "employee_id", entry.EmployeeID)

	updated, err := c.entries.GetByID(ctx, entry.ID)
	if err != nil {
		slog.Warn("Failed to re-read updated time entry", "entry_id", entry.ID, "error", err)
		return mapEntryToResponse(entry), nil
	}
	return mapEntryToResponse(updated), nil
}

// DeleteEntry implements timesheet.CommandService.
func (c *CommandServiceImpl) DeleteEntry(ctx context.Context, id string) error {
	entry, err := c.entries.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := c.entries.Delete(ctx, id); err != nil {
		if errors.Is(err, timesheet.ErrEntryNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete time entry: %w", err)
	}

	c.trigger.Invalidate(entry.EmployeeID, refresh.ReasonManualEdit)
	slog.Info("Time entry deleted", "entry_id", id, "employee_id", entry.EmployeeID, "date", entry.Date.Format(timesheet.DateLayout))
	return nil
}
