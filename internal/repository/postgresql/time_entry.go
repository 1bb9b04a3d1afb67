package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type timeEntryRepository struct {
	db *database.DB
}

func NewTimeEntryRepository(db *database.DB) timesheet.TimeEntryRepository {
	return &timeEntryRepository{db: db}
}

// The attached shift is the entry's own shift for the weekday of the entry
const selectTimeEntry = `
	SELECT
		te.id, te.employee_id, te.entry_date,
		te.clock_in_at, te.clock_in_local, te.clock_out_at, te.clock_out_local,
		te.location, te.work_type, te.shift_schedule_id,
		te.created_at, te.updated_at,
		ss.name,
		to_char(sst.start_time, 'HH24:MI'),
		to_char(sst.end_time, 'HH24:MI'),
		sst.break_duration_minutes
	FROM time_entries te
	LEFT JOIN shift_schedules ss
		ON ss.id = te.shift_schedule_id AND ss.deleted_at IS NULL
	LEFT JOIN shift_schedule_times sst
		ON sst.shift_schedule_id = ss.id
		AND sst.day_of_week = EXTRACT(ISODOW FROM te.entry_date)::int
`

type timeEntryRow struct {
	ID            string
	EmployeeID    string
	Date          time.Time
	ClockInAt     *time.Time
	ClockInLocal  *string
	ClockOutAt    *time.Time
	ClockOutLocal *string
	Location      string
	WorkType      string
	ShiftID       *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ShiftName     *string
	ShiftStart    *string
	ShiftEnd      *string
	ShiftBreak    *int
}

func (r *timeEntryRow) scanTargets() []interface{} {
	return []interface{}{
		&r.ID, &r.EmployeeID, &r.Date,
		&r.ClockInAt, &r.ClockInLocal, &r.ClockOutAt, &r.ClockOutLocal,
		&r.Location, &r.WorkType, &r.ShiftID,
		&r.CreatedAt, &r.UpdatedAt,
		&r.ShiftName, &r.ShiftStart, &r.ShiftEnd, &r.ShiftBreak,
	}
}

func (r *timeEntryRow) toEntity() timesheet.TimeEntry {
	e := timesheet.TimeEntry{
		ID:         r.ID,
		EmployeeID: r.EmployeeID,
		Date:       r.Date,
		ClockOut:   rawFromColumns(r.ClockOutAt, r.ClockOutLocal),
		Location:   r.Location,
		WorkType:   timesheet.WorkType(r.WorkType),
		ShiftID:    r.ShiftID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if in := rawFromColumns(r.ClockInAt, r.ClockInLocal); in != nil {
		e.ClockIn = *in
	}
	if r.ShiftID != nil && r.ShiftStart != nil && r.ShiftEnd != nil {
		sh := &timesheet.ShiftSchedule{
			ID:                   *r.ShiftID,
			StartTime:            timesheet.LocalTime(*r.ShiftStart),
			EndTime:              timesheet.LocalTime(*r.ShiftEnd),
			BreakDurationMinutes: r.ShiftBreak,
		}
		if r.ShiftName != nil {
			sh.Name = *r.ShiftName
		}
		e.Shift = sh
	}
	return e
}

// rawFromColumns rebuilds a RawTime from its instant/local column pair
func rawFromColumns(at *time.Time, local *string) *timesheet.RawTime {
	switch {
	case at != nil:
		return timesheet.RawTimePtr(timesheet.Instant(at.UTC()))
	case local != nil:
		return timesheet.RawTimePtr(timesheet.LocalTime(*local))
	}
	return nil
}

func rawToColumns(r *timesheet.RawTime) (*time.Time, *string) {
	if r == nil || r.IsZero() {
		return nil, nil
	}
	if t, ok := r.Time(); ok {
		utc := t.UTC()
		return &utc, nil
	}
	s, _ := r.Local()
	return nil, &s
}

func (t *timeEntryRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]timesheet.TimeEntry, error) {
	q := GetQuerier(ctx, t.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	var entries []timesheet.TimeEntry
	for rows.Next() {
		var row timeEntryRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, row.toEntity())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time entries: %w", err)
	}

	if err := t.attachBreaks(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (t *timeEntryRepository) attachBreaks(ctx context.Context, entries []timesheet.TimeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q := GetQuerier(ctx, t.db)

	ids := make([]string, 0, len(entries))
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		ids = append(ids, e.ID)
		index[e.ID] = i
	}

	rows, err := q.Query(ctx, `
		SELECT id, time_entry_id, start_at, start_local, end_at, end_local, duration_minutes::float8
		FROM time_entry_breaks
		WHERE time_entry_id = ANY($1::uuid[])
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query breaks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b                  timesheet.BreakInterval
			entryID            string
			startAt, endAt     *time.Time
			startLoc, endLocal *string
		)
		if err := rows.Scan(&b.ID, &entryID, &startAt, &startLoc, &endAt, &endLocal, &b.DurationMinutes); err != nil {
			return fmt.Errorf("failed to scan break: %w", err)
		}
		b.StartTime = rawFromColumns(startAt, startLoc)
		b.EndTime = rawFromColumns(endAt, endLocal)
		if i, ok := index[entryID]; ok {
			entries[i].Breaks = append(entries[i].Breaks, b)
		}
	}
	return rows.Err()
}

// ListByEmployeeAndDateRange implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) ListByEmployeeAndDateRange(ctx context.Context, employeeID string, from, to time.Time) ([]timesheet.TimeEntry, error) {
	return t.queryEntries(ctx, selectTimeEntry+`
		WHERE te.employee_id = $1 AND te.entry_date BETWEEN $2::date AND $3::date
		ORDER BY te.entry_date, te.created_at
	`, employeeID, from, to)
}

// List implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) List(ctx context.Context, filter timesheet.EntryFilter) ([]timesheet.TimeEntry, int64, error) {
	q := GetQuerier(ctx, t.db)

	baseWhere := "1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		baseWhere += fmt.Sprintf(" AND te.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.StartDate != nil && *filter.StartDate != "" {
		baseWhere += fmt.Sprintf(" AND te.entry_date >= $%d::date", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		baseWhere += fmt.Sprintf(" AND te.entry_date <= $%d::date", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM time_entries te WHERE "+baseWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count time entries: %w", err)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	page := max(filter.Page, 1)
	args = append(args, limit, (page-1)*limit)

	entries, err := t.queryEntries(ctx, selectTimeEntry+fmt.Sprintf(`
		WHERE %s
		ORDER BY te.entry_date DESC, te.created_at DESC
		LIMIT $%d OFFSET $%d
	`, baseWhere, argIdx, argIdx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// GetByID implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) GetByID(ctx context.Context, id string) (timesheet.TimeEntry, error) {
	entries, err := t.queryEntries(ctx, selectTimeEntry+" WHERE te.id = $1", id)
	if err != nil {
		return timesheet.TimeEntry{}, err
	}
	if len(entries) == 0 {
		return timesheet.TimeEntry{}, timesheet.ErrEntryNotFound
	}
	return entries[0], nil
}

// GetOpenEntry implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) GetOpenEntry(ctx context.Context, employeeID string) (timesheet.TimeEntry, error) {
	entries, err := t.queryEntries(ctx, selectTimeEntry+`
		WHERE te.employee_id = $1 AND te.clock_out_at IS NULL AND te.clock_out_local IS NULL
		ORDER BY te.entry_date DESC, te.created_at DESC
		LIMIT 1
	`, employeeID)
	if err != nil {
		return timesheet.TimeEntry{}, err
	}
	if len(entries) == 0 {
		return timesheet.TimeEntry{}, timesheet.ErrEntryNotFound
	}
	return entries[0], nil
}

// Create implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) Create(ctx context.Context, entry timesheet.TimeEntry) (timesheet.TimeEntry, error) {
	q := GetQuerier(ctx, t.db)

	inAt, inLocal := rawToColumns(&entry.ClockIn)
	outAt, outLocal := rawToColumns(entry.ClockOut)

	err := q.QueryRow(ctx, `
		INSERT INTO time_entries (
			id, employee_id, entry_date,
			clock_in_at, clock_in_local, clock_out_at, clock_out_local,
			location, work_type, shift_schedule_id
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`,
		entry.ID, entry.EmployeeID, entry.Date,
		inAt, inLocal, outAt, outLocal,
		entry.Location, string(entry.WorkType), entry.ShiftID,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return timesheet.TimeEntry{}, fmt.Errorf("failed to create time entry: %w", err)
	}

	for i, b := range entry.Breaks {
		created, err := t.AddBreak(ctx, entry.ID, b)
		if err != nil {
			return timesheet.TimeEntry{}, err
		}
		entry.Breaks[i] = created
	}
	return entry, nil
}

// Update implements timesheet.TimeEntryRepository. Breaks are replaced
// by the ones carried on entry.
func (t *timeEntryRepository) Update(ctx context.Context, entry timesheet.TimeEntry) error {
	q := GetQuerier(ctx, t.db)

	inAt, inLocal := rawToColumns(&entry.ClockIn)
	outAt, outLocal := rawToColumns(entry.ClockOut)

	tag, err := q.Exec(ctx, `
		UPDATE time_entries SET
			entry_date = $2::date,
			clock_in_at = $3, clock_in_local = $4,
			clock_out_at = $5, clock_out_local = $6,
			location = $7, work_type = $8, shift_schedule_id = $9,
			updated_at = NOW()
		WHERE id = $1
	`,
		entry.ID, entry.Date,
		inAt, inLocal, outAt, outLocal,
		entry.Location, string(entry.WorkType), entry.ShiftID,
	)
	if err != nil {
		return fmt.Errorf("failed to update time entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrEntryNotFound
	}

	if _, err := q.Exec(ctx, "DELETE FROM time_entry_breaks WHERE time_entry_id = $1", entry.ID); err != nil {
		return fmt.Errorf("failed to clear breaks: %w", err)
	}
	for _, b := range entry.Breaks {
		if _, err := t.AddBreak(ctx, entry.ID, b); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, t.db)

	tag, err := q.Exec(ctx, "DELETE FROM time_entries WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrEntryNotFound
	}
	return nil
}

// AddBreak implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) AddBreak(ctx context.Context, entryID string, b timesheet.BreakInterval) (timesheet.BreakInterval, error) {
	q := GetQuerier(ctx, t.db)

	startAt, startLocal := rawToColumns(b.StartTime)
	endAt, endLocal := rawToColumns(b.EndTime)

	_, err := q.Exec(ctx, `
		INSERT INTO time_entry_breaks (id, time_entry_id, start_at, start_local, end_at, end_local, duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, entryID, startAt, startLocal, endAt, endLocal, b.DurationMinutes)
	if err != nil {
		return timesheet.BreakInterval{}, fmt.Errorf("failed to add break: %w", err)
	}
	return b, nil
}

// UpdateBreak implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) UpdateBreak(ctx context.Context, entryID string, b timesheet.BreakInterval) error {
	q := GetQuerier(ctx, t.db)

	startAt, startLocal := rawToColumns(b.StartTime)
	endAt, endLocal := rawToColumns(b.EndTime)

	tag, err := q.Exec(ctx, `
		UPDATE time_entry_breaks SET
			start_at = $3, start_local = $4, end_at = $5, end_local = $6, duration_minutes = $7
		WHERE id = $1 AND time_entry_id = $2
	`, b.ID, entryID, startAt, startLocal, endAt, endLocal, b.DurationMinutes)
	if err != nil {
		return fmt.Errorf("failed to update break: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrBreakNotFound
	}
	return nil
}

// RemoveBreak implements timesheet.TimeEntryRepository.
func (t *timeEntryRepository) RemoveBreak(ctx context.Context, entryID string, breakID string) error {
	q := GetQuerier(ctx, t.db)

	tag, err := q.Exec(ctx, "DELETE FROM time_entry_breaks WHERE id = $1 AND time_entry_id = $2", breakID, entryID)
	if err != nil {
		return fmt.Errorf("failed to remove break: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrBreakNotFound
	}
	return nil
}

// isNoRows reports whether err is pgx's empty-result error
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
