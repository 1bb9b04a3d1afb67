package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
)

type shiftRepository struct {
	db *database.DB
}

func NewShiftRepository(db *database.DB) timesheet.ShiftRepository {
	return &shiftRepository{db: db}
}

// GetForEmployeeAndDate implements timesheet.ShiftRepository. The latest
// assignment covering the date decides the shift; a shift without times
// for that weekday means a day off.
func (s *shiftRepository) GetForEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*timesheet.ShiftSchedule, error) {
	q := GetQuerier(ctx, s.db)

	query := `
WITH target_shift AS (
    SELECT esa.shift_schedule_id AS id
    FROM employee_shift_assignments esa
    WHERE esa.employee_id = $1
      AND $2::date >= esa.start_date
      AND (esa.end_date IS NULL OR $2::date <= esa.end_date)
    ORDER BY esa.start_date DESC, esa.created_at DESC
    LIMIT 1
)
SELECT
    ss.id,
    ss.name,
    to_char(sst.start_time, 'HH24:MI'),
    to_char(sst.end_time, 'HH24:MI'),
    sst.break_duration_minutes
FROM target_shift ts
JOIN shift_schedules ss ON ss.id = ts.id AND ss.deleted_at IS NULL
-- EXTRACT(ISODOW) is 1 (Monday) .. 7 (Sunday)
JOIN shift_schedule_times sst ON sst.shift_schedule_id = ss.id
    AND sst.day_of_week = EXTRACT(ISODOW FROM $2::date)::int
`

	var (
		shift      timesheet.ShiftSchedule
		start, end string
	)
	err := q.QueryRow(ctx, query, employeeID, date).Scan(
		&shift.ID, &shift.Name, &start, &end, &shift.BreakDurationMinutes,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, timesheet.ErrShiftNotFound
		}
		return nil, fmt.Errorf("failed to get shift for employee: %w", err)
	}

	shift.StartTime = timesheet.LocalTime(start)
	shift.EndTime = timesheet.LocalTime(end)
	return &shift, nil
}
