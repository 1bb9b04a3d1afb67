//go:build integration

package postgresql_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/repository/postgresql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSetup *TestDatabaseSetup

func TestMain(m *testing.M) {
	ctx := context.Background()
	setup, err := NewTestDatabase(ctx)
	if err != nil {
		panic("Failed to set up test database: " + err.Error())
	}
	testSetup = setup

	code := m.Run()
	setup.Close()
	os.Exit(code)
}

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) // Tuesday

func reset(t *testing.T) {
	t.Helper()
	require.NoError(t, testSetup.TruncateAllTables(context.Background()))
}

// seedShift creates a 09:00-17:00 shift on Tuesdays and assigns it
func seedShift(t *testing.T, employeeID string) string {
	t.Helper()
	ctx := context.Background()
	shiftID := uuid.NewString()

	_, err := testSetup.DB.Exec(ctx, `INSERT INTO shift_schedules (id, name) VALUES ($1, 'Regular')`, shiftID)
	require.NoError(t, err)
	_, err = testSetup.DB.Exec(ctx, `
		INSERT INTO shift_schedule_times (id, shift_schedule_id, day_of_week, start_time, end_time, break_duration_minutes)
		VALUES ($1, $2, 2, '09:00', '17:00', 60)`, uuid.NewString(), shiftID)
	require.NoError(t, err)
	_, err = testSetup.DB.Exec(ctx, `
		INSERT INTO employee_shift_assignments (id, employee_id, shift_schedule_id, start_date)
		VALUES ($1, $2, $3, '2026-01-01')`, uuid.NewString(), employeeID, shiftID)
	require.NoError(t, err)
	return shiftID
}

func float(f float64) *float64 { return &f }

func TestTimeEntryRepository_CreateAndRead(t *testing.T) {
	reset(t)
	ctx := context.Background()
	repo := postgresql.NewTimeEntryRepository(testSetup.DB)
	employeeID := uuid.NewString()
	shiftID := seedShift(t, employeeID)

	clockIn := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC) // 09:00 WIB
	created, err := repo.Create(ctx, timesheet.TimeEntry{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Date:       day,
		ClockIn:    timesheet.Instant(clockIn),
		ClockOut:   timesheet.RawTimePtr(timesheet.LocalTime("17:00")),
		Location:   "HQ",
		WorkType:   timesheet.WorkTypeOffice,
		ShiftID:    &shiftID,
		Breaks: []timesheet.BreakInterval{
			{ID: uuid.NewString(), DurationMinutes: float(30.5)},
			{ID: uuid.NewString(), StartTime: timesheet.RawTimePtr(timesheet.LocalTime("12:00")), EndTime: timesheet.RawTimePtr(timesheet.LocalTime("12:15"))},
		},
	})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	at, ok := got.ClockIn.Time()
	require.True(t, ok)
	assert.True(t, at.Equal(clockIn))
	require.NotNil(t, got.ClockOut)
	local, ok := got.ClockOut.Local()
	require.True(t, ok)
	assert.Equal(t, "17:00", local)
	require.Len(t, got.Breaks, 2)
	require.NotNil(t, got.Shift)
	assert.Equal(t, "09:00", got.Shift.StartTime.String())

	var duration *float64
	for _, b := range got.Breaks {
		if b.DurationMinutes != nil {
			duration = b.DurationMinutes
		}
	}
	require.NotNil(t, duration)
	assert.InDelta(t, 30.5, *duration, 0.001)

	entries, err := repo.ListByEmployeeAndDateRange(ctx, employeeID, day, day)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = repo.ListByEmployeeAndDateRange(ctx, employeeID, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimeEntryRepository_OneOpenEntryPerEmployee(t *testing.T) {
	reset(t)
	ctx := context.Background()
	repo := postgresql.NewTimeEntryRepository(testSetup.DB)
	employeeID := uuid.NewString()

	open := timesheet.TimeEntry{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Date:       day,
		ClockIn:    timesheet.LocalTime("09:00"),
		WorkType:   timesheet.WorkTypeOffice,
	}
	_, err := repo.Create(ctx, open)
	require.NoError(t, err)

	got, err := repo.GetOpenEntry(ctx, employeeID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)

	second := open
	second.ID = uuid.NewString()
	_, err = repo.Create(ctx, second)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "23505", pgErr.Code)

	_, err = repo.GetOpenEntry(ctx, uuid.NewString())
	assert.ErrorIs(t, err, timesheet.ErrEntryNotFound)
}

func TestTimeEntryRepository_BreaksAndUpdate(t *testing.T) {
	reset(t)
	ctx := context.Background()
	repo := postgresql.NewTimeEntryRepository(testSetup.DB)
	employeeID := uuid.NewString()

	entry, err := repo.Create(ctx, timesheet.TimeEntry{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Date:       day,
		ClockIn:    timesheet.LocalTime("09:00"),
		WorkType:   timesheet.WorkTypeRemote,
	})
	require.NoError(t, err)

	b, err := repo.AddBreak(ctx, entry.ID, timesheet.BreakInterval{
		ID:        uuid.NewString(),
		StartTime: timesheet.RawTimePtr(timesheet.LocalTime("12:00")),
	})
	require.NoError(t, err)

	b.EndTime = timesheet.RawTimePtr(timesheet.LocalTime("12:45"))
	require.NoError(t, repo.UpdateBreak(ctx, entry.ID, b))

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, got.Breaks, 1)
	require.NotNil(t, got.Breaks[0].EndTime)
	assert.Equal(t, "12:45", got.Breaks[0].EndTime.String())

	err = repo.UpdateBreak(ctx, entry.ID, timesheet.BreakInterval{ID: uuid.NewString()})
	assert.ErrorIs(t, err, timesheet.ErrBreakNotFound)

	// Update replaces the break list
	got.ClockOut = timesheet.RawTimePtr(timesheet.LocalTime("18:00"))
	got.Breaks = []timesheet.BreakInterval{{ID: uuid.NewString(), DurationMinutes: float(20)}}
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsOpen())
	require.Len(t, updated.Breaks, 1)
	assert.Nil(t, updated.Breaks[0].StartTime)

	require.NoError(t, repo.RemoveBreak(ctx, entry.ID, updated.Breaks[0].ID))
	assert.ErrorIs(t, repo.RemoveBreak(ctx, entry.ID, updated.Breaks[0].ID), timesheet.ErrBreakNotFound)

	require.NoError(t, repo.Delete(ctx, entry.ID))
	_, err = repo.GetByID(ctx, entry.ID)
	assert.ErrorIs(t, err, timesheet.ErrEntryNotFound)
}

func TestTimeEntryRepository_ListFilters(t *testing.T) {
	reset(t)
	ctx := context.Background()
	repo := postgresql.NewTimeEntryRepository(testSetup.DB)
	employeeID := uuid.NewString()

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, timesheet.TimeEntry{
			ID:         uuid.NewString(),
			EmployeeID: employeeID,
			Date:       day.AddDate(0, 0, i),
			ClockIn:    timesheet.LocalTime("09:00"),
			ClockOut:   timesheet.RawTimePtr(timesheet.LocalTime("17:00")),
			WorkType:   timesheet.WorkTypeOffice,
		})
		require.NoError(t, err)
	}

	start := "2026-03-11"
	entries, total, err := repo.List(ctx, timesheet.EntryFilter{EmployeeID: &employeeID, StartDate: &start, Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 1)
	// newest first
	assert.Equal(t, "2026-03-12", entries[0].Date.Format(timesheet.DateLayout))
}

func TestShiftRepository_GetForEmployeeAndDate(t *testing.T) {
	reset(t)
	ctx := context.Background()
	repo := postgresql.NewShiftRepository(testSetup.DB)
	employeeID := uuid.NewString()
	shiftID := seedShift(t, employeeID)

	shift, err := repo.GetForEmployeeAndDate(ctx, employeeID, day)
	require.NoError(t, err)
	assert.Equal(t, shiftID, shift.ID)
	assert.Equal(t, "09:00", shift.StartTime.String())
	assert.Equal(t, "17:00", shift.EndTime.String())
	require.NotNil(t, shift.BreakDurationMinutes)
	assert.Equal(t, 60, *shift.BreakDurationMinutes)

	// Wednesday has no times: day off
	_, err = repo.GetForEmployeeAndDate(ctx, employeeID, day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, timesheet.ErrShiftNotFound)

	// before the assignment started
	_, err = repo.GetForEmployeeAndDate(ctx, employeeID, time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, timesheet.ErrShiftNotFound)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	reset(t)
	ctx := context.Background()
	repo := postgresql.NewTimeEntryRepository(testSetup.DB)
	tx := postgresql.NewTransactor(testSetup.DB)
	id := uuid.NewString()
	boom := errors.New("boom")

	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := repo.Create(ctx, timesheet.TimeEntry{
			ID:         id,
			EmployeeID: uuid.NewString(),
			Date:       day,
			ClockIn:    timesheet.LocalTime("09:00"),
			WorkType:   timesheet.WorkTypeOffice,
		})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, timesheet.ErrEntryNotFound)
}
