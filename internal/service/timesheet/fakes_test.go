package timesheet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/refresh"
)

var errFakeDown = errors.New("fake store unavailable")

type fakeEntryRepo struct {
	mu        sync.Mutex
	entries   map[string]timesheet.TimeEntry
	createErr error
	failReads bool
	onWrite   func()
}

func newFakeEntryRepo(entries ...timesheet.TimeEntry) *fakeEntryRepo {
	r := &fakeEntryRepo{entries: make(map[string]timesheet.TimeEntry)}
	for _, e := range entries {
		r.entries[e.ID] = copyEntry(e)
	}
	return r
}

func copyEntry(e timesheet.TimeEntry) timesheet.TimeEntry {
	e.Breaks = append([]timesheet.BreakInterval(nil), e.Breaks...)
	return e
}

func (r *fakeEntryRepo) written() {
	if r.onWrite != nil {
		r.onWrite()
	}
}

func (r *fakeEntryRepo) sorted(keep func(timesheet.TimeEntry) bool) []timesheet.TimeEntry {
	var out []timesheet.TimeEntry
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *fakeEntryRepo) ListByEmployeeAndDateRange(ctx context.Context, employeeID string, from, to time.Time) ([]timesheet.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errFakeDown
	}
	return r.sorted(func(e timesheet.TimeEntry) bool {
		return e.EmployeeID == employeeID && !e.Date.Before(from) && !e.Date.After(to)
	}), nil
}

func (r *fakeEntryRepo) List(ctx context.Context, filter timesheet.EntryFilter) ([]timesheet.TimeEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(func(e timesheet.TimeEntry) bool {
		return filter.EmployeeID == nil || e.EmployeeID == *filter.EmployeeID
	})
	start := min((filter.Page-1)*filter.Limit, len(all))
	end := min(start+filter.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (r *fakeEntryRepo) GetByID(ctx context.Context, id string) (timesheet.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return timesheet.TimeEntry{}, timesheet.ErrEntryNotFound
	}
	return copyEntry(e), nil
}

func (r *fakeEntryRepo) GetOpenEntry(ctx context.Context, employeeID string) (timesheet.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	open := r.sorted(func(e timesheet.TimeEntry) bool {
		return e.EmployeeID == employeeID && e.IsOpen()
	})
	if len(open) == 0 {
		return timesheet.TimeEntry{}, timesheet.ErrEntryNotFound
	}
	return open[len(open)-1], nil
}

func (r *fakeEntryRepo) Create(ctx context.Context, entry timesheet.TimeEntry) (timesheet.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return timesheet.TimeEntry{}, r.createErr
	}
	r.entries[entry.ID] = copyEntry(entry)
	r.written()
	return entry, nil
}

func (r *fakeEntryRepo) Update(ctx context.Context, entry timesheet.TimeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; !ok {
		return timesheet.ErrEntryNotFound
	}
	r.entries[entry.ID] = copyEntry(entry)
	r.written()
	return nil
}

func (r *fakeEntryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return timesheet.ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *fakeEntryRepo) AddBreak(ctx context.Context, entryID string, b timesheet.BreakInterval) (timesheet.BreakInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entryID]
	if !ok {
		return timesheet.BreakInterval{}, timesheet.ErrEntryNotFound
	}
	e = copyEntry(e)
	e.Breaks = append(e.Breaks, b)
	r.entries[entryID] = e
	r.written()
	return b, nil
}

func (r *fakeEntryRepo) UpdateBreak(ctx context.Context, entryID string, b timesheet.BreakInterval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := copyEntry(r.entries[entryID])
	for i := range e.Breaks {
		if e.Breaks[i].ID == b.ID {
			e.Breaks[i] = b
			r.entries[entryID] = e
			r.written()
			return nil
		}
	}
	return timesheet.ErrBreakNotFound
}

func (r *fakeEntryRepo) RemoveBreak(ctx context.Context, entryID string, breakID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := copyEntry(r.entries[entryID])
	for i := range e.Breaks {
		if e.Breaks[i].ID == breakID {
			e.Breaks = append(e.Breaks[:i], e.Breaks[i+1:]...)
			r.entries[entryID] = e
			r.written()
			return nil
		}
	}
	return timesheet.ErrBreakNotFound
}

// fakeShiftRepo assigns the same shift on every date
type fakeShiftRepo struct {
	shift *timesheet.ShiftSchedule
	err   error
	calls int
}

func (r *fakeShiftRepo) GetForEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*timesheet.ShiftSchedule, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.shift == nil {
		return nil, timesheet.ErrShiftNotFound
	}
	return r.shift, nil
}

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingInvalidator struct {
	mu      sync.Mutex
	reasons map[string][]refresh.Reason
}

func (r *recordingInvalidator) Invalidate(employeeID string, reason refresh.Reason) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reasons == nil {
		r.reasons = make(map[string][]refresh.Reason)
	}
	r.reasons[employeeID] = append(r.reasons[employeeID], reason)
	return 1
}

func (r *recordingInvalidator) For(employeeID string) []refresh.Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]refresh.Reason(nil), r.reasons[employeeID]...)
}
