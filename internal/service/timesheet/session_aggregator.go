package timesheet

import (
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

type SessionAggregator struct {
	normalizer *TimeNormalizer
	breaks     *BreakResolver
}

func NewSessionAggregator(n *TimeNormalizer, b *BreakResolver) *SessionAggregator {
	return &SessionAggregator{normalizer: n, breaks: b}
}

// Aggregate maps each entry of one employee-day to a session, ordered by
// clock-in. Entries whose clock-in cannot be read are left out and
// reported; an unreadable clock-out leaves the session open.
func (a *SessionAggregator) Aggregate(entries []timesheet.TimeEntry) ([]timesheet.Session, []timesheet.Issue) {
	sessions := make([]timesheet.Session, 0, len(entries))
	var issues []timesheet.Issue

	for _, entry := range entries {
		in, err := a.normalizer.MinuteOfDay(entry.ClockIn)
		if err != nil {
			issues = append(issues, timesheet.Issue{EntryID: entry.ID, Field: "clock_in", Err: err})
			continue
		}

		s := timesheet.Session{
			EntryID:       entry.ID,
			ClockInMinute: in,
		}

		if !entry.IsOpen() {
			out, err := a.normalizer.MinuteOfDay(*entry.ClockOut)
			if err != nil {
				issues = append(issues, timesheet.Issue{EntryID: entry.ID, Field: "clock_out", Err: err})
			} else {
				s.ClockOutMinute = &out
				if out < in {
					s.Overnight = true
					issues = append(issues, timesheet.Issue{
						EntryID: entry.ID,
						Field:   "clock_out",
						Err:     fmt.Errorf("%w: %s < %s", timesheet.ErrOvernightAmbiguous, timesheet.MinuteOfDayString(out), timesheet.MinuteOfDayString(in)),
					})
				}
			}
		}

		for _, b := range entry.Breaks {
			rb, err := a.breaks.Resolve(b)
			if err != nil {
				// open breaks on a running session are expected, not an issue
				if entry.IsOpen() && b.EndTime == nil && b.DurationMinutes == nil {
					if start, ok := a.runningBreakStart(b, in); ok {
						if s.OpenBreakMinute == nil || start > *s.OpenBreakMinute {
							s.OpenBreakMinute = &start
						}
					}
					continue
				}
				issues = append(issues, timesheet.Issue{EntryID: entry.ID, BreakID: b.ID, Field: "breaks", Err: err})
				continue
			}
			s.Breaks = append(s.Breaks, rb)
			s.BreakMinutes += rb.DurationMinutes
		}

		sessions = append(sessions, s)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].ClockInMinute < sessions[j].ClockInMinute
	})
	return sessions, issues
}

// runningBreakStart places the start of an unfinished break in the day
// frame of a session clocked in at in.
func (a *SessionAggregator) runningBreakStart(b timesheet.BreakInterval, in int) (int, bool) {
	if b.StartTime == nil || b.StartTime.IsZero() {
		return 0, false
	}
	start, err := a.normalizer.MinuteOfDay(*b.StartTime)
	if err != nil {
		return 0, false
	}
	if start < in {
		start += timesheet.MinutesPerDay
	}
	return start, true
}

// DayFlags classifies a date relative to today in the organization timezone.
func DayFlags(date, today time.Time) (isToday, isFuture bool) {
	d := CalendarDate(date)
	return d.Equal(today), d.After(today)
}

// GroupByDate keeps the entries of one employee and buckets them per
// calendar date. Entries without employee or date are returned separately.
func GroupByDate(employeeID string, entries []timesheet.TimeEntry) (map[time.Time][]timesheet.TimeEntry, []timesheet.Issue) {
	grouped := make(map[time.Time][]timesheet.TimeEntry)
	var dropped []timesheet.Issue

	for _, e := range entries {
		if e.EmployeeID == "" || e.Date.IsZero() {
			dropped = append(dropped, timesheet.Issue{EntryID: e.ID, Err: timesheet.ErrMissingIdentity})
			continue
		}
		if e.EmployeeID != employeeID {
			continue
		}
		key := CalendarDate(e.Date)
		grouped[key] = append(grouped[key], e)
	}
	return grouped, dropped
}
