package timesheet

import (
	"errors"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/jonboulle/clockwork"
)

// Engine wires the calculators into the day/week/timeline pipeline. It holds
// no mutable state and is safe to call from any goroutine.
type Engine struct {
	clock      clockwork.Clock
	normalizer *TimeNormalizer
	sessions   *SessionAggregator
	worked     *WorkedTimeCalculator
	lateness   *LatenessOvertimeCalculator
	timeline   *TimelineSegmenter
	week       *WeekSummaryAggregator
}

func NewEngine(loc *time.Location, clk clockwork.Clock, window TimelineWindow) *Engine {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	n := NewTimeNormalizer(loc)
	lateness := NewLatenessOvertimeCalculator(n)
	return &Engine{
		clock:      clk,
		normalizer: n,
		sessions:   NewSessionAggregator(n, NewBreakResolver(n)),
		worked:     NewWorkedTimeCalculator(),
		lateness:   lateness,
		timeline:   NewTimelineSegmenter(window, n, lateness),
		week:       NewWeekSummaryAggregator(),
	}
}

func (e *Engine) Clock() clockwork.Clock { return e.clock }
func (e *Engine) Normalizer() *TimeNormalizer { return e.normalizer }
func (e *Engine) Today() time.Time { return e.normalizer.Today(e.clock.Now()) }
func (e *Engine) Segmenter() *TimelineSegmenter { return e.timeline }

// BuildDay computes one employee-day. entries must belong to that employee
// and date. fallbackShift is used when no entry carries its own shift.
func (e *Engine) BuildDay(employeeID string, date time.Time, entries []timesheet.TimeEntry, fallbackShift *timesheet.ShiftSchedule) timesheet.DaySummary {
	now := e.clock.Now()
	today := e.normalizer.Today(now)
	nowMinute := e.normalizer.NowMinute(now)

	day := timesheet.DaySummary{
		EmployeeID: employeeID,
		Date:       CalendarDate(date),
		ComputedAt: now,
	}
	day.IsToday, day.IsFuture = DayFlags(date, today)
	day.Sessions, day.Issues = e.sessions.Aggregate(entries)
	day.Shift = pickShift(entries, day.Sessions, fallbackShift)

	if day.IsFuture {
		day.Sessions = nil
		day.Status = timesheet.DayStatusFuture
		return day
	}
	if len(day.Sessions) == 0 {
		day.IsAbsent = true
		day.Status = timesheet.DayStatusAbsent
		return day
	}

	e.worked.Apply(day.Sessions)
	day.WorkedMinutes = e.worked.DayMinutes(day.Sessions)
	if day.IsToday && day.HasOpenSession() {
		day.LiveWorkedMinutes = e.worked.LiveMinutes(day.Sessions, nowMinute)
	}

	w, err := e.lateness.Window(day.Shift)
	switch {
	case err == nil:
		day.LateMinutes = e.lateness.LateMinutes(day.Sessions, w)
		day.OvertimeMinutes = e.lateness.OvertimeMinutes(day.Sessions, w, day.IsToday, nowMinute)
	case errors.Is(err, timesheet.ErrMissingSchedule):
	default:
		day.Issues = append(day.Issues, timesheet.Issue{Field: "shift", Err: err})
	}

	day.Status = dayStatus(day)
	return day
}

// BuildRange computes every date in [from, to] for one employee.
func (e *Engine) BuildRange(employeeID string, from, to time.Time, entries []timesheet.TimeEntry, shifts map[time.Time]*timesheet.ShiftSchedule) ([]timesheet.DaySummary, []timesheet.Issue) {
	grouped, dropped := GroupByDate(employeeID, entries)

	var days []timesheet.DaySummary
	for d := CalendarDate(from); !d.After(CalendarDate(to)); d = d.AddDate(0, 0, 1) {
		days = append(days, e.BuildDay(employeeID, d, grouped[d], shifts[d]))
	}
	return days, dropped
}

// BuildWeek computes the Monday–Sunday week containing date.
func (e *Engine) BuildWeek(employeeID string, date time.Time, entries []timesheet.TimeEntry, shifts map[time.Time]*timesheet.ShiftSchedule, overrides timesheet.WeekOverrides) (timesheet.WeekSummary, []timesheet.Issue) {
	start := WeekStart(date)
	days, dropped := e.BuildRange(employeeID, start, start.AddDate(0, 0, 6), entries, shifts)
	return e.week.Aggregate(employeeID, start, days, overrides), dropped
}

// BuildTimeline segments a computed day at the current instant.
func (e *Engine) BuildTimeline(day timesheet.DaySummary) timesheet.Timeline {
	return e.timeline.Segment(day, e.clock.Now())
}

// RefreshTimeline re-evaluates progressive segments without new data.
func (e *Engine) RefreshTimeline(tl timesheet.Timeline) timesheet.Timeline {
	return e.timeline.Refresh(tl, e.clock.Now())
}

// Reconcile replaces an optimistic summary with the authoritative one,
// unless the authoritative snapshot predates the optimistic change.
func Reconcile(provisional, authoritative timesheet.DaySummary) timesheet.DaySummary {
	if authoritative.ComputedAt.Before(provisional.ComputedAt) {
		return provisional
	}
	authoritative.Provisional = false
	return authoritative
}

func pickShift(entries []timesheet.TimeEntry, sessions []timesheet.Session, fallback *timesheet.ShiftSchedule) *timesheet.ShiftSchedule {
	byID := make(map[string]*timesheet.ShiftSchedule, len(entries))
	for _, en := range entries {
		if en.Shift != nil {
			byID[en.ID] = en.Shift
		}
	}
	for _, s := range sessions {
		if sh, ok := byID[s.EntryID]; ok {
			return sh
		}
	}
	for _, en := range entries {
		if en.Shift != nil {
			return en.Shift
		}
	}
	return fallback
}

func dayStatus(day timesheet.DaySummary) timesheet.DayStatus {
	switch {
	case day.IsFuture:
		return timesheet.DayStatusFuture
	case day.IsAbsent:
		return timesheet.DayStatusAbsent
	case day.LateMinutes != nil && *day.LateMinutes > 0:
		return timesheet.DayStatusLate
	case day.HasOpenSession():
		return timesheet.DayStatusInProgress
	case day.LateMinutes != nil:
		return timesheet.DayStatusOnTime
	}
	return timesheet.DayStatusPresent
}
