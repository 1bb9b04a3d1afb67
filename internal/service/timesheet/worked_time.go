package timesheet

import (
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

type WorkedTimeCalculator struct{}

func NewWorkedTimeCalculator() *WorkedTimeCalculator {
	return &WorkedTimeCalculator{}
}

// SessionMinutes is span minus resolved breaks, floored at zero. Open
// sessions have no value.
func (c *WorkedTimeCalculator) SessionMinutes(s timesheet.Session) *int {
	span, ok := s.SpanMinutes()
	if !ok {
		return nil
	}
	worked := max(0, span-s.BreakMinutes)
	return &worked
}

// Apply fills WorkedMinutes on every session in place.
func (c *WorkedTimeCalculator) Apply(sessions []timesheet.Session) {
	for i := range sessions {
		sessions[i].WorkedMinutes = c.SessionMinutes(sessions[i])
	}
}

// DayMinutes sums closed sessions. Any open session makes the day nil
// ("in progress"); so does a day without sessions.
func (c *WorkedTimeCalculator) DayMinutes(sessions []timesheet.Session) *int {
	if len(sessions) == 0 {
		return nil
	}
	total := 0
	for _, s := range sessions {
		m := c.SessionMinutes(s)
		if m == nil {
			return nil
		}
		total += *m
	}
	return &total
}

// LiveMinutes adds the elapsed time of open sessions up to nowMinute, less
// their breaks including one still running. It is only meaningful for today
// and is reported next to, never instead of, DayMinutes.
func (c *WorkedTimeCalculator) LiveMinutes(sessions []timesheet.Session, nowMinute int) *int {
	if len(sessions) == 0 {
		return nil
	}
	total := 0
	for _, s := range sessions {
		if m := c.SessionMinutes(s); m != nil {
			total += *m
			continue
		}
		elapsed := nowMinute - s.ClockInMinute
		if elapsed < 0 {
			elapsed += timesheet.MinutesPerDay
		}
		total += max(0, elapsed-s.BreakMinutes-s.RunningBreakMinutes(nowMinute))
	}
	return &total
}
