package timesheet

import (
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

// shiftWindow is a shift expressed in day-frame minutes. End is pushed past
// midnight for overnight shifts so that End > Start always holds.
type shiftWindow struct {
	Start int
	End   int
}

func (w shiftWindow) overnight() bool {
	return w.End > timesheet.MinutesPerDay
}

// align moves a minute-of-day that falls in the after-midnight part of an
// overnight shift into the same frame as the shift.
func (w shiftWindow) align(minute int) int {
	if w.overnight() && minute < w.Start && minute <= w.End-timesheet.MinutesPerDay {
		return minute + timesheet.MinutesPerDay
	}
	return minute
}

type LatenessOvertimeCalculator struct {
	normalizer *TimeNormalizer
}

func NewLatenessOvertimeCalculator(n *TimeNormalizer) *LatenessOvertimeCalculator {
	return &LatenessOvertimeCalculator{normalizer: n}
}

// Window resolves a shift. A nil shift yields ErrMissingSchedule; an
// unreadable one yields ErrInvalidTime.
func (c *LatenessOvertimeCalculator) Window(shift *timesheet.ShiftSchedule) (shiftWindow, error) {
	if shift == nil {
		return shiftWindow{}, timesheet.ErrMissingSchedule
	}
	start, err := c.normalizer.MinuteOfDay(shift.StartTime)
	if err != nil {
		return shiftWindow{}, err
	}
	end, err := c.normalizer.MinuteOfDay(shift.EndTime)
	if err != nil {
		return shiftWindow{}, err
	}
	if end <= start {
		end += timesheet.MinutesPerDay
	}
	return shiftWindow{Start: start, End: end}, nil
}

// LateMinutes compares the earliest clock-in of the day with shift start.
func (c *LatenessOvertimeCalculator) LateMinutes(sessions []timesheet.Session, w shiftWindow) *int {
	if len(sessions) == 0 {
		return nil
	}
	in := w.align(sessions[0].ClockInMinute)
	late := max(0, in-w.Start)
	return &late
}

// EffectiveEnd is the day-frame end of the last session: its clock-out, or
// now when it is still open and the day is today. ok is false when the end
// is indeterminate.
func (c *LatenessOvertimeCalculator) EffectiveEnd(last timesheet.Session, isToday bool, nowMinute int) (int, bool) {
	if span, ok := last.SpanMinutes(); ok {
		return last.ClockInMinute + span, true
	}
	if !isToday {
		return 0, false
	}
	end := nowMinute
	if end < last.ClockInMinute {
		end += timesheet.MinutesPerDay
	}
	return end, true
}

// OvertimeMinutes compares the effective end of the last session with
// shift end. Past days with an open session stay nil.
func (c *LatenessOvertimeCalculator) OvertimeMinutes(sessions []timesheet.Session, w shiftWindow, isToday bool, nowMinute int) *int {
	if len(sessions) == 0 {
		return nil
	}
	last := sessions[len(sessions)-1]
	end, ok := c.EffectiveEnd(last, isToday, nowMinute)
	if !ok {
		return nil
	}
	if w.align(last.ClockInMinute) != last.ClockInMinute {
		end += timesheet.MinutesPerDay
	}
	overtime := max(0, end-w.End)
	return &overtime
}
