package timesheet

import (
	"time"
)

// ResolvedBreak is a break after resolution. StartMinute/EndMinute are set
// only when the break was given as a start/end pair; duration-only breaks
// have no position on the time axis.
type ResolvedBreak struct {
	ID              string
	StartMinute     *int
	EndMinute       *int
	DurationMinutes int
}

// Session is one clock-in with its optional clock-out and breaks, derived
// from exactly one TimeEntry.
type Session struct {
	EntryID        string
	ClockInMinute  int
	ClockOutMinute *int
	Overnight      bool
	Breaks         []ResolvedBreak
	BreakMinutes   int
	WorkedMinutes  *int

	// OpenBreakMinute is the start of a break still running on an open
	// session, in the session's day frame.
	OpenBreakMinute *int
}

func (s Session) IsOpen() bool {
	return s.ClockOutMinute == nil
}

// SpanMinutes returns the raw span of a closed session, wrapping overnight.
func (s Session) SpanMinutes() (int, bool) {
	if s.ClockOutMinute == nil {
		return 0, false
	}
	span := *s.ClockOutMinute - s.ClockInMinute
	if span < 0 {
		span += MinutesPerDay
	}
	return span, true
}

// RunningBreakMinutes is how long the open break has lasted at nowMinute.
func (s Session) RunningBreakMinutes(nowMinute int) int {
	if s.OpenBreakMinute == nil {
		return 0
	}
	if nowMinute < s.ClockInMinute {
		nowMinute += MinutesPerDay
	}
	return max(0, nowMinute-*s.OpenBreakMinute)
}

const MinutesPerDay = 24 * 60

type DayStatus string

const (
	DayStatusFuture     DayStatus = "future"
	DayStatusAbsent     DayStatus = "absent"
	DayStatusInProgress DayStatus = "in_progress"
	DayStatusLate       DayStatus = "late"
	DayStatusOnTime     DayStatus = "on_time"
	DayStatusPresent    DayStatus = "present"
)

// Issue records a non-fatal problem met while computing a day.
type Issue struct {
	EntryID string
	BreakID string
	Field   string
	Err     error
}

// DaySummary is the derived view of all sessions for one employee-day.
// Nil minute pointers mean "not applicable" or "in progress", never zero.
type DaySummary struct {
	EmployeeID        string
	Date              time.Time
	Sessions          []Session
	Shift             *ShiftSchedule
	WorkedMinutes     *int
	LiveWorkedMinutes *int
	LateMinutes       *int
	OvertimeMinutes   *int
	IsAbsent          bool
	IsFuture          bool
	IsToday           bool
	Status            DayStatus
	Issues            []Issue
	Provisional       bool
	ComputedAt        time.Time
}

// HasOpenSession reports whether any session on the day is still clocked in.
func (d DaySummary) HasOpenSession() bool {
	for _, s := range d.Sessions {
		if s.IsOpen() {
			return true
		}
	}
	return false
}

// WeekSummary rolls up one Monday–Sunday week, future days excluded.
type WeekSummary struct {
	EmployeeID           string
	WeekStart            time.Time
	Days                 []DaySummary
	TotalWorkedMinutes   int
	TotalOvertimeMinutes int
	NegativeMinutes      int
	StatusCounts         map[DayStatus]int
}

// WeekOverrides carries backend-computed statistics that replace defaults.
type WeekOverrides struct {
	NegativeMinutes *int
}

type SegmentKind string

const (
	SegmentLate     SegmentKind = "late"
	SegmentWorking  SegmentKind = "working"
	SegmentBreak    SegmentKind = "break"
	SegmentOvertime SegmentKind = "overtime"
)

// TimelineSegment is one labeled span on the display axis. Minutes are
// measured from the start of the day and may exceed 1440 for overnight
// sessions. Left and Width are percentages of the display window.
type TimelineSegment struct {
	Kind         SegmentKind
	EntryID      string
	StartMinute  int
	EndMinute    int
	Left         float64
	Width        float64
	DisplayWidth float64
	Progressive  bool
}

// Timeline is the segmentation of one day.
type Timeline struct {
	EmployeeID  string
	Date        time.Time
	Segments    []TimelineSegment
	NowPosition *float64
}
