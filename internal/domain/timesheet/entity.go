package timesheet

import (
	"time"
)

type ClockEventKind string

const (
	ClockEventIn  ClockEventKind = "clock_in"
	ClockEventOut ClockEventKind = "clock_out"
)

// ClockEvent is an immutable record of a single clock action.
type ClockEvent struct {
	EmployeeID string         `json:"employee_id"`
	Timestamp  time.Time      `json:"timestamp"` // UTC
	Kind       ClockEventKind `json:"kind"`
}

func NewClockEvent(employeeID string, kind ClockEventKind, at time.Time) ClockEvent {
	return ClockEvent{EmployeeID: employeeID, Timestamp: at.UTC(), Kind: kind}
}

// BreakInterval carries either an explicit duration or a start/end pair.
type BreakInterval struct {
	ID              string
	StartTime       *RawTime
	EndTime         *RawTime
	DurationMinutes *float64
}

type WorkType string

const (
	WorkTypeOffice WorkType = "office"
	WorkTypeRemote WorkType = "remote"
	WorkTypeField  WorkType = "field"
)

var WorkTypeValues = []string{
	string(WorkTypeOffice),
	string(WorkTypeRemote),
	string(WorkTypeField),
}

type TimeEntry struct {
	ID         string
	EmployeeID string
	Date       time.Time // calendar day, time-of-day ignored
	ClockIn    RawTime
	ClockOut   *RawTime
	Breaks     []BreakInterval
	Location   string
	WorkType   WorkType
	ShiftID    *string
	Shift      *ShiftSchedule
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen reports whether the entry is still clocked in.
func (e TimeEntry) IsOpen() bool {
	return e.ClockOut == nil || e.ClockOut.IsZero()
}

// OpenBreak returns the index of a break that has started but not ended, or -1.
func (e TimeEntry) OpenBreak() int {
	for i, b := range e.Breaks {
		if b.StartTime != nil && b.EndTime == nil && b.DurationMinutes == nil {
			return i
		}
	}
	return -1
}

// ShiftSchedule is the expected working window for one day.
type ShiftSchedule struct {
	ID                   string
	Name                 string
	StartTime            RawTime
	EndTime              RawTime
	BreakDurationMinutes *int
}
