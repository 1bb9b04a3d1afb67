package timesheet

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
)

const DateLayout = "2006-01-02"

// ========================================
// COMMAND DTOs
// ========================================

type ClockInRequest struct {
	EmployeeID string  `json:"-" validate:"required"`
	Location   string  `json:"location" validate:"max=255"`
	WorkType   string  `json:"work_type" validate:"omitempty,oneof=office remote field"`
	ShiftID    *string `json:"shift_id,omitempty" validate:"omitempty,uuid"`
}

func (r *ClockInRequest) Validate() error {
	if r.WorkType == "" {
		r.WorkType = string(WorkTypeOffice)
	}
	return validator.Struct(r)
}

type ClockOutRequest struct {
	EmployeeID string `json:"-" validate:"required"`
	Location   string `json:"location" validate:"max=255"`
}

func (r *ClockOutRequest) Validate() error {
	return validator.Struct(r)
}

type BreakRequest struct {
	EmployeeID string `json:"-" validate:"required"`
}

func (r *BreakRequest) Validate() error {
	return validator.Struct(r)
}

type RemoveBreakRequest struct {
	EmployeeID string `json:"-" validate:"required"`
	EntryID    string `json:"-" validate:"required"`
	BreakID    string `json:"-" validate:"required"`
}

func (r *RemoveBreakRequest) Validate() error {
	return validator.Struct(r)
}

type BreakInput struct {
	StartTime       *string  `json:"start_time,omitempty" validate:"omitempty,rawtime"`
	EndTime         *string  `json:"end_time,omitempty" validate:"omitempty,rawtime"`
	DurationMinutes *float64 `json:"duration_minutes,omitempty" validate:"omitempty,gte=0,lte=1440"`
}

func (b BreakInput) toBreakInterval() BreakInterval {
	var out BreakInterval
	if b.StartTime != nil {
		out.StartTime = RawTimePtr(ParseRawTime(*b.StartTime))
	}
	if b.EndTime != nil {
		out.EndTime = RawTimePtr(ParseRawTime(*b.EndTime))
	}
	out.DurationMinutes = b.DurationMinutes
	return out
}

// UpdateEntryRequest is the admin manual edit of a single entry.
type UpdateEntryRequest struct {
	ID            string        `json:"-" validate:"required"`
	Date          *string       `json:"date,omitempty" validate:"omitempty,date"`
	ClockIn       *string       `json:"clock_in,omitempty" validate:"omitempty,rawtime"`
	ClockOut      *string       `json:"clock_out,omitempty" validate:"omitempty,rawtime"`
	ClearClockOut bool          `json:"clear_clock_out"`
	Location      *string       `json:"location,omitempty" validate:"omitempty,max=255"`
	WorkType      *string       `json:"work_type,omitempty" validate:"omitempty,oneof=office remote field"`
	ShiftID       *string       `json:"shift_id,omitempty" validate:"omitempty,uuid"`
	Breaks        *[]BreakInput `json:"breaks,omitempty" validate:"omitempty,dive"`
}

func (r *UpdateEntryRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	if r.ClearClockOut && r.ClockOut != nil {
		return validator.ValidationErrors{{
			Field:   "clock_out",
			Message: "clock_out cannot be set together with clear_clock_out",
		}}
	}
	if r.Breaks != nil {
		var errs validator.ValidationErrors
		for i, b := range *r.Breaks {
			if b.DurationMinutes == nil && (b.StartTime == nil || b.EndTime == nil) {
				errs = append(errs, validator.ValidationError{
					Field:   fmt.Sprintf("breaks[%d]", i),
					Message: "break needs duration_minutes or both start_time and end_time",
				})
			}
		}
		if len(errs) > 0 {
			return errs
		}
	}
	return nil
}

// Apply copies the requested changes onto entry.
func (r *UpdateEntryRequest) Apply(entry *TimeEntry) {
	if r.Date != nil {
		if d, ok := validator.IsValidDate(*r.Date); ok {
			entry.Date = d
		}
	}
	if r.ClockIn != nil {
		entry.ClockIn = ParseRawTime(*r.ClockIn)
	}
	if r.ClockOut != nil {
		entry.ClockOut = RawTimePtr(ParseRawTime(*r.ClockOut))
	}
	if r.ClearClockOut {
		entry.ClockOut = nil
	}
	if r.Location != nil {
		entry.Location = *r.Location
	}
	if r.WorkType != nil {
		entry.WorkType = WorkType(*r.WorkType)
	}
	if r.ShiftID != nil {
		entry.ShiftID = r.ShiftID
	}
	if r.Breaks != nil {
		breaks := make([]BreakInterval, 0, len(*r.Breaks))
		for _, b := range *r.Breaks {
			breaks = append(breaks, b.toBreakInterval())
		}
		entry.Breaks = breaks
	}
}

// ========================================
// QUERY DTOs
// ========================================

type EntryFilter struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	StartDate  *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    *string `json:"end_date,omitempty"`   // YYYY-MM-DD

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *EntryFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if f.Page == 0 {
		f.Page = 1
	}

	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	var start, end time.Time
	if f.StartDate != nil && *f.StartDate != "" {
		d, valid := validator.IsValidDate(*f.StartDate)
		if !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
		start = d
	}
	if f.EndDate != nil && *f.EndDate != "" {
		d, valid := validator.IsValidDate(*f.EndDate)
		if !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
		end = d
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be before start_date",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========================================
// RESPONSE DTOs
// ========================================

// FormatMinutes renders a nullable minute count; nil becomes the "--"
// placeholder so "not applicable" is distinguishable from zero.
func FormatMinutes(m *int) string {
	if m == nil {
		return "--"
	}
	v := *m
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%dh %02dm", sign, v/60, v%60)
}

// MinuteOfDayString renders a minute offset as "HH:mm", wrapping past midnight.
func MinuteOfDayString(m int) string {
	m = ((m % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

type BreakResponse struct {
	ID              string  `json:"id,omitempty"`
	StartTime       *string `json:"start_time"`
	EndTime         *string `json:"end_time"`
	DurationMinutes int     `json:"duration_minutes"`
}

type SessionResponse struct {
	EntryID       string          `json:"entry_id"`
	ClockIn       string          `json:"clock_in"`
	ClockOut      *string         `json:"clock_out"`
	Overnight     bool            `json:"overnight"`
	Breaks        []BreakResponse `json:"breaks"`
	BreakMinutes  int             `json:"break_minutes"`
	WorkedMinutes *int            `json:"worked_minutes"`
	WorkedDisplay string          `json:"worked_display"`
}

type ShiftResponse struct {
	ID                   string `json:"id,omitempty"`
	Name                 string `json:"name,omitempty"`
	StartTime            string `json:"start_time"`
	EndTime              string `json:"end_time"`
	BreakDurationMinutes *int   `json:"break_duration_minutes,omitempty"`
}

type IssueResponse struct {
	EntryID string `json:"entry_id,omitempty"`
	BreakID string `json:"break_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type DaySummaryResponse struct {
	EmployeeID        string            `json:"employee_id"`
	Date              string            `json:"date"`
	Status            DayStatus         `json:"status"`
	Sessions          []SessionResponse `json:"sessions"`
	Shift             *ShiftResponse    `json:"shift,omitempty"`
	WorkedMinutes     *int              `json:"worked_minutes"`
	WorkedDisplay     string            `json:"worked_display"`
	LiveWorkedMinutes *int              `json:"live_worked_minutes,omitempty"`
	LateMinutes       *int              `json:"late_minutes"`
	LateDisplay       string            `json:"late_display"`
	OvertimeMinutes   *int              `json:"overtime_minutes"`
	OvertimeDisplay   string            `json:"overtime_display"`
	IsAbsent          bool              `json:"is_absent"`
	IsFuture          bool              `json:"is_future"`
	IsToday           bool              `json:"is_today"`
	Provisional       bool              `json:"provisional,omitempty"`
	Issues            []IssueResponse   `json:"issues,omitempty"`
	ComputedAt        string            `json:"computed_at"`
}

type WeekSummaryResponse struct {
	EmployeeID           string               `json:"employee_id"`
	WeekStart            string               `json:"week_start"`
	Days                 []DaySummaryResponse `json:"days"`
	TotalWorkedMinutes   int                  `json:"total_worked_minutes"`
	TotalWorkedDisplay   string               `json:"total_worked_display"`
	TotalOvertimeMinutes int                  `json:"total_overtime_minutes"`
	NegativeMinutes      int                  `json:"negative_minutes"`
	StatusCounts         map[DayStatus]int    `json:"status_counts"`
}

type SegmentResponse struct {
	Kind         SegmentKind `json:"kind"`
	EntryID      string      `json:"entry_id"`
	Start        string      `json:"start"`
	End          string      `json:"end"`
	Left         float64     `json:"left"`
	Width        float64     `json:"width"`
	DisplayWidth float64     `json:"display_width"`
	Progressive  bool        `json:"progressive"`
}

type TimelineResponse struct {
	EmployeeID  string            `json:"employee_id"`
	Date        string            `json:"date"`
	Segments    []SegmentResponse `json:"segments"`
	NowPosition *float64          `json:"now_position,omitempty"`
}

type EntryResponse struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employee_id"`
	Date       string          `json:"date"`
	ClockIn    RawTime         `json:"clock_in"`
	ClockOut   *RawTime        `json:"clock_out"`
	Breaks     []BreakInputOut `json:"breaks"`
	Location   string          `json:"location"`
	WorkType   WorkType        `json:"work_type"`
	ShiftID    *string         `json:"shift_id,omitempty"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type BreakInputOut struct {
	ID              string   `json:"id"`
	StartTime       *RawTime `json:"start_time"`
	EndTime         *RawTime `json:"end_time"`
	DurationMinutes *float64 `json:"duration_minutes"`
}

type ListEntriesResponse struct {
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
	Showing    string          `json:"showing"`
	Entries    []EntryResponse `json:"entries"`
}

// StreamSnapshot is pushed after an invalidation. Live carries the domain
// timeline so that later ticks only move progressive segments.
type StreamSnapshot struct {
	Day      DaySummaryResponse
	Timeline TimelineResponse
	Live     Timeline
}

type ClockActionResponse struct {
	Entry EntryResponse      `json:"entry"`
	Day   DaySummaryResponse `json:"day"`
	// Event is set for clock-in and clock-out only
	Event *ClockEvent `json:"event,omitempty"`
}
