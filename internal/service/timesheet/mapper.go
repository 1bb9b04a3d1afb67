package timesheet

import (
	"math"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

func mapDaySummaryToResponse(d timesheet.DaySummary) timesheet.DaySummaryResponse {
	resp := timesheet.DaySummaryResponse{
		EmployeeID:        d.EmployeeID,
		Date:              d.Date.Format(timesheet.DateLayout),
		Status:            d.Status,
		Sessions:          make([]timesheet.SessionResponse, 0, len(d.Sessions)),
		WorkedMinutes:     d.WorkedMinutes,
		WorkedDisplay:     timesheet.FormatMinutes(d.WorkedMinutes),
		LiveWorkedMinutes: d.LiveWorkedMinutes,
		LateMinutes:       d.LateMinutes,
		LateDisplay:       timesheet.FormatMinutes(d.LateMinutes),
		OvertimeMinutes:   d.OvertimeMinutes,
		OvertimeDisplay:   timesheet.FormatMinutes(d.OvertimeMinutes),
		IsAbsent:          d.IsAbsent,
		IsFuture:          d.IsFuture,
		IsToday:           d.IsToday,
		Provisional:       d.Provisional,
		ComputedAt:        d.ComputedAt.UTC().Format(time.RFC3339),
	}

	for _, s := range d.Sessions {
		resp.Sessions = append(resp.Sessions, mapSessionToResponse(s))
	}
	if d.Shift != nil {
		resp.Shift = &timesheet.ShiftResponse{
			ID:                   d.Shift.ID,
			Name:                 d.Shift.Name,
			StartTime:            d.Shift.StartTime.String(),
			EndTime:              d.Shift.EndTime.String(),
			BreakDurationMinutes: d.Shift.BreakDurationMinutes,
		}
	}
	for _, is := range d.Issues {
		resp.Issues = append(resp.Issues, mapIssueToResponse(is))
	}
	return resp
}

func mapSessionToResponse(s timesheet.Session) timesheet.SessionResponse {
	resp := timesheet.SessionResponse{
		EntryID:       s.EntryID,
		ClockIn:       timesheet.MinuteOfDayString(s.ClockInMinute),
		ClockOut:      minuteStringPtr(s.ClockOutMinute),
		Overnight:     s.Overnight,
		Breaks:        make([]timesheet.BreakResponse, 0, len(s.Breaks)),
		BreakMinutes:  s.BreakMinutes,
		WorkedMinutes: s.WorkedMinutes,
		WorkedDisplay: timesheet.FormatMinutes(s.WorkedMinutes),
	}
	for _, b := range s.Breaks {
		resp.Breaks = append(resp.Breaks, timesheet.BreakResponse{
			ID:              b.ID,
			StartTime:       minuteStringPtr(b.StartMinute),
			EndTime:         minuteStringPtr(b.EndMinute),
			DurationMinutes: b.DurationMinutes,
		})
	}
	return resp
}

func mapIssueToResponse(is timesheet.Issue) timesheet.IssueResponse {
	resp := timesheet.IssueResponse{
		EntryID: is.EntryID,
		BreakID: is.BreakID,
		Field:   is.Field,
	}
	if is.Err != nil {
		resp.Message = is.Err.Error()
	}
	return resp
}

func mapWeekSummaryToResponse(w timesheet.WeekSummary) timesheet.WeekSummaryResponse {
	total := w.TotalWorkedMinutes
	resp := timesheet.WeekSummaryResponse{
		EmployeeID:           w.EmployeeID,
		WeekStart:            w.WeekStart.Format(timesheet.DateLayout),
		Days:                 make([]timesheet.DaySummaryResponse, 0, len(w.Days)),
		TotalWorkedMinutes:   w.TotalWorkedMinutes,
		TotalWorkedDisplay:   timesheet.FormatMinutes(&total),
		TotalOvertimeMinutes: w.TotalOvertimeMinutes,
		NegativeMinutes:      w.NegativeMinutes,
		StatusCounts:         w.StatusCounts,
	}
	for _, d := range w.Days {
		resp.Days = append(resp.Days, mapDaySummaryToResponse(d))
	}
	return resp
}

func mapTimelineToResponse(tl timesheet.Timeline) timesheet.TimelineResponse {
	resp := timesheet.TimelineResponse{
		EmployeeID: tl.EmployeeID,
		Date:       tl.Date.Format(timesheet.DateLayout),
		Segments:   make([]timesheet.SegmentResponse, 0, len(tl.Segments)),
	}
	if tl.NowPosition != nil {
		p := round3(*tl.NowPosition)
		resp.NowPosition = &p
	}
	for _, s := range tl.Segments {
		resp.Segments = append(resp.Segments, timesheet.SegmentResponse{
			Kind:         s.Kind,
			EntryID:      s.EntryID,
			Start:        timesheet.MinuteOfDayString(s.StartMinute),
			End:          timesheet.MinuteOfDayString(s.EndMinute),
			Left:         round3(s.Left),
			Width:        round3(s.Width),
			DisplayWidth: round3(s.DisplayWidth),
			Progressive:  s.Progressive,
		})
	}
	return resp
}

func mapEntryToResponse(e timesheet.TimeEntry) timesheet.EntryResponse {
	resp := timesheet.EntryResponse{
		ID:         e.ID,
		EmployeeID: e.EmployeeID,
		Date:       e.Date.Format(timesheet.DateLayout),
		ClockIn:    e.ClockIn,
		ClockOut:   e.ClockOut,
		Breaks:     make([]timesheet.BreakInputOut, 0, len(e.Breaks)),
		Location:   e.Location,
		WorkType:   e.WorkType,
		ShiftID:    e.ShiftID,
	}
	if !e.CreatedAt.IsZero() {
		resp.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !e.UpdatedAt.IsZero() {
		resp.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	for _, b := range e.Breaks {
		resp.Breaks = append(resp.Breaks, timesheet.BreakInputOut{
			ID:              b.ID,
			StartTime:       b.StartTime,
			EndTime:         b.EndTime,
			DurationMinutes: b.DurationMinutes,
		})
	}
	return resp
}

func minuteStringPtr(m *int) *string {
	if m == nil {
		return nil
	}
	s := timesheet.MinuteOfDayString(*m)
	return &s
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
