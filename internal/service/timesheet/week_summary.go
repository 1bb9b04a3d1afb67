package timesheet

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

type WeekSummaryAggregator struct{}

func NewWeekSummaryAggregator() *WeekSummaryAggregator {
	return &WeekSummaryAggregator{}
}

// Aggregate drops future days, orders today first and the rest newest
// first, and sums the non-null totals.
func (a *WeekSummaryAggregator) Aggregate(employeeID string, weekStart time.Time, days []timesheet.DaySummary, overrides timesheet.WeekOverrides) timesheet.WeekSummary {
	week := timesheet.WeekSummary{
		EmployeeID:   employeeID,
		WeekStart:    CalendarDate(weekStart),
		Days:         make([]timesheet.DaySummary, 0, len(days)),
		StatusCounts: make(map[timesheet.DayStatus]int),
	}

	for _, d := range days {
		if d.IsFuture {
			continue
		}
		week.Days = append(week.Days, d)
		week.StatusCounts[d.Status]++
		if d.WorkedMinutes != nil {
			week.TotalWorkedMinutes += *d.WorkedMinutes
		}
		if d.OvertimeMinutes != nil {
			week.TotalOvertimeMinutes += *d.OvertimeMinutes
		}
	}

	sort.SliceStable(week.Days, func(i, j int) bool {
		if week.Days[i].IsToday != week.Days[j].IsToday {
			return week.Days[i].IsToday
		}
		return week.Days[i].Date.After(week.Days[j].Date)
	})

	if overrides.NegativeMinutes != nil {
		week.NegativeMinutes = *overrides.NegativeMinutes
	}
	return week
}
