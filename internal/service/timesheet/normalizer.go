package timesheet

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

// TimeNormalizer maps raw time values onto minute-of-day in the
// organization timezone.
type TimeNormalizer struct {
	loc *time.Location
}

func NewTimeNormalizer(loc *time.Location) *TimeNormalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &TimeNormalizer{loc: loc}
}

func (n *TimeNormalizer) Location() *time.Location {
	return n.loc
}

// MinuteOfDay returns a value in [0, 1439]. Local "HH:mm" strings are taken
// literally; instants are projected onto the organization timezone first.
func (n *TimeNormalizer) MinuteOfDay(r timesheet.RawTime) (int, error) {
	if s, ok := r.Local(); ok {
		m := timesheet.LocalTimePattern.FindStringSubmatch(s)
		if m == nil {
			return 0, fmt.Errorf("%w: %q", timesheet.ErrInvalidTime, s)
		}
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		return h*60 + mm, nil
	}
	if t, ok := r.Time(); ok {
		if t.IsZero() {
			return 0, fmt.Errorf("%w: zero timestamp", timesheet.ErrInvalidTime)
		}
		local := t.In(n.loc)
		return local.Hour()*60 + local.Minute(), nil
	}
	return 0, fmt.Errorf("%w: empty value", timesheet.ErrInvalidTime)
}

// NowMinute is the current minute-of-day in the organization timezone.
func (n *TimeNormalizer) NowMinute(now time.Time) int {
	local := now.In(n.loc)
	return local.Hour()*60 + local.Minute()
}

// Today returns the organization-local calendar date of now.
func (n *TimeNormalizer) Today(now time.Time) time.Time {
	return CalendarDate(now.In(n.loc))
}

// CalendarDate strips the time of day, keeping the wall-clock date of t.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the week containing date.
func WeekStart(date time.Time) time.Time {
	d := CalendarDate(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
