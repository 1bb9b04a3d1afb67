package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/refresh"
	"github.com/jonboulle/clockwork"
)

// TimesheetJobs keeps live timesheet views fresh
type TimesheetJobs struct {
	trigger  *refresh.Trigger
	clock    clockwork.Clock
	loc      *time.Location
	interval time.Duration

	mu      sync.Mutex
	lastDay time.Time
}

func NewTimesheetJobs(trigger *refresh.Trigger, clk clockwork.Clock, loc *time.Location, pollInterval time.Duration) *TimesheetJobs {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TimesheetJobs{
		trigger:  trigger,
		clock:    clk,
		loc:      loc,
		interval: pollInterval,
	}
}

func (j *TimesheetJobs) RegisterJobs(scheduler *Scheduler) error {
	if err := scheduler.AddJob("timesheet_refresh_poll", j.interval, j.PollRefresh); err != nil {
		return err
	}
	return scheduler.AddJob("timesheet_day_rollover", time.Minute, j.DayRollover)
}

// PollRefresh invalidates every employee that has an open stream
func (j *TimesheetJobs) PollRefresh(ctx context.Context) error {
	return j.trigger.Poll(ctx)
}

// DayRollover invalidates open streams once when the organization-local date
// changes, so "today" moves without waiting for the next poll.
func (j *TimesheetJobs) DayRollover(ctx context.Context) error {
	now := j.clock.Now().In(j.loc)
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	j.mu.Lock()
	first := j.lastDay.IsZero()
	changed := !first && !today.Equal(j.lastDay)
	j.lastDay = today
	j.mu.Unlock()

	if !changed {
		return nil
	}

	slog.Info("Cron: organization day rolled over", "date", today.Format("2006-01-02"))
	return j.trigger.Poll(ctx)
}
