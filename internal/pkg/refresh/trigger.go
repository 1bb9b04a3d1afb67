// Package refresh is the single invalidate-and-recompute signal shared by
// the periodic poll and the event-driven refresh after clock actions.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/sse"
	"github.com/jonboulle/clockwork"
)

type Reason string

const (
	ReasonPoll        Reason = "poll"
	ReasonClockAction Reason = "clock_action"
	ReasonManualEdit  Reason = "manual_edit"
)

// EventInvalidate is the sse event name carried by every invalidation.
const EventInvalidate = "invalidate"

// Invalidation tells subscribers that the employee's data must be re-fetched
type Invalidation struct {
	EmployeeID string    `json:"employee_id"`
	Reason     Reason    `json:"reason"`
	At         time.Time `json:"at"`
}

type Trigger struct {
	hub   *sse.Hub
	clock clockwork.Clock
}

func NewTrigger(hub *sse.Hub, clk clockwork.Clock) *Trigger {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Trigger{hub: hub, clock: clk}
}

// Invalidate marks one employee stale and returns the number of subscribers notified
func (t *Trigger) Invalidate(employeeID string, reason Reason) int {
	if employeeID == "" {
		return 0
	}
	n := t.hub.Publish(employeeID, sse.Event{
		Event: EventInvalidate,
		Data: Invalidation{
			EmployeeID: employeeID,
			Reason:     reason,
			At:         t.clock.Now().UTC(),
		},
	})
	slog.Debug("Timesheet invalidated", "employee_id", employeeID, "reason", reason, "subscribers", n)
	return n
}

// Subscribe listens for invalidations of one employee. The returned cleanup
// must be called when the listener goes away.
func (t *Trigger) Subscribe(employeeID string) (<-chan sse.Event, func()) {
	return t.hub.Subscribe(employeeID)
}

// Poll invalidates every employee that currently has a live subscriber
func (t *Trigger) Poll(ctx context.Context) error {
	for _, employeeID := range t.hub.Topics() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.Invalidate(employeeID, ReasonPoll)
	}
	return nil
}
