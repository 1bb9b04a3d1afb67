package timesheet

import (
	"fmt"
	"math"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

type BreakResolver struct {
	normalizer *TimeNormalizer
}

func NewBreakResolver(n *TimeNormalizer) *BreakResolver {
	return &BreakResolver{normalizer: n}
}

// Resolve turns a break into a non-negative duration. An explicit duration
// wins over the start/end pair; positions are still filled in when the pair
// is readable so the break can be drawn.
func (r *BreakResolver) Resolve(b timesheet.BreakInterval) (timesheet.ResolvedBreak, error) {
	out := timesheet.ResolvedBreak{ID: b.ID}

	var start, end *int
	if b.StartTime != nil && !b.StartTime.IsZero() {
		if m, err := r.normalizer.MinuteOfDay(*b.StartTime); err == nil {
			start = &m
		}
	}
	if b.EndTime != nil && !b.EndTime.IsZero() {
		if m, err := r.normalizer.MinuteOfDay(*b.EndTime); err == nil {
			end = &m
		}
	}

	if d, ok := explicitDuration(b.DurationMinutes); ok {
		out.DurationMinutes = d
		out.StartMinute = start
		switch {
		case end != nil:
			out.EndMinute = end
		case start != nil:
			e := (*start + d) % timesheet.MinutesPerDay
			out.EndMinute = &e
		}
		return out, nil
	}

	if start == nil || end == nil {
		return out, fmt.Errorf("%w: missing or invalid start/end", timesheet.ErrUnresolvedBreak)
	}

	diff := *end - *start
	if diff < 0 {
		diff += timesheet.MinutesPerDay
	}
	if diff <= 0 {
		return out, fmt.Errorf("%w: empty interval", timesheet.ErrUnresolvedBreak)
	}

	out.StartMinute = start
	out.EndMinute = end
	out.DurationMinutes = diff
	return out, nil
}

// explicitDuration accepts a duration within [0, MinutesPerDay].
func explicitDuration(d *float64) (int, bool) {
	if d == nil || math.IsNaN(*d) || *d < 0 || *d > timesheet.MinutesPerDay {
		return 0, false
	}
	return int(math.Round(*d)), true
}
