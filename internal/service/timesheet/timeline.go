package timesheet

import (
	"math"
	"sort"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
)

// TimelineWindow is the visible part of the day, in minutes, mapped onto a
// 0–100 axis. GapPercent is trimmed off a segment that touches the next one.
type TimelineWindow struct {
	StartMinute int
	EndMinute   int
	GapPercent  float64
}

func DefaultTimelineWindow() TimelineWindow {
	return TimelineWindow{StartMinute: 5 * 60, EndMinute: 23 * 60, GapPercent: 0.25}
}

// Position maps a day-frame minute onto the axis, clamped to [0, 100].
func (w TimelineWindow) Position(minute int) float64 {
	span := float64(w.EndMinute - w.StartMinute)
	if span <= 0 {
		return 0
	}
	p := float64(minute-w.StartMinute) / span * 100
	return math.Max(0, math.Min(100, p))
}

type TimelineSegmenter struct {
	window     TimelineWindow
	normalizer *TimeNormalizer
	calc       *LatenessOvertimeCalculator
}

func NewTimelineSegmenter(w TimelineWindow, n *TimeNormalizer, calc *LatenessOvertimeCalculator) *TimelineSegmenter {
	return &TimelineSegmenter{window: w, normalizer: n, calc: calc}
}

func (t *TimelineSegmenter) Window() TimelineWindow {
	return t.window
}

// Segment builds the ordered, non-overlapping segments for a day.
func (t *TimelineSegmenter) Segment(day timesheet.DaySummary, now time.Time) timesheet.Timeline {
	tl := timesheet.Timeline{EmployeeID: day.EmployeeID, Date: day.Date}
	nowMinute := t.normalizer.NowMinute(now)

	shift, shiftErr := t.calc.Window(day.Shift)
	hasShift := shiftErr == nil

	var segs []timesheet.TimelineSegment
	for i, s := range day.Sessions {
		first := i == 0
		last := i == len(day.Sessions)-1
		in := s.ClockInMinute

		live := false
		var end int
		if span, ok := s.SpanMinutes(); ok {
			end = in + span
		} else if last && day.IsToday {
			live = true
			end, _ = t.calc.EffectiveEnd(s, true, nowMinute)
		} else {
			// open session on a past day: only the clock-in is known
			continue
		}

		shiftStart, shiftEnd := shift.Start, shift.End
		if hasShift && shift.align(in) != in {
			shiftStart -= timesheet.MinutesPerDay
			shiftEnd -= timesheet.MinutesPerDay
		}

		if first && hasShift && in > shiftStart {
			segs = append(segs, timesheet.TimelineSegment{
				Kind: timesheet.SegmentLate, EntryID: s.EntryID, StartMinute: shiftStart, EndMinute: in,
			})
		}

		// a running bar extends to the planned end and is revealed up to now
		terminal := end
		if live && hasShift && shiftEnd > terminal {
			terminal = shiftEnd
		}

		spans := positionedBreaks(s, terminal)
		if live && s.OpenBreakMinute != nil && *s.OpenBreakMinute < terminal {
			// a running break holds the bar until it ends
			spans = append(spans, breakSpan{start: *s.OpenBreakMinute, end: terminal, progressive: true})
			sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		}

		cursor := in
		for _, b := range spans {
			if b.start < cursor {
				b.start = cursor
			}
			if b.end <= b.start {
				continue
			}
			if b.start > cursor {
				segs = append(segs, timesheet.TimelineSegment{
					Kind: timesheet.SegmentWorking, EntryID: s.EntryID, StartMinute: cursor, EndMinute: b.start,
				})
			}
			segs = append(segs, timesheet.TimelineSegment{
				Kind: timesheet.SegmentBreak, EntryID: s.EntryID, StartMinute: b.start, EndMinute: b.end,
				Progressive: b.progressive,
			})
			cursor = b.end
		}

		overtimeStart := terminal
		if last && hasShift && terminal > shiftEnd {
			overtimeStart = max(cursor, shiftEnd)
		}
		if overtimeStart > cursor {
			segs = append(segs, timesheet.TimelineSegment{
				Kind: timesheet.SegmentWorking, EntryID: s.EntryID, StartMinute: cursor, EndMinute: overtimeStart,
				Progressive: live && overtimeStart == terminal,
			})
		}
		if terminal > overtimeStart {
			segs = append(segs, timesheet.TimelineSegment{
				Kind: timesheet.SegmentOvertime, EntryID: s.EntryID, StartMinute: overtimeStart, EndMinute: terminal,
				Progressive: live,
			})
		}
	}

	tl.Segments = t.layout(segs)
	if day.IsToday {
		pos := t.window.Position(nowMinute)
		tl.NowPosition = &pos
		tl.Segments = t.applyProgress(tl.Segments, pos)
	}
	return tl
}

// Refresh re-evaluates only the progressive widths for a new "now"; it does
// not need fresh data.
func (t *TimelineSegmenter) Refresh(tl timesheet.Timeline, now time.Time) timesheet.Timeline {
	if tl.NowPosition == nil {
		return tl
	}
	pos := t.window.Position(t.normalizer.NowMinute(now))
	out := tl
	out.NowPosition = &pos
	out.Segments = t.applyProgress(append([]timesheet.TimelineSegment(nil), tl.Segments...), pos)
	return out
}

func (t *TimelineSegmenter) applyProgress(segs []timesheet.TimelineSegment, nowPos float64) []timesheet.TimelineSegment {
	for i := range segs {
		if !segs[i].Progressive {
			segs[i].DisplayWidth = segs[i].Width
			continue
		}
		segs[i].DisplayWidth = math.Max(0, math.Min(segs[i].Width, nowPos-segs[i].Left))
	}
	return segs
}

// layout sorts segments, removes overlap, maps them onto the axis and trims
// a visual gap between touching neighbours.
func (t *TimelineSegmenter) layout(segs []timesheet.TimelineSegment) []timesheet.TimelineSegment {
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].StartMinute < segs[j].StartMinute
	})

	out := make([]timesheet.TimelineSegment, 0, len(segs))
	prevEnd := math.MinInt
	for _, s := range segs {
		if s.StartMinute < prevEnd {
			s.StartMinute = prevEnd
		}
		if s.EndMinute <= s.StartMinute {
			continue
		}
		s.Left = t.window.Position(s.StartMinute)
		s.Width = t.window.Position(s.EndMinute) - s.Left
		if s.Width <= 0 {
			continue
		}
		out = append(out, s)
		prevEnd = s.EndMinute
	}

	for i := 0; i+1 < len(out); i++ {
		if out[i+1].Left-(out[i].Left+out[i].Width) < t.window.GapPercent {
			out[i].Width = math.Max(0, out[i].Width-t.window.GapPercent)
		}
	}
	for i := range out {
		out[i].DisplayWidth = out[i].Width
	}
	return out
}

type breakSpan struct {
	start       int
	end         int
	progressive bool
}

// positionedBreaks returns the breaks that have a place on the axis, moved
// into the session's day frame and clipped to [clock-in, limit].
func positionedBreaks(s timesheet.Session, limit int) []breakSpan {
	var spans []breakSpan
	for _, b := range s.Breaks {
		if b.StartMinute == nil || b.EndMinute == nil {
			continue
		}
		start := *b.StartMinute
		if start < s.ClockInMinute {
			start += timesheet.MinutesPerDay
		}
		end := *b.EndMinute
		for end < start {
			end += timesheet.MinutesPerDay
		}
		end = min(end, limit)
		if end <= start {
			continue
		}
		spans = append(spans, breakSpan{start: start, end: end})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}
