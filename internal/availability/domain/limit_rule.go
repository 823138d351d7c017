package domain

import (
	"fmt"
	"time"
)

// LimitRule bundles the per-event-type booking constraints applied
// after the busy merge: edge buffers, a minimum lead time, and an
// optional daily booking cap (0 means unlimited).
type LimitRule struct {
	BufferBefore      time.Duration
	BufferAfter       time.Duration
	MinimumNotice     time.Duration
	MaxBookingsPerDay int
}

// NewLimitRule creates a validated limit rule.
func NewLimitRule(bufferBefore, bufferAfter, minimumNotice time.Duration, maxPerDay int) (LimitRule, error) {
	if bufferBefore < 0 || bufferAfter < 0 {
		return LimitRule{}, fmt.Errorf("buffers must not be negative")
	}
	if minimumNotice < 0 {
		return LimitRule{}, fmt.Errorf("minimum notice must not be negative")
	}
	if maxPerDay < 0 {
		return LimitRule{}, fmt.Errorf("max bookings per day must not be negative")
	}
	return LimitRule{
		BufferBefore:      bufferBefore,
		BufferAfter:       bufferAfter,
		MinimumNotice:     minimumNotice,
		MaxBookingsPerDay: maxPerDay,
	}, nil
}

// ApplyBuffers shrinks each free interval by the rule's edge buffers
// and drops intervals that collapse to nothing.
func (r LimitRule) ApplyBuffers(free []Interval) []Interval {
	if r.BufferBefore == 0 && r.BufferAfter == 0 {
		return free
	}

	out := make([]Interval, 0, len(free))
	for _, iv := range free {
		shrunk := Interval{
			Start: iv.Start.Add(r.BufferBefore),
			End:   iv.End.Add(-r.BufferAfter),
		}
		if !shrunk.IsEmpty() {
			out = append(out, shrunk)
		}
	}
	return out
}

// NoticeCutoff returns the earliest permissible slot start relative to now.
func (r LimitRule) NoticeCutoff(now time.Time) time.Time {
	return now.Add(r.MinimumNotice).UTC()
}
