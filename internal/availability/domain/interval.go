package domain

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrMalformedInterval = errors.New("interval start must be before end")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrUnknownTimezone   = errors.New("unknown timezone")
)

// Interval is a half-open time range [Start, End) in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// IsEmpty returns true if the interval has no extent.
func (i Interval) IsEmpty() bool {
	return !i.Start.Before(i.End)
}

// Overlaps returns true if the two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Clamp restricts the interval to the given bounds.
func (i Interval) Clamp(from, to time.Time) Interval {
	out := i
	if out.Start.Before(from) {
		out.Start = from
	}
	if out.End.After(to) {
		out.End = to
	}
	return out
}

// BusyInterval is a time range during which a resource is unavailable,
// tagged with the source that reported it. Immutable once fetched.
type BusyInterval struct {
	Start  time.Time
	End    time.Time
	Source string
}

// NewBusyInterval creates a validated busy interval normalized to UTC.
func NewBusyInterval(start, end time.Time, source string) (BusyInterval, error) {
	if !start.Before(end) {
		return BusyInterval{}, ErrMalformedInterval
	}
	return BusyInterval{
		Start:  start.UTC(),
		End:    end.UTC(),
		Source: source,
	}, nil
}

// Interval returns the busy range without its source tag.
func (b BusyInterval) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// IsMalformed reports whether the interval violates start < end.
func (b BusyInterval) IsMalformed() bool {
	return !b.Start.Before(b.End)
}

// MergeBusy unions overlapping and touching busy intervals from any
// number of sources into a minimal sorted set. Malformed intervals are
// returned separately so callers can log and skip them; they never
// abort the merge.
func MergeBusy(busy []BusyInterval) (merged []Interval, skipped []BusyInterval) {
	valid := make([]BusyInterval, 0, len(busy))
	for _, b := range busy {
		if b.IsMalformed() {
			skipped = append(skipped, b)
			continue
		}
		b.Start = b.Start.UTC()
		b.End = b.End.UTC()
		valid = append(valid, b)
	}

	if len(valid) == 0 {
		return nil, skipped
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	current := valid[0].Interval()
	for _, b := range valid[1:] {
		if !b.Start.After(current.End) {
			// Overlapping or adjacent: extend the current run.
			if b.End.After(current.End) {
				current.End = b.End
			}
			continue
		}
		merged = append(merged, current)
		current = b.Interval()
	}
	merged = append(merged, current)

	return merged, skipped
}

// MergeIntervals unions overlapping and touching plain intervals.
// Used to normalize expanded working-hour windows before subtraction.
func MergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.IsEmpty() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]Interval, 0, len(sorted))
	current := sorted[0]
	for _, iv := range sorted[1:] {
		if !iv.Start.After(current.End) {
			if iv.End.After(current.End) {
				current.End = iv.End
			}
			continue
		}
		merged = append(merged, current)
		current = iv
	}
	return append(merged, current)
}

// SubtractBusy removes the merged busy regions from the working
// intervals in a single sweep, yielding the ordered free intervals.
// Both inputs must be sorted ascending; busy must be pre-merged.
func SubtractBusy(working []Interval, busy []Interval) []Interval {
	free := make([]Interval, 0, len(working))

	for _, w := range working {
		cursor := w.Start
		for _, b := range busy {
			if !b.End.After(cursor) {
				continue
			}
			if !b.Start.Before(w.End) {
				break
			}
			if b.Start.After(cursor) {
				free = append(free, Interval{Start: cursor, End: minTime(b.Start, w.End)})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
			if !cursor.Before(w.End) {
				break
			}
		}
		if cursor.Before(w.End) {
			free = append(free, Interval{Start: cursor, End: w.End})
		}
	}

	return free
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
