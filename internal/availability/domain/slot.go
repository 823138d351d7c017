package domain

import (
	"time"
)

// Slot is a bookable candidate of exactly the event type's duration.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day returns the UTC calendar day the slot starts on, used as the
// bucket key for the daily booking cap.
func (s Slot) Day() string {
	return s.Start.UTC().Format("2006-01-02")
}

// GridParams controls slot generation over a set of free intervals.
type GridParams struct {
	Duration  time.Duration
	Increment time.Duration
	Now       time.Time
	Rule      LimitRule

	// BookedPerDay maps UTC days (2006-01-02) to the number of
	// confirmed bookings already held on that day. The daily cap
	// counts these before offering new slots.
	BookedPerDay map[string]int
}

// GenerateSlots steps through each free interval at the grid increment,
// emitting every aligned slot that fits entirely inside the interval.
// Slots starting before the minimum-notice cutoff are dropped, and days
// whose booking cap is already reached stop yielding further slots.
// Output is strictly ordered by start time with no duplicates.
func GenerateSlots(free []Interval, p GridParams) ([]Slot, error) {
	if p.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	increment := p.Increment
	if increment <= 0 {
		increment = p.Duration
	}

	cutoff := p.Rule.NoticeCutoff(p.Now)
	offeredPerDay := make(map[string]int)

	var slots []Slot
	for _, iv := range free {
		for start := iv.Start; !start.Add(p.Duration).After(iv.End); start = start.Add(increment) {
			if start.Before(cutoff) {
				continue
			}

			slot := Slot{Start: start.UTC(), End: start.Add(p.Duration).UTC()}

			if p.Rule.MaxBookingsPerDay > 0 {
				day := slot.Day()
				used := p.BookedPerDay[day] + offeredPerDay[day]
				if used >= p.Rule.MaxBookingsPerDay {
					continue
				}
				offeredPerDay[day]++
			}

			slots = append(slots, slot)
		}
	}

	return slots, nil
}

// Contains reports whether the candidate range [start, end) is fully
// covered by one of the given slots. Used to validate booking requests
// against the offered grid.
func Contains(slots []Slot, start, end time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) && s.End.Equal(end) {
			return true
		}
	}
	return false
}
