package domain

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

const minutesPerDay = 24 * 60

// AvailabilityWindow is a weekly recurring working-hours rule, expressed
// as minutes from local midnight in the window's own IANA timezone.
// A window never crosses local midnight.
type AvailabilityWindow struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Timezone    string
}

// NewAvailabilityWindow creates a validated weekly window.
func NewAvailabilityWindow(weekday time.Weekday, startMinute, endMinute int, timezone string) (AvailabilityWindow, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return AvailabilityWindow{}, fmt.Errorf("weekday out of range: %d", weekday)
	}
	if startMinute < 0 || endMinute > minutesPerDay || startMinute >= endMinute {
		return AvailabilityWindow{}, fmt.Errorf("window minutes out of range: [%d, %d)", startMinute, endMinute)
	}
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return AvailabilityWindow{}, fmt.Errorf("%w: %s", ErrUnknownTimezone, timezone)
	}
	return AvailabilityWindow{
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		Timezone:    timezone,
	}, nil
}

// Expand materializes the recurring window into concrete UTC intervals
// over [from, to), clamped to that range. Wall-clock semantics apply
// across DST transitions: 09:00 local stays 09:00 local.
func (w AvailabilityWindow) Expand(from, to time.Time) ([]Interval, error) {
	if !from.Before(to) {
		return nil, ErrInvalidTimeRange
	}

	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTimezone, w.Timezone)
	}

	// Anchor one day before the range start so windows straddling the
	// boundary in local time still produce their clamped remainder.
	localFrom := from.In(loc)
	anchor := time.Date(localFrom.Year(), localFrom.Month(), localFrom.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -1)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{toRRuleWeekday(w.Weekday)},
		Dtstart:   anchor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}

	var out []Interval
	for _, day := range rule.Between(anchor, to.In(loc), true) {
		start := time.Date(day.Year(), day.Month(), day.Day(), w.StartMinute/60, w.StartMinute%60, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), w.EndMinute/60, w.EndMinute%60, 0, 0, loc)

		iv := Interval{Start: start.UTC(), End: end.UTC()}.Clamp(from.UTC(), to.UTC())
		if !iv.IsEmpty() {
			out = append(out, iv)
		}
	}

	return out, nil
}

// ExpandWindows materializes and unions a set of windows over [from, to).
func ExpandWindows(windows []AvailabilityWindow, from, to time.Time) ([]Interval, error) {
	var all []Interval
	for _, w := range windows {
		expanded, err := w.Expand(from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, expanded...)
	}
	return MergeIntervals(all), nil
}

func toRRuleWeekday(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}
