package domain

import (
	"time"
)

// MergeResult carries the computed free intervals plus bookkeeping
// about inputs that were dropped along the way.
type MergeResult struct {
	Free    []Interval
	Skipped []BusyInterval
}

// ComputeFreeIntervals runs the full availability pipeline for a query
// range: expand recurring windows to concrete UTC intervals, union the
// busy intervals across all sources, subtract them from the working
// time in a single sweep, then shrink the surviving edges by the
// rule's buffers. The result is deterministic for identical inputs.
func ComputeFreeIntervals(windows []AvailabilityWindow, busy []BusyInterval, rule LimitRule, from, to time.Time) (MergeResult, error) {
	if !from.Before(to) {
		return MergeResult{}, ErrInvalidTimeRange
	}

	working, err := ExpandWindows(windows, from, to)
	if err != nil {
		return MergeResult{}, err
	}

	mergedBusy, skipped := MergeBusy(busy)
	free := SubtractBusy(working, mergedBusy)
	free = rule.ApplyBuffers(free)

	return MergeResult{Free: free, Skipped: skipped}, nil
}
