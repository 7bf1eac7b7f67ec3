// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import "sort"

// TimeRange is a half-open coverage interval with Start <= End.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the range length in seconds.
func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}

// Contains reports whether t lies inside [Start, End).
func (r TimeRange) Contains(t float64) bool {
	return t >= r.Start && t < r.End
}

// MergeRanges collapses a set of intervals into the minimal set of
// non-overlapping ranges, sorted by start. Two intervals merge when they
// overlap or their gap is below maxGap; wider gaps stay separate so that
// "camera was off" holes remain visible on the timeline. A zero-width
// interval merges only when it actually touches another interval.
func MergeRanges(intervals []TimeRange, maxGap float64) []TimeRange {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]TimeRange, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []TimeRange{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		gap := iv.Start - last.End
		join := gap <= 0
		if !join && gap < maxGap && iv.Duration() > 0 && last.Duration() > 0 {
			join = true
		}
		if join {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// AssetIntervals extracts the capture intervals of the given assets.
func AssetIntervals(assets []Asset) []TimeRange {
	out := make([]TimeRange, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Interval())
	}
	return out
}
