// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import "sort"

// Track is an ordered sequence of assets believed to come from one
// physical camera or microphone during one calendar day.
type Track struct {
	ID       string `json:"id"`
	Day      string `json:"day"`  // calendar date key, e.g. "2024-06-01"
	Kind     Kind   `json:"kind"` // video or audio
	Index    int    `json:"index"`
	BaseName string `json:"base_name"`

	Assets []Asset `json:"assets"` // sorted by CaptureAt ascending

	StartTime        float64     `json:"start_time"`
	EndTime          float64     `json:"end_time"`
	CombinedDuration float64     `json:"combined_duration"`
	TimeRanges       []TimeRange `json:"time_ranges"`

	// User track flags. Orthogonal to assembly and playback.
	Muted   bool `json:"muted,omitempty"`
	Locked  bool `json:"locked,omitempty"`
	Visible bool `json:"visible"`
}

// Recompute sorts the track's assets and refreshes all derived fields.
// mergeGap is the coverage-merge gap in seconds.
func (t *Track) Recompute(mergeGap float64) {
	sort.SliceStable(t.Assets, func(i, j int) bool {
		return t.Assets[i].CaptureAt < t.Assets[j].CaptureAt
	})
	if len(t.Assets) == 0 {
		t.StartTime, t.EndTime, t.CombinedDuration = 0, 0, 0
		t.TimeRanges = nil
		return
	}
	t.StartTime = t.Assets[0].CaptureAt
	last := t.Assets[len(t.Assets)-1]
	t.EndTime = last.CaptureAt + last.Duration
	total := 0.0
	for _, a := range t.Assets {
		total += a.Duration
	}
	t.CombinedDuration = total
	t.TimeRanges = MergeRanges(AssetIntervals(t.Assets), mergeGap)
}

// ContainsAsset reports whether the track carries the given asset id.
func (t *Track) ContainsAsset(assetID string) bool {
	for _, a := range t.Assets {
		if a.ID == assetID {
			return true
		}
	}
	return false
}

// Sector is one calendar day's worth of tracks.
type Sector struct {
	ID         string      `json:"id"` // the calendar date key
	Tracks     []Track     `json:"tracks"`
	TimeRanges []TimeRange `json:"time_ranges"`
}

// Recompute refreshes the sector's merged coverage across all tracks.
func (s *Sector) Recompute(mergeGap float64) {
	var intervals []TimeRange
	for i := range s.Tracks {
		intervals = append(intervals, AssetIntervals(s.Tracks[i].Assets)...)
	}
	s.TimeRanges = MergeRanges(intervals, mergeGap)
}

// TrackByID returns the track with the given id, or nil.
func (s *Sector) TrackByID(id string) *Track {
	for i := range s.Tracks {
		if s.Tracks[i].ID == id {
			return &s.Tracks[i]
		}
	}
	return nil
}

// EarliestStart returns the smallest asset capture instant across the
// sector's tracks, or 0 when the sector is empty.
func (s *Sector) EarliestStart() (float64, bool) {
	found := false
	min := 0.0
	for i := range s.Tracks {
		for _, a := range s.Tracks[i].Assets {
			if !found || a.CaptureAt < min {
				min = a.CaptureAt
				found = true
			}
		}
	}
	return min, found
}

// EarliestProgramStart is EarliestStart in anchored program time, the
// space canonical playback time lives in.
func (s *Sector) EarliestProgramStart() (float64, bool) {
	found := false
	min := 0.0
	for i := range s.Tracks {
		for _, a := range s.Tracks[i].Assets {
			if !found || a.ProgramStart < min {
				min = a.ProgramStart
				found = true
			}
		}
	}
	return min, found
}
