// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media defines the core timeline entities: assets, tracks,
// sectors and time ranges. These are value types; mutation happens only
// through the sectorizer and the timeline store.
package media

import "time"

// Kind classifies a decodable asset.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// Asset is one decodable file. Immutable after ingestion.
type Asset struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"` // file name, used for base-name grouping

	// CaptureAt is the capture instant in epoch seconds. Assets recorded
	// without a usable timestamp have HasCaptureAt=false and cannot be
	// placed on the timeline.
	CaptureAt    float64 `json:"capture_at,omitempty"`
	HasCaptureAt bool    `json:"has_capture_at"`

	// ProgramStart is CaptureAt expressed relative to the session anchor.
	// Filled by timebase.Normalizer; playback math uses only this value.
	ProgramStart float64 `json:"program_start"`

	Duration float64 `json:"duration_seconds"`
	Kind     Kind    `json:"kind"`
	HasAudio bool    `json:"has_audio"`
}

// Interval returns the asset's canonical capture interval.
func (a Asset) Interval() TimeRange {
	return TimeRange{Start: a.CaptureAt, End: a.CaptureAt + a.Duration}
}

// ProgramInterval returns the asset's interval in anchored program time.
func (a Asset) ProgramInterval() TimeRange {
	return TimeRange{Start: a.ProgramStart, End: a.ProgramStart + a.Duration}
}

// Day returns the calendar date key (UTC) of the original capture instant.
// Grouping uses the non-anchored instant so sectors reflect real capture days.
func (a Asset) Day() string {
	return time.Unix(int64(a.CaptureAt), 0).UTC().Format("2006-01-02")
}
