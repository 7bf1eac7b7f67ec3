// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sectorize turns flat lists of timestamped assets into day-scoped
// sectors containing per-camera tracks.
package sectorize

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/media"
)

// DefaultMergeGap is the coverage-merge gap in seconds used when the
// caller passes no explicit value.
const DefaultMergeGap = 1.0

// Result summarises one assembly pass.
type Result struct {
	Sectors  []media.Sector
	Dropped  int // assets without a capture instant
	Appended int // assets appended to pre-existing tracks
	Created  int // newly created tracks
	Warnings []string
}

// Assembler groups assets into sectors and tracks. Safe for sequential
// reuse; it keeps no state between calls.
type Assembler struct {
	mergeGap float64
}

// New returns an Assembler using the given merge gap (seconds). Values
// <= 0 fall back to DefaultMergeGap.
func New(mergeGap float64) *Assembler {
	if mergeGap <= 0 {
		mergeGap = DefaultMergeGap
	}
	return &Assembler{mergeGap: mergeGap}
}

// MergeGap returns the configured coverage-merge gap in seconds.
func (a *Assembler) MergeGap() float64 {
	return a.mergeGap
}

// Assemble implements the sectorization algorithm: partition by kind, drop
// captureless assets with a warning, bucket by calendar day of the
// original instant, sub-bucket by base name, continue track indices per
// (day, kind), append to matching tracks instead of duplicating, and merge
// into one sector per day. The input sectors are not mutated; updated
// copies are returned.
func (a *Assembler) Assemble(newAssets []media.Asset, existing []media.Sector) Result {
	l := log.WithComponent("sectorize")
	res := Result{}

	// Deep-copy the existing sectors so callers keep snapshot semantics.
	sectors := cloneSectors(existing)
	// Index by position, not by pointer: appends below may reallocate the
	// backing array and would invalidate cached *media.Sector values.
	dayIndex := make(map[string]int, len(sectors))
	for i := range sectors {
		dayIndex[sectors[i].ID] = i
	}

	var placeable []media.Asset
	for _, asset := range newAssets {
		if !asset.HasCaptureAt {
			res.Dropped++
			warn := fmt.Sprintf("asset %s (%s) has no capture instant and cannot be placed", asset.ID, asset.Name)
			res.Warnings = append(res.Warnings, warn)
			l.Warn().Str(log.FieldAssetID, asset.ID).Str(log.FieldPath, asset.Path).
				Msg("dropping asset without capture instant")
			continue
		}
		placeable = append(placeable, asset)
	}
	if len(placeable) == 0 {
		res.Sectors = sectors
		return res
	}

	// Bucket key: (day, kind, base name). Images are placed on video
	// tracks; everything without a video stream goes to audio tracks.
	type bucketKey struct {
		day  string
		kind media.Kind
		base string
	}
	buckets := make(map[bucketKey][]media.Asset)
	var order []bucketKey // first-seen order keeps index assignment stable
	for _, asset := range placeable {
		k := bucketKey{day: asset.Day(), kind: trackKind(asset), base: media.BaseName(asset.Name)}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], asset)
	}

	// Per (day, kind): next index continues after the maximum already
	// assigned, so new ingestion never collides with existing tracks.
	nextIndex := make(map[string]int)
	indexKey := func(day string, kind media.Kind) string { return day + "|" + string(kind) }
	for i := range sectors {
		for _, tr := range sectors[i].Tracks {
			k := indexKey(tr.Day, tr.Kind)
			if tr.Index > nextIndex[k] {
				nextIndex[k] = tr.Index
			}
		}
	}

	for _, k := range order {
		assets := buckets[k]
		sort.SliceStable(assets, func(i, j int) bool {
			return assets[i].CaptureAt < assets[j].CaptureAt
		})

		idx, ok := dayIndex[k.day]
		if !ok {
			sectors = append(sectors, media.Sector{ID: k.day})
			idx = len(sectors) - 1
			dayIndex[k.day] = idx
		}
		sector := &sectors[idx]

		track := findTrack(sector, k.kind, k.base)
		preexisting := track != nil
		if track == nil {
			idx := nextIndex[indexKey(k.day, k.kind)] + 1
			nextIndex[indexKey(k.day, k.kind)] = idx
			sector.Tracks = append(sector.Tracks, media.Track{
				ID:       uuid.NewString(),
				Day:      k.day,
				Kind:     k.kind,
				Index:    idx,
				BaseName: k.base,
				Visible:  true,
			})
			track = &sector.Tracks[len(sector.Tracks)-1]
			res.Created++
		}

		for _, asset := range assets {
			if track.ContainsAsset(asset.ID) {
				continue // idempotent with respect to already-ingested ids
			}
			track.Assets = append(track.Assets, asset)
			if preexisting {
				res.Appended++
			}
		}
		track.Recompute(a.mergeGap)
	}

	for i := range sectors {
		sectors[i].Recompute(a.mergeGap)
	}
	sort.Slice(sectors, func(i, j int) bool { return sectors[i].ID < sectors[j].ID })

	res.Sectors = sectors
	return res
}

func trackKind(a media.Asset) media.Kind {
	if a.Kind == media.KindAudio {
		return media.KindAudio
	}
	return media.KindVideo
}

func findTrack(s *media.Sector, kind media.Kind, base string) *media.Track {
	for i := range s.Tracks {
		if s.Tracks[i].Kind == kind && s.Tracks[i].BaseName == base {
			return &s.Tracks[i]
		}
	}
	return nil
}

func cloneSectors(in []media.Sector) []media.Sector {
	out := make([]media.Sector, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Tracks = make([]media.Track, len(s.Tracks))
		for j, tr := range s.Tracks {
			out[i].Tracks[j] = tr
			out[i].Tracks[j].Assets = append([]media.Asset(nil), tr.Assets...)
			out[i].Tracks[j].TimeRanges = append([]media.TimeRange(nil), tr.TimeRanges...)
		}
		out[i].TimeRanges = append([]media.TimeRange(nil), s.TimeRanges...)
	}
	return out
}
