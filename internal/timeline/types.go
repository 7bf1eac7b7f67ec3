// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package timeline holds the single source of truth for sectors, tracks
// and playback state, mutated exclusively through dispatched commands.
package timeline

import "github.com/ManuGH/multicam/internal/media"

// Zoom bounds: 0.005 shows a full day, 200 shows roughly two seconds
// across the viewport.
const (
	MinZoom     = 0.005
	MaxZoom     = 200.0
	DefaultZoom = 1.0
)

// PlaybackState is the engine-owned playback projection. It has exactly
// one writer, the playback coordinator; everyone else reads copies.
type PlaybackState struct {
	CanonicalTime float64 `json:"canonical_time"`

	IsPlaying bool `json:"is_playing"`
	// At most one of IsSeeking / IsChangingCamera is true at a time.
	IsSeeking        bool `json:"is_seeking"`
	IsChangingCamera bool `json:"is_changing_camera"`

	ActiveSectorID string `json:"active_sector_id"`
	ActiveTrackID  string `json:"active_track_id"`
	ActiveAssetID  string `json:"active_asset_id"`

	// Remembered playback positions, keyed by asset and sector id, so a
	// camera or sector switch resumes where the user left off.
	PerAssetTime  map[string]float64 `json:"per_asset_time"`
	PerSectorTime map[string]float64 `json:"per_sector_time"`

	// Session time anchor, mirrored from the normalizer for persistence.
	Anchor    float64 `json:"anchor"`
	AnchorSet bool    `json:"anchor_set"`
}

// State is the full store content.
type State struct {
	Sectors  []media.Sector `json:"sectors"`
	Playback PlaybackState  `json:"playback"`
	Zoom     float64        `json:"zoom"`
}

// SectorByID returns the sector with the given id, or nil.
func (s *State) SectorByID(id string) *media.Sector {
	for i := range s.Sectors {
		if s.Sectors[i].ID == id {
			return &s.Sectors[i]
		}
	}
	return nil
}

// ActiveSector returns the currently active sector, or nil.
func (s *State) ActiveSector() *media.Sector {
	if s.Playback.ActiveSectorID == "" {
		return nil
	}
	return s.SectorByID(s.Playback.ActiveSectorID)
}

// ActiveTrack returns the currently active track, or nil.
func (s *State) ActiveTrack() *media.Track {
	sector := s.ActiveSector()
	if sector == nil || s.Playback.ActiveTrackID == "" {
		return nil
	}
	return sector.TrackByID(s.Playback.ActiveTrackID)
}

// FindAsset locates an asset anywhere in the store. Returns the sector and
// track ids alongside the asset, or ok=false.
func (s *State) FindAsset(assetID string) (asset media.Asset, sectorID, trackID string, ok bool) {
	for i := range s.Sectors {
		for j := range s.Sectors[i].Tracks {
			for _, a := range s.Sectors[i].Tracks[j].Assets {
				if a.ID == assetID {
					return a, s.Sectors[i].ID, s.Sectors[i].Tracks[j].ID, true
				}
			}
		}
	}
	return media.Asset{}, "", "", false
}

func (s State) clone() State {
	out := s
	out.Sectors = make([]media.Sector, len(s.Sectors))
	for i, sec := range s.Sectors {
		out.Sectors[i] = sec
		out.Sectors[i].Tracks = make([]media.Track, len(sec.Tracks))
		for j, tr := range sec.Tracks {
			out.Sectors[i].Tracks[j] = tr
			out.Sectors[i].Tracks[j].Assets = append([]media.Asset(nil), tr.Assets...)
			out.Sectors[i].Tracks[j].TimeRanges = append([]media.TimeRange(nil), tr.TimeRanges...)
		}
		out.Sectors[i].TimeRanges = append([]media.TimeRange(nil), sec.TimeRanges...)
	}
	out.Playback.PerAssetTime = copyMap(s.Playback.PerAssetTime)
	out.Playback.PerSectorTime = copyMap(s.Playback.PerSectorTime)
	return out
}

func copyMap(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
