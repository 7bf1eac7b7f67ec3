// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"fmt"
	"time"

	"github.com/ManuGH/multicam/internal/media"
)

// SnapshotVersion is bumped on incompatible layout changes.
const SnapshotVersion = 1

// Snapshot is the durable projection of the store. Decoder handles are not
// serializable and the seek / camera-switch guards are transient, so none
// of them appear here.
type Snapshot struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	Sectors []media.Sector `json:"sectors"`
	Zoom    float64        `json:"zoom"`

	CanonicalTime  float64            `json:"canonical_time"`
	ActiveSectorID string             `json:"active_sector_id"`
	ActiveTrackID  string             `json:"active_track_id"`
	ActiveAssetID  string             `json:"active_asset_id"`
	PerAssetTime   map[string]float64 `json:"per_asset_time"`
	PerSectorTime  map[string]float64 `json:"per_sector_time"`

	Anchor    float64 `json:"anchor"`
	AnchorSet bool    `json:"anchor_set"`
}

// Snapshot captures the current durable state.
func (s *Store) Snapshot() *Snapshot {
	st := s.State()
	return &Snapshot{
		Version:        SnapshotVersion,
		SavedAt:        time.Now().UTC(),
		Sectors:        st.Sectors,
		Zoom:           st.Zoom,
		CanonicalTime:  st.Playback.CanonicalTime,
		ActiveSectorID: st.Playback.ActiveSectorID,
		ActiveTrackID:  st.Playback.ActiveTrackID,
		ActiveAssetID:  st.Playback.ActiveAssetID,
		PerAssetTime:   st.Playback.PerAssetTime,
		PerSectorTime:  st.Playback.PerSectorTime,
		Anchor:         st.Playback.Anchor,
		AnchorSet:      st.Playback.AnchorSet,
	}
}

// Restore replaces the store content from a snapshot and reinstalls the
// session anchor. History is cleared; a restored session starts clean.
func (s *Store) Restore(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("timeline: unsupported snapshot version %d", snap.Version)
	}

	s.norm.Restore(snap.Anchor, snap.AnchorSet)

	s.mu.Lock()
	defer s.mu.Unlock()
	zoom := snap.Zoom
	if zoom == 0 {
		zoom = DefaultZoom
	}
	st := State{
		Sectors: snap.Sectors,
		Zoom:    zoom,
		Playback: PlaybackState{
			CanonicalTime:  snap.CanonicalTime,
			ActiveSectorID: snap.ActiveSectorID,
			ActiveTrackID:  snap.ActiveTrackID,
			ActiveAssetID:  snap.ActiveAssetID,
			PerAssetTime:   snap.PerAssetTime,
			PerSectorTime:  snap.PerSectorTime,
			Anchor:         snap.Anchor,
			AnchorSet:      snap.AnchorSet,
		},
	}
	if st.Playback.PerAssetTime == nil {
		st.Playback.PerAssetTime = map[string]float64{}
	}
	if st.Playback.PerSectorTime == nil {
		st.Playback.PerSectorTime = map[string]float64{}
	}
	s.state = st.clone()
	s.undo = nil
	s.redo = nil
	return nil
}
