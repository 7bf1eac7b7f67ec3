// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"regexp"

	"github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/media"
	"github.com/ManuGH/multicam/internal/metrics"
)

// Command mutates store state. apply runs under the store lock; the
// returned bool marks the command as history-worthy ("dirty").
type Command interface {
	apply(s *Store, st State) (State, bool)
}

// IngestAssets normalizes a batch of assets and assembles it into the
// sector/track structure. Idempotent with respect to already-ingested ids.
type IngestAssets struct {
	Assets []media.Asset
}

func (c IngestAssets) apply(s *Store, st State) (State, bool) {
	if len(c.Assets) == 0 {
		return st, false
	}
	normalized := s.norm.Normalize(c.Assets)
	res := s.asm.Assemble(normalized, st.Sectors)
	for _, w := range res.Warnings {
		s.logger.Warn().Str(log.FieldEvent, "ingest").Msg(w)
	}

	st.Sectors = res.Sectors
	st.Playback.Anchor, st.Playback.AnchorSet = s.norm.Anchor()

	// First ingestion activates the earliest sector so the timeline is
	// immediately navigable. Canonical time lives in program time.
	if st.Playback.ActiveSectorID == "" && len(st.Sectors) > 0 {
		st.Playback.ActiveSectorID = st.Sectors[0].ID
		if start, ok := st.Sectors[0].EarliestProgramStart(); ok {
			st.Playback.CanonicalTime = start
		}
	}
	return st, true
}

// RemoveAsset drops an asset from the timeline. Tracks left empty are
// removed; day sectors stay, so the day remains addressable.
type RemoveAsset struct {
	AssetID string
}

func (c RemoveAsset) apply(s *Store, st State) (State, bool) {
	changed := false
	for i := range st.Sectors {
		tracks := st.Sectors[i].Tracks[:0]
		for _, tr := range st.Sectors[i].Tracks {
			kept := tr.Assets[:0]
			for _, a := range tr.Assets {
				if a.ID == c.AssetID {
					changed = true
					continue
				}
				kept = append(kept, a)
			}
			tr.Assets = kept
			if len(tr.Assets) == 0 {
				continue
			}
			tr.Recompute(s.asm.MergeGap())
			tracks = append(tracks, tr)
		}
		st.Sectors[i].Tracks = tracks
		if changed {
			st.Sectors[i].Recompute(s.asm.MergeGap())
		}
	}
	if !changed {
		return st, false
	}
	delete(st.Playback.PerAssetTime, c.AssetID)
	if st.Playback.ActiveAssetID == c.AssetID {
		st.Playback.ActiveAssetID = ""
	}
	return st, true
}

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// SetActiveSector switches the active day. Resolution order: exact id,
// fuzzy match on an embedded date string, then a synthesized placeholder
// sector. The two fallbacks are tolerated source behavior and are logged
// as warnings rather than silently applied.
type SetActiveSector struct {
	ID string
}

func (c SetActiveSector) apply(s *Store, st State) (State, bool) {
	resolved := ""
	if st.SectorByID(c.ID) != nil {
		resolved = c.ID
	} else if date := datePattern.FindString(c.ID); date != "" {
		for i := range st.Sectors {
			if st.Sectors[i].ID == date || datePattern.FindString(st.Sectors[i].ID) == date {
				resolved = st.Sectors[i].ID
				s.logger.Warn().Str(log.FieldSectorID, c.ID).
					Str("resolved_id", resolved).
					Msg("sector id resolved by fuzzy date match")
				break
			}
		}
	}
	if resolved == "" {
		// Placeholder synthesis keeps the UI responsive for unknown days.
		st.Sectors = append(st.Sectors, media.Sector{ID: c.ID})
		resolved = c.ID
		metrics.RecordPlaceholderSector()
		s.logger.Warn().Str(log.FieldSectorID, c.ID).
			Msg("synthesized empty placeholder sector for unknown id")
	}

	if resolved == st.Playback.ActiveSectorID {
		return st, false
	}

	// Remember the outgoing sector position, restore the incoming one.
	if st.Playback.ActiveSectorID != "" {
		st.Playback.PerSectorTime[st.Playback.ActiveSectorID] = st.Playback.CanonicalTime
	}
	st.Playback.ActiveSectorID = resolved
	st.Playback.ActiveTrackID = ""
	st.Playback.ActiveAssetID = ""
	if remembered, ok := st.Playback.PerSectorTime[resolved]; ok {
		st.Playback.CanonicalTime = remembered
	} else if sector := st.SectorByID(resolved); sector != nil {
		if start, ok := sector.EarliestProgramStart(); ok {
			st.Playback.CanonicalTime = start
		} else {
			st.Playback.CanonicalTime = 0
		}
	}
	return st, false
}

// SetActiveTrack selects a track within the active sector.
type SetActiveTrack struct {
	ID string
}

func (c SetActiveTrack) apply(s *Store, st State) (State, bool) {
	sector := st.ActiveSector()
	if sector == nil || sector.TrackByID(c.ID) == nil {
		// The track may live in another sector; follow it there.
		for i := range st.Sectors {
			if st.Sectors[i].TrackByID(c.ID) != nil {
				st, _ = SetActiveSector{ID: st.Sectors[i].ID}.apply(s, st)
				break
			}
		}
	}
	if sector = st.ActiveSector(); sector == nil || sector.TrackByID(c.ID) == nil {
		s.logger.Warn().Str(log.FieldTrackID, c.ID).Msg("ignoring unknown track id")
		return st, false
	}
	st.Playback.ActiveTrackID = c.ID
	if track := sector.TrackByID(c.ID); !track.ContainsAsset(st.Playback.ActiveAssetID) {
		st.Playback.ActiveAssetID = ""
	}
	return st, false
}

// SetActiveAsset selects an asset, keeping the active sector and track
// consistent with where the asset actually lives.
type SetActiveAsset struct {
	ID string
}

func (c SetActiveAsset) apply(s *Store, st State) (State, bool) {
	_, sectorID, trackID, ok := st.FindAsset(c.ID)
	if !ok {
		s.logger.Warn().Str(log.FieldAssetID, c.ID).Msg("ignoring unknown asset id")
		return st, false
	}
	if sectorID != st.Playback.ActiveSectorID {
		st, _ = SetActiveSector{ID: sectorID}.apply(s, st)
	}
	st.Playback.ActiveTrackID = trackID
	st.Playback.ActiveAssetID = c.ID
	return st, false
}

// SeekTo moves the canonical time on user intent and raises the seeking
// guard. The coordinator clears the guard after snapping decoders.
type SeekTo struct {
	Time float64
}

func (c SeekTo) apply(s *Store, st State) (State, bool) {
	if st.Playback.IsChangingCamera {
		// Seek and camera switch are mutually exclusive.
		return st, false
	}
	st.Playback.CanonicalTime = c.Time
	st.Playback.IsSeeking = true
	return st, false
}

// SetSectorTime records a remembered position for a sector.
type SetSectorTime struct {
	SectorID string
	Time     float64
}

func (c SetSectorTime) apply(_ *Store, st State) (State, bool) {
	st.Playback.PerSectorTime[c.SectorID] = c.Time
	return st, false
}

// SetAssetTime records a remembered position for an asset.
type SetAssetTime struct {
	AssetID string
	Time    float64
}

func (c SetAssetTime) apply(_ *Store, st State) (State, bool) {
	st.Playback.PerAssetTime[c.AssetID] = c.Time
	return st, false
}

// SetCanonicalTime is the transient playback tick. Never history-worthy.
type SetCanonicalTime struct {
	Time float64
}

func (c SetCanonicalTime) apply(_ *Store, st State) (State, bool) {
	st.Playback.CanonicalTime = c.Time
	return st, false
}

// SetPlaying toggles the playing flag.
type SetPlaying struct {
	Playing bool
}

func (c SetPlaying) apply(_ *Store, st State) (State, bool) {
	st.Playback.IsPlaying = c.Playing
	return st, false
}

// SetSeeking raises or clears the seek guard. Raising it clears the
// camera-switch guard; the two are mutually exclusive.
type SetSeeking struct {
	Seeking bool
}

func (c SetSeeking) apply(_ *Store, st State) (State, bool) {
	st.Playback.IsSeeking = c.Seeking
	if c.Seeking {
		st.Playback.IsChangingCamera = false
	}
	return st, false
}

// SetChangingCamera raises or clears the camera-switch guard.
type SetChangingCamera struct {
	Changing bool
}

func (c SetChangingCamera) apply(_ *Store, st State) (State, bool) {
	st.Playback.IsChangingCamera = c.Changing
	if c.Changing {
		st.Playback.IsSeeking = false
	}
	return st, false
}

// SetZoom clamps and applies the timeline zoom level.
type SetZoom struct {
	Level float64
}

func (c SetZoom) apply(_ *Store, st State) (State, bool) {
	level := c.Level
	if level < MinZoom {
		level = MinZoom
	}
	if level > MaxZoom {
		level = MaxZoom
	}
	if level == st.Zoom {
		return st, false
	}
	st.Zoom = level
	return st, true
}

// FitToScreen derives a zoom level that fits the longest track into the
// given viewport width, with a 10% margin, at the base scale of two
// pixels per second.
type FitToScreen struct {
	ViewportWidth float64
}

func (c FitToScreen) apply(s *Store, st State) (State, bool) {
	if c.ViewportWidth <= 0 {
		return st, false
	}
	maxDuration := 0.0
	for i := range st.Sectors {
		for _, tr := range st.Sectors[i].Tracks {
			if tr.CombinedDuration > maxDuration {
				maxDuration = tr.CombinedDuration
			}
		}
	}
	if maxDuration == 0 {
		maxDuration = 60
	}
	const baseScale = 2.0
	target := (c.ViewportWidth * 0.9) / maxDuration / baseScale
	return SetZoom{Level: target}.apply(s, st)
}

// Undo restores the previous dirty-command snapshot.
type Undo struct{}

func (Undo) apply(s *Store, st State) (State, bool) {
	if len(s.undo) == 0 {
		return st, false
	}
	prev := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, st.clone())
	return prev, false
}

// Redo reverses the last Undo.
type Redo struct{}

func (Redo) apply(s *Store, st State) (State, bool) {
	if len(s.redo) == 0 {
		return st, false
	}
	next := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, st.clone())
	return next, false
}
