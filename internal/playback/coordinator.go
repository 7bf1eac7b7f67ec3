// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/media"
	"github.com/ManuGH/multicam/internal/metrics"
	"github.com/ManuGH/multicam/internal/timeline"
)

// Config tunes the reconciliation loop and the camera-switch protocol.
type Config struct {
	// DriftThreshold is the absolute decoder drift, in seconds, above
	// which the loop hard-corrects. Drift below it is left alone.
	DriftThreshold float64
	// ReconcileInterval is the loop tick.
	ReconcileInterval time.Duration
	// CorrectionInterval is the minimum spacing between drift corrections
	// per player.
	CorrectionInterval time.Duration
	// SwitchTimeout bounds a camera switch: if the target decoder never
	// reports metadata, the changing-camera guard is force-cleared.
	SwitchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DriftThreshold:     0.5,
		ReconcileInterval:  200 * time.Millisecond,
		CorrectionInterval: 200 * time.Millisecond,
		SwitchTimeout:      2 * time.Second,
	}
}

type player struct {
	trackID string
	dec     Decoder
	fsm     *machine
	limiter *rate.Limiter
	// loadedAsset is the asset id the decoder's source belongs to.
	loadedAsset string
	// reloaded marks that the one automatic reload after a decoder error
	// has been spent.
	reloaded bool
}

// Coordinator owns all player state transitions. There is exactly one
// writer for PlaybackState: every mutation goes through the timeline
// store's command surface, never by direct field writes.
type Coordinator struct {
	mu      sync.Mutex
	store   *timeline.Store
	cfg     Config
	logger  zerolog.Logger
	players map[string]*player

	// pendingAsset is the last requested switch target. Completion
	// callbacks for any other asset are stale and ignored.
	pendingAsset string
	pendingPlay  bool
	switchTimer  *time.Timer
}

func NewCoordinator(store *timeline.Store, cfg Config) *Coordinator {
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = DefaultConfig().DriftThreshold
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = DefaultConfig().ReconcileInterval
	}
	if cfg.CorrectionInterval <= 0 {
		cfg.CorrectionInterval = DefaultConfig().CorrectionInterval
	}
	if cfg.SwitchTimeout <= 0 {
		cfg.SwitchTimeout = DefaultConfig().SwitchTimeout
	}
	return &Coordinator{
		store:   store,
		cfg:     cfg,
		logger:  log.WithComponent("playback"),
		players: make(map[string]*player),
	}
}

// AttachPlayer registers a decoder for a track. Attaching a second decoder
// for the same track replaces the first.
func (c *Coordinator) AttachPlayer(trackID string, dec Decoder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[trackID] = &player{
		trackID: trackID,
		dec:     dec,
		fsm:     newMachine(),
		limiter: rate.NewLimiter(rate.Every(c.cfg.CorrectionInterval), 1),
	}
}

func (c *Coordinator) DetachPlayer(trackID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.players, trackID)
}

// PlayerState reports the lifecycle state of one player, StateIdle when
// the track has no player attached.
func (c *Coordinator) PlayerState(trackID string) PlayerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.players[trackID]
	if !ok {
		return StateIdle
	}
	return p.fsm.State()
}

// Run drives the reconciliation loop until ctx is canceled.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.stopSwitchTimerLocked()
			c.mu.Unlock()
			return nil
		case <-ticker.C:
			c.Reconcile()
		}
	}
}

// Reconcile runs one pass of the synchronization loop: advance the
// canonical clock from the active decoder, then correct every player in
// the active sector whose drift warrants it. Exported so tests and the
// loop share one code path.
func (c *Coordinator) Reconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.store.State()
	pb := st.Playback
	if pb.IsChangingCamera {
		return
	}
	sector := st.ActiveSector()
	if sector == nil {
		return
	}

	t := pb.CanonicalTime
	if pb.IsPlaying && !pb.IsSeeking {
		if ap := c.activePlayerLocked(pb); ap != nil && ap.dec.Ready() {
			if asset := ResolveAsset(t, st.ActiveTrack()); asset != nil && ap.loadedAsset == asset.ID {
				t = asset.ProgramStart + ap.dec.CurrentTime()
				c.store.Dispatch(timeline.SetCanonicalTime{Time: t})
			}
		}
	}

	for i := range sector.Tracks {
		track := &sector.Tracks[i]
		p, ok := c.players[track.ID]
		if !ok || !p.dec.Ready() {
			continue
		}
		asset := ResolveAsset(t, track)
		if asset == nil {
			continue
		}
		local := clampLocal(t-asset.ProgramStart, asset.Duration)
		drift := math.Abs(p.dec.CurrentTime() - local)
		metrics.ObserveDrift(drift)
		switch {
		case pb.IsSeeking:
			p.dec.Seek(local)
			metrics.RecordDriftCorrection("seek")
		case drift > c.cfg.DriftThreshold && p.limiter.Allow():
			p.dec.Seek(local)
			metrics.RecordDriftCorrection("drift")
			c.logger.Debug().
				Str(log.FieldTrackID, track.ID).
				Float64(log.FieldDrift, drift).
				Float64(log.FieldLocalTime, local).
				Float64(log.FieldCanonicalTime, t).
				Msg("hard correction")
		}
	}

	if pb.IsSeeking {
		if asset, _, _, ok := st.FindAsset(pb.ActiveAssetID); ok {
			c.store.Dispatch(timeline.SetAssetTime{
				AssetID: asset.ID,
				Time:    clampLocal(t-asset.ProgramStart, asset.Duration),
			})
		}
		c.store.Dispatch(timeline.SetSectorTime{SectorID: sector.ID, Time: t})
		c.store.Dispatch(timeline.SetSeeking{Seeking: false})
	}
}

// Play resumes every ready player in the active sector, with the active
// player driving the canonical clock. Position memory is persisted before
// the state change so pause/resume round-trips keep their place.
func (c *Coordinator) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.store.State()
	pb := st.Playback
	if pb.IsPlaying || pb.IsChangingCamera {
		return nil
	}
	active := c.activePlayerLocked(pb)
	if active == nil {
		return fmt.Errorf("play: no player attached for track %q", pb.ActiveTrackID)
	}

	c.rememberPositionLocked(st, active)

	if err := active.dec.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	c.firePlayerLocked(active, eventPlay)

	// Companion cameras follow best-effort. One failing decoder must not
	// stop the rest.
	c.forEachSectorPlayerLocked(st, func(p *player) {
		if p == active || !p.dec.Ready() {
			return
		}
		if err := p.dec.Play(); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldTrackID, p.trackID).Msg("companion play failed")
			return
		}
		c.firePlayerLocked(p, eventPlay)
	})

	c.store.Dispatch(timeline.SetPlaying{Playing: true})
	return nil
}

// Pause halts every player in the active sector and persists the active
// decoder's position first.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.store.State()
	pb := st.Playback
	if !pb.IsPlaying {
		return nil
	}
	if active := c.activePlayerLocked(pb); active != nil {
		c.rememberPositionLocked(st, active)
	}

	c.forEachSectorPlayerLocked(st, func(p *player) {
		if p.fsm.State() != StatePlaying {
			return
		}
		if err := p.dec.Pause(); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldTrackID, p.trackID).Msg("pause failed")
			return
		}
		c.firePlayerLocked(p, eventPause)
	})

	c.store.Dispatch(timeline.SetPlaying{Playing: false})
	return nil
}

// Seek moves the canonical clock. The actual decoder snap happens on the
// next reconciliation pass, which also clears the seeking guard and
// records position memory.
func (c *Coordinator) Seek(t float64) {
	c.store.Dispatch(timeline.SeekTo{Time: t})
}

// SwitchToTrack switches the camera to whatever asset on the target track
// the current canonical time resolves to.
func (c *Coordinator) SwitchToTrack(trackID string) error {
	st := c.store.State()
	var track *media.Track
	for i := range st.Sectors {
		if tr := st.Sectors[i].TrackByID(trackID); tr != nil {
			track = tr
			break
		}
	}
	if track == nil {
		return fmt.Errorf("switch: unknown track %q", trackID)
	}
	asset := ResolveAsset(st.Playback.CanonicalTime, track)
	if asset == nil {
		return fmt.Errorf("switch: track %q has no assets", trackID)
	}
	return c.SwitchToAsset(asset.ID)
}

// SwitchToAsset runs the camera-switch protocol. Switching to the asset
// that is already active is a no-op. A switch started while another is in
// flight supersedes it.
func (c *Coordinator) SwitchToAsset(assetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.store.State()
	asset, sectorID, trackID, ok := st.FindAsset(assetID)
	if !ok {
		return fmt.Errorf("switch: unknown asset %q", assetID)
	}
	pb := st.Playback
	if pb.ActiveAssetID == assetID && c.pendingAsset == "" {
		metrics.RecordCameraSwitch("noop")
		return nil
	}
	target, ok := c.players[trackID]
	if !ok {
		return fmt.Errorf("switch: no player attached for track %q", trackID)
	}

	if c.pendingAsset != "" && c.pendingAsset != assetID {
		c.logger.Debug().
			Str(log.FieldAssetID, c.pendingAsset).
			Msg("camera switch superseded")
		metrics.RecordCameraSwitch("superseded")
	}

	c.store.Dispatch(timeline.SetChangingCamera{Changing: true})
	c.pendingPlay = pb.IsPlaying

	if prev := c.activePlayerLocked(pb); prev != nil && pb.IsPlaying {
		if err := prev.dec.Pause(); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldTrackID, prev.trackID).Msg("pause before switch failed")
		} else {
			c.firePlayerLocked(prev, eventPause)
		}
		if pb.ActiveAssetID != "" {
			c.store.Dispatch(timeline.SetAssetTime{AssetID: pb.ActiveAssetID, Time: prev.dec.CurrentTime()})
		}
	}

	c.store.Dispatch(timeline.SetActiveAsset{ID: assetID})
	c.pendingAsset = assetID

	if target.loadedAsset == assetID && target.dec.Ready() {
		c.completeSwitchLocked(target, asset, sectorID)
		return nil
	}

	target.loadedAsset = assetID
	target.reloaded = false
	c.firePlayerLocked(target, eventLoad)
	target.dec.Load(asset.Path)
	c.armSwitchTimerLocked(assetID)
	return nil
}

// HandleMetadataReady is the decoder's load-completion event. Completions
// whose asset no longer matches the last requested switch target are
// stale and only settle the player's own state.
func (c *Coordinator) HandleMetadataReady(trackID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.players[trackID]
	if !ok {
		return
	}
	if p.fsm.State() == StateLoading {
		c.firePlayerLocked(p, eventMetadataReady)
	}
	if c.pendingAsset == "" || p.loadedAsset != c.pendingAsset {
		c.logger.Debug().
			Str(log.FieldTrackID, trackID).
			Str(log.FieldAssetID, p.loadedAsset).
			Msg("ignoring stale metadata completion")
		return
	}

	st := c.store.State()
	asset, sectorID, _, ok := st.FindAsset(c.pendingAsset)
	if !ok {
		c.clearSwitchLocked()
		return
	}
	c.completeSwitchLocked(p, asset, sectorID)
}

// HandleDecoderError surfaces a decoder failure, attempts exactly one
// reload, and on a second failure parks the player in Idle. Other players
// keep going.
func (c *Coordinator) HandleDecoderError(trackID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.players[trackID]
	if !ok {
		return
	}
	stage := "playback"
	if p.fsm.State() == StateLoading {
		stage = "load"
	}
	metrics.RecordDecoderError(stage)

	st := c.store.State()
	name := p.loadedAsset
	var path string
	if asset, _, _, found := st.FindAsset(p.loadedAsset); found {
		name = asset.Name
		path = asset.Path
	}
	c.logger.Error().Err(err).
		Str(log.FieldTrackID, trackID).
		Str(log.FieldAssetID, p.loadedAsset).
		Str("asset_name", name).
		Msg("decoder error")

	if !p.reloaded && path != "" {
		p.reloaded = true
		c.firePlayerLocked(p, eventFail)
		c.firePlayerLocked(p, eventLoad)
		p.dec.Load(path)
		return
	}

	c.firePlayerLocked(p, eventFail)
	wasSwitchTarget := c.pendingAsset != "" && p.loadedAsset == c.pendingAsset
	p.loadedAsset = ""
	if wasSwitchTarget {
		c.clearSwitchLocked()
	}
	if st.Playback.ActiveTrackID == trackID && st.Playback.IsPlaying {
		c.store.Dispatch(timeline.SetPlaying{Playing: false})
	}
}

func (c *Coordinator) completeSwitchLocked(p *player, asset media.Asset, sectorID string) {
	pb := c.store.Playback()
	local := 0.0
	if t, ok := pb.PerAssetTime[asset.ID]; ok {
		local = clampLocal(t, asset.Duration)
	} else if t, ok := pb.PerSectorTime[sectorID]; ok {
		local = clampLocal(t-asset.ProgramStart, asset.Duration)
	}
	p.dec.Seek(local)
	if c.pendingPlay {
		if err := p.dec.Play(); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldTrackID, p.trackID).Msg("resume after switch failed")
		} else {
			c.firePlayerLocked(p, eventPlay)
		}
	}
	c.store.Dispatch(timeline.SetCanonicalTime{Time: asset.ProgramStart + local})
	c.clearSwitchLocked()
	metrics.RecordCameraSwitch("ok")
}

func (c *Coordinator) clearSwitchLocked() {
	c.pendingAsset = ""
	c.pendingPlay = false
	c.stopSwitchTimerLocked()
	c.store.Dispatch(timeline.SetChangingCamera{Changing: false})
}

func (c *Coordinator) armSwitchTimerLocked(assetID string) {
	c.stopSwitchTimerLocked()
	c.switchTimer = time.AfterFunc(c.cfg.SwitchTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pendingAsset != assetID {
			return
		}
		c.logger.Warn().
			Str(log.FieldAssetID, assetID).
			Dur("timeout", c.cfg.SwitchTimeout).
			Msg("camera switch timed out, force-clearing guard")
		c.clearSwitchLocked()
		metrics.RecordCameraSwitch("timeout")
	})
}

func (c *Coordinator) stopSwitchTimerLocked() {
	if c.switchTimer != nil {
		c.switchTimer.Stop()
		c.switchTimer = nil
	}
}

func (c *Coordinator) activePlayerLocked(pb timeline.PlaybackState) *player {
	if pb.ActiveTrackID == "" {
		return nil
	}
	return c.players[pb.ActiveTrackID]
}

func (c *Coordinator) forEachSectorPlayerLocked(st timeline.State, fn func(*player)) {
	sector := st.ActiveSector()
	if sector == nil {
		return
	}
	for i := range sector.Tracks {
		if p, ok := c.players[sector.Tracks[i].ID]; ok {
			fn(p)
		}
	}
}

func (c *Coordinator) rememberPositionLocked(st timeline.State, active *player) {
	pb := st.Playback
	if pb.ActiveAssetID != "" && active.dec.Ready() {
		c.store.Dispatch(timeline.SetAssetTime{AssetID: pb.ActiveAssetID, Time: active.dec.CurrentTime()})
	}
	if sector := st.ActiveSector(); sector != nil {
		c.store.Dispatch(timeline.SetSectorTime{SectorID: sector.ID, Time: pb.CanonicalTime})
	}
}

func (c *Coordinator) firePlayerLocked(p *player, event playerEvent) {
	from := p.fsm.State()
	next, err := p.fsm.Fire(event)
	if err != nil {
		c.logger.Debug().Err(err).Str(log.FieldPlayerID, p.trackID).Msg("player transition rejected")
		return
	}
	c.logger.Debug().
		Str(log.FieldPlayerID, p.trackID).
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(next)).
		Msg("player state change")
}
