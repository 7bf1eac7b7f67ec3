// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package timebase anchors epoch capture instants to a single session
// origin so that playback arithmetic runs on small magnitudes instead of
// raw Unix timestamps.
package timebase

import (
	"sync"

	"github.com/ManuGH/multicam/internal/media"
)

// Instants larger than one year in seconds are treated as epoch
// timestamps; smaller values are already relative and pass through.
const epochThreshold = 365 * 24 * 3600

// Normalizer owns the process-wide anchor. The anchor is set exactly once,
// from the first ingested batch that carries epoch-scale instants, and is
// never moved afterwards. It is persisted with the timeline snapshot so a
// later session keeps the same program-time origin.
type Normalizer struct {
	mu     sync.Mutex
	anchor float64
	set    bool
}

// New returns a Normalizer with no anchor set.
func New() *Normalizer {
	return &Normalizer{}
}

// Restore installs a previously persisted anchor. A no-op when the anchor
// is already set or the restored session had none.
func (n *Normalizer) Restore(anchor float64, set bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.set || !set {
		return
	}
	n.anchor = anchor
	n.set = true
}

// Anchor returns the current anchor and whether one has been set.
func (n *Normalizer) Anchor() (float64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.anchor, n.set
}

// Normalize fills ProgramStart for each placeable asset and returns the
// adjusted copies. The original CaptureAt is kept untouched for display
// and day grouping. Instants that are already relative become program time
// verbatim. No I/O.
func (n *Normalizer) Normalize(assets []media.Asset) []media.Asset {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.set {
		for _, a := range assets {
			if !a.HasCaptureAt || a.CaptureAt < epochThreshold {
				continue
			}
			if !n.set || a.CaptureAt < n.anchor {
				n.anchor = a.CaptureAt
				n.set = true
			}
		}
	}

	out := make([]media.Asset, len(assets))
	for i, a := range assets {
		if a.HasCaptureAt && n.set && a.CaptureAt >= epochThreshold {
			a.ProgramStart = a.CaptureAt - n.anchor
		} else if a.HasCaptureAt {
			a.ProgramStart = a.CaptureAt
		}
		out[i] = a
	}
	return out
}
