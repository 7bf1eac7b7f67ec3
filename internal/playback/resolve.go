package playback

import (
	"math"

	"github.com/ManuGH/multicam/internal/media"
)

// ResolveAsset picks the asset on track that canonical time t maps to:
// the asset whose program interval [start, start+duration) contains t,
// or, when t sits in a gap, the asset with the nearest interval boundary.
// Boundary ties go to the asset with the earlier start.
func ResolveAsset(t float64, track *media.Track) *media.Asset {
	if track == nil || len(track.Assets) == 0 {
		return nil
	}
	var best *media.Asset
	bestDist := math.Inf(1)
	for i := range track.Assets {
		a := &track.Assets[i]
		start := a.ProgramStart
		end := start + a.Duration
		if t >= start && t < end {
			return a
		}
		d := math.Min(math.Abs(t-start), math.Abs(t-end))
		if d < bestDist || (d == bestDist && best != nil && start < best.ProgramStart) {
			best = a
			bestDist = d
		}
	}
	return best
}

func clampLocal(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	if t > duration {
		return duration
	}
	return t
}
