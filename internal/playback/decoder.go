// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback synchronizes one decoder per camera track against a
// single canonical clock. Decoders are external, partially asynchronous
// resources: loading resolves (or fails) via events, and each decoder runs
// its own playback clock that the reconciliation loop keeps in line.
package playback

// Decoder is the handle the coordinator drives. Load is asynchronous: the
// host delivers completion through Coordinator.HandleMetadataReady and
// failures through Coordinator.HandleDecoderError.
type Decoder interface {
	// Load starts loading the given source. Any previous source is dropped.
	Load(path string)
	Play() error
	Pause() error
	// CurrentTime reports the decoder clock in asset-local seconds.
	CurrentTime() float64
	// Seek moves the decoder clock to an asset-local time.
	Seek(t float64)
	// Ready reports whether metadata for the current source is available.
	Ready() bool
	// Source returns the path passed to the last Load, or "".
	Source() string
}
