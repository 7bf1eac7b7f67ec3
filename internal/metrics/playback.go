// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes Prometheus instrumentation for ingestion and
// playback synchronization.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	driftCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multicam_drift_corrections_total",
		Help: "Total number of hard decoder corrections by cause (seek, drift)",
	}, []string{"cause"})

	driftObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "multicam_decoder_drift_seconds",
		Help:    "Observed absolute decoder drift at reconciliation time",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5},
	})

	cameraSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multicam_camera_switches_total",
		Help: "Total number of camera switches by outcome (ok, timeout, superseded, noop)",
	}, []string{"outcome"})

	decoderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multicam_decoder_errors_total",
		Help: "Total number of decoder errors by stage (load, playback)",
	}, []string{"stage"})

	ingestedAssets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multicam_ingested_assets_total",
		Help: "Total number of ingested assets by result (placed, dropped)",
	}, []string{"result"})

	placeholderSectors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multicam_placeholder_sectors_total",
		Help: "Total number of placeholder sectors synthesized for unknown ids",
	})
)

// RecordDriftCorrection counts one hard correction. cause is "seek" or "drift".
func RecordDriftCorrection(cause string) {
	driftCorrections.WithLabelValues(normalizeLabel(cause, "seek", "drift")).Inc()
}

// ObserveDrift records the absolute drift seen by the reconciliation loop.
func ObserveDrift(seconds float64) {
	if seconds < 0 {
		seconds = -seconds
	}
	driftObserved.Observe(seconds)
}

// RecordCameraSwitch counts one camera-switch outcome.
func RecordCameraSwitch(outcome string) {
	cameraSwitches.WithLabelValues(normalizeLabel(outcome, "ok", "timeout", "superseded", "noop")).Inc()
}

// RecordDecoderError counts one decoder failure. stage is "load" or "playback".
func RecordDecoderError(stage string) {
	decoderErrors.WithLabelValues(normalizeLabel(stage, "load", "playback")).Inc()
}

// RecordIngest counts ingested assets by result.
func RecordIngest(result string, n int) {
	if n <= 0 {
		return
	}
	ingestedAssets.WithLabelValues(normalizeLabel(result, "placed", "dropped")).Add(float64(n))
}

// RecordPlaceholderSector counts one synthesized placeholder sector.
func RecordPlaceholderSector() {
	placeholderSectors.Inc()
}

func normalizeLabel(v string, allowed ...string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return "unknown"
}
