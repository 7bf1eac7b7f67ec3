// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ingest walks configured library roots, probes the files it
// finds and feeds them into the timeline as media assets.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/multicam/internal/media"
)

// Prober derives asset metadata from a file on disk.
type Prober interface {
	Probe(ctx context.Context, path string) (media.Asset, error)
}

// StatProber fills in what a plain stat can know: the capture instant
// from the file modification time and the kind from the extension.
// Duration stays zero until decoder metadata arrives.
type StatProber struct{}

func (StatProber) Probe(_ context.Context, path string) (media.Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return media.Asset{}, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	return media.Asset{
		Path:         path,
		Name:         filepath.Base(path),
		CaptureAt:    float64(info.ModTime().UnixMilli()) / 1000.0,
		HasCaptureAt: true,
		Kind:         kindForExt(filepath.Ext(path)),
	}, nil
}

func kindForExt(ext string) media.Kind {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav", ".flac", ".aac", ".m4a", ".ogg":
		return media.KindAudio
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return media.KindImage
	default:
		return media.KindVideo
	}
}
