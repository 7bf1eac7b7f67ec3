// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/multicam/internal/config"
	"github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/media"
	"github.com/ManuGH/multicam/internal/metrics"
	"github.com/ManuGH/multicam/internal/timeline"
)

// RootStatus summarizes how a scan of one root went.
type RootStatus string

const (
	RootStatusOK       RootStatus = "ok"
	RootStatusDegraded RootStatus = "degraded"
	RootStatusFailed   RootStatus = "failed"
)

// ScanResult is the per-root scan summary.
type ScanResult struct {
	RootID       string
	Started      time.Time
	Finished     time.Time
	TotalScanned int
	Ingested     int
	Skipped      int
	ErrorCount   int
	FinalStatus  RootStatus
	LastError    string
}

// Error returns a human-readable summary if the scan had issues.
func (s *ScanResult) Error() string {
	if s.ErrorCount == 0 && s.FinalStatus == RootStatusOK {
		return ""
	}
	return fmt.Sprintf("scan completed with %d errors, status=%s", s.ErrorCount, s.FinalStatus)
}

// Scanner walks library roots and ingests media files into the timeline.
type Scanner struct {
	store  *timeline.Store
	prober Prober
}

func NewScanner(store *timeline.Store, prober Prober) *Scanner {
	if prober == nil {
		prober = StatProber{}
	}
	return &Scanner{store: store, prober: prober}
}

// ScanRoot performs a full scan of one root. Paths are resolved through
// symlinks and confined to the root; files escaping it are counted as
// errors and skipped. Asset ids derive from root id and relative path,
// so rescans of unchanged trees are idempotent ingestions.
func (sc *Scanner) ScanRoot(ctx context.Context, cfg config.RootConfig) (*ScanResult, error) {
	logger := log.WithComponent("ingest")
	result := &ScanResult{
		RootID:      cfg.ID,
		Started:     time.Now(),
		FinalStatus: RootStatusOK,
	}

	rootResolved, err := filepath.EvalSymlinks(cfg.Path)
	if err != nil {
		result.Finished = time.Now()
		result.FinalStatus = RootStatusFailed
		result.LastError = fmt.Sprintf("root path unresolvable: %v", err)
		return result, fmt.Errorf("resolve root path: %w", err)
	}
	rootResolved = filepath.Clean(rootResolved)

	var assets []media.Asset
	err = filepath.WalkDir(cfg.Path, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			result.FinalStatus = RootStatusFailed
			result.LastError = "scan cancelled"
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			result.ErrorCount++
			logger.Warn().Err(walkErr).Str(log.FieldRootID, cfg.ID).Str(log.FieldPath, path).Msg("walk error")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			rel, err := filepath.Rel(cfg.Path, path)
			if err != nil {
				result.ErrorCount++
				return nil
			}
			depth := strings.Count(rel, string(os.PathSeparator))
			if cfg.MaxDepth > 0 && depth >= cfg.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}

		fileResolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			result.Skipped++
			logger.Warn().Err(err).Str(log.FieldRootID, cfg.ID).Str(log.FieldPath, path).Msg("unresolvable symlink")
			return nil
		}
		rel, err := filepath.Rel(rootResolved, fileResolved)
		if err != nil || strings.HasPrefix(rel, "..") {
			result.ErrorCount++
			logger.Warn().Str(log.FieldRootID, cfg.ID).Str(log.FieldPath, path).Msg("path escapes root, skipping")
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !isAllowedExtension(ext, cfg.IncludeExt) {
			result.Skipped++
			return nil
		}

		asset, err := sc.prober.Probe(ctx, fileResolved)
		if err != nil {
			result.ErrorCount++
			logger.Warn().Err(err).Str(log.FieldRootID, cfg.ID).Str(log.FieldPath, path).Msg("probe failed")
			return nil
		}
		asset.ID = cfg.ID + ":" + filepath.ToSlash(rel)
		assets = append(assets, asset)
		result.TotalScanned++
		return nil
	})

	if err != nil && err != context.Canceled {
		result.FinalStatus = RootStatusFailed
		result.LastError = err.Error()
		result.Finished = time.Now()
		return result, err
	}

	if len(assets) > 0 {
		before := countAssets(sc.store.Sectors())
		sc.store.Dispatch(timeline.IngestAssets{Assets: assets})
		after := countAssets(sc.store.Sectors())
		result.Ingested = after - before
		metrics.RecordIngest("placed", result.Ingested)
		// Only captureless assets count as dropped; assets already present
		// from an earlier scan are neither placed nor dropped.
		dropped := 0
		for _, a := range assets {
			if !a.HasCaptureAt {
				dropped++
			}
		}
		metrics.RecordIngest("dropped", dropped)
	}

	if result.ErrorCount > 0 {
		result.FinalStatus = RootStatusDegraded
	}
	result.Finished = time.Now()

	logger.Info().
		Str(log.FieldRootID, cfg.ID).
		Int("scanned", result.TotalScanned).
		Int("ingested", result.Ingested).
		Int("skipped", result.Skipped).
		Int("errors", result.ErrorCount).
		Msg("scan finished")
	return result, nil
}

func countAssets(sectors []media.Sector) int {
	n := 0
	for i := range sectors {
		for j := range sectors[i].Tracks {
			n += len(sectors[i].Tracks[j].Assets)
		}
	}
	return n
}

func isAllowedExtension(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}
