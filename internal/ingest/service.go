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

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/multicam/internal/config"
	"github.com/ManuGH/multicam/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Service owns scanning across all configured roots and, when enabled,
// a filesystem watcher that rescans a root after changes settle.
type Service struct {
	cfg      config.LibraryConfig
	scanner  *Scanner
	logger   zerolog.Logger
	group    singleflight.Group
	debounce time.Duration
}

func NewService(cfg config.LibraryConfig, scanner *Scanner) *Service {
	return &Service{
		cfg:      cfg,
		scanner:  scanner,
		logger:   log.WithComponent("ingest"),
		debounce: defaultDebounce,
	}
}

// ScanAll scans every configured root once. Per-root failures are logged
// and reflected in the results, they do not abort the remaining roots.
func (s *Service) ScanAll(ctx context.Context) []*ScanResult {
	results := make([]*ScanResult, 0, len(s.cfg.Roots))
	for _, root := range s.cfg.Roots {
		res, err := s.ScanRoot(ctx, root.ID)
		if err != nil {
			s.logger.Error().Err(err).Str(log.FieldRootID, root.ID).Msg("scan failed")
		}
		if res != nil {
			results = append(results, res)
		}
	}
	return results
}

// ScanRoot scans one root by id. Concurrent requests for the same root
// collapse into a single scan.
func (s *Service) ScanRoot(ctx context.Context, rootID string) (*ScanResult, error) {
	root, ok := s.rootByID(rootID)
	if !ok {
		return nil, fmt.Errorf("unknown library root %q", rootID)
	}
	v, err, _ := s.group.Do(rootID, func() (any, error) {
		return s.scanner.ScanRoot(ctx, root)
	})
	res, _ := v.(*ScanResult)
	return res, err
}

// Run performs the initial scan and then, if watching is enabled, blocks
// on the filesystem watcher until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.ScanAll(ctx)
	if !s.cfg.Watch {
		<-ctx.Done()
		return nil
	}
	return s.watch(ctx)
}

func (s *Service) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, root := range s.cfg.Roots {
		if err := addRecursive(watcher, root); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldRootID, root.ID).Msg("watch setup incomplete")
		}
	}

	pending := make(map[string]struct{})
	var settle *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rootID, found := s.rootForPath(ev.Name)
			if !found {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				// New directories need their own watch.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watcher.Add(ev.Name)
				}
			}
			pending[rootID] = struct{}{}
			if settle == nil {
				settle = time.AfterFunc(s.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				settle.Reset(s.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("watcher error")

		case <-fire:
			settle = nil
			for rootID := range pending {
				delete(pending, rootID)
				if _, err := s.ScanRoot(ctx, rootID); err != nil {
					s.logger.Error().Err(err).Str(log.FieldRootID, rootID).Msg("rescan failed")
				}
			}
		}
	}
}

func (s *Service) rootByID(id string) (config.RootConfig, bool) {
	for _, root := range s.cfg.Roots {
		if root.ID == id {
			return root, true
		}
	}
	return config.RootConfig{}, false
}

func (s *Service) rootForPath(path string) (string, bool) {
	for _, root := range s.cfg.Roots {
		rel, err := filepath.Rel(root.Path, path)
		if err == nil && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel) {
			return root.ID, true
		}
	}
	return "", false
}

func addRecursive(watcher *fsnotify.Watcher, root config.RootConfig) error {
	return filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root.Path, path)
		if relErr != nil {
			return nil
		}
		if root.MaxDepth > 0 && depthOf(rel) >= root.MaxDepth {
			return fs.SkipDir
		}
		return watcher.Add(path)
	})
}

func depthOf(rel string) int {
	if rel == "." {
		return 0
	}
	n := 1
	for _, r := range rel {
		if r == filepath.Separator {
			n++
		}
	}
	return n
}
