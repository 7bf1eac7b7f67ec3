// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package state provides durable snapshot storage for the timeline store.
// Persistence is best-effort: a failing backend is logged and never blocks
// playback, the in-memory store stays authoritative for the session.
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ManuGH/multicam/internal/timeline"
)

// Store persists and restores timeline snapshots. Load returns (nil, nil)
// when no snapshot exists yet.
type Store interface {
	Save(ctx context.Context, snap *timeline.Snapshot) error
	Load(ctx context.Context) (*timeline.Snapshot, error)
	Close() error
}

// NewStore creates a snapshot store for the given backend.
// Supported backends: sqlite (default), file, memory.
func NewStore(backend, dir string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "sqlite":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(dir, "timeline.sqlite"))
	case "file":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewFileStore(filepath.Join(dir, "timeline.json")), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot store backend: %s (supported: sqlite, file, memory)", backend)
	}
}

// MemoryStore implements Store using a guarded pointer. Used in tests and
// when no data directory is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	snap *timeline.Snapshot
}

// NewMemoryStore creates an in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, snap *timeline.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *snap
	s.snap = &clone
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (*timeline.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, nil
	}
	clone := *s.snap
	return &clone, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
	return nil
}
