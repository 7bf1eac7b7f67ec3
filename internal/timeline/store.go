// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/media"
	"github.com/ManuGH/multicam/internal/sectorize"
	"github.com/ManuGH/multicam/internal/timebase"
)

// DefaultHistoryDepth bounds the undo stack.
const DefaultHistoryDepth = 50

// Listener receives the new state after every dispatched command.
// Listeners run synchronously on the dispatching goroutine and must not
// dispatch themselves.
type Listener func(State)

// Store is the command-driven timeline state container. All mutation goes
// through Dispatch; reads get value copies and can run concurrently.
type Store struct {
	mu    sync.RWMutex
	state State

	// Undo history. Snapshots are taken before dirty commands only, never
	// on transient playback ticks, so scrubbing and clock updates cannot
	// flood the stack.
	undo         []State
	redo         []State
	historyDepth int

	listeners []Listener

	norm *timebase.Normalizer
	asm  *sectorize.Assembler

	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHistoryDepth overrides the undo stack bound.
func WithHistoryDepth(depth int) Option {
	return func(s *Store) {
		if depth > 0 {
			s.historyDepth = depth
		}
	}
}

// New creates an empty store wired to the given normalizer and assembler.
func New(norm *timebase.Normalizer, asm *sectorize.Assembler, opts ...Option) *Store {
	s := &Store{
		state: State{
			Zoom: DefaultZoom,
			Playback: PlaybackState{
				PerAssetTime:  map[string]float64{},
				PerSectorTime: map[string]float64{},
			},
		},
		historyDepth: DefaultHistoryDepth,
		norm:         norm,
		asm:          asm,
		logger:       log.WithComponent("timeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a listener for state changes.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Playback returns a copy of the playback projection.
func (s *Store) Playback() PlaybackState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.state.Playback
	p.PerAssetTime = copyMap(p.PerAssetTime)
	p.PerSectorTime = copyMap(p.PerSectorTime)
	return p
}

// Sectors returns a deep copy of the current sectors.
func (s *Store) Sectors() []media.Sector {
	return s.State().Sectors
}

// Dispatch applies a command and returns the resulting state copy.
func (s *Store) Dispatch(cmd Command) State {
	s.mu.Lock()

	prev := s.state
	// Commands receive a private clone so they may mutate slices and maps
	// freely without corrupting history snapshots.
	next, dirty := cmd.apply(s, prev.clone())
	if dirty {
		// A dirty command invalidates the redo tail.
		s.undo = append(s.undo, prev)
		if len(s.undo) > s.historyDepth {
			s.undo = s.undo[len(s.undo)-s.historyDepth:]
		}
		s.redo = nil
	}
	s.state = next

	out := s.state.clone()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(out)
	}
	return out
}

// CanUndo reports whether an undoable snapshot exists.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.undo) > 0
}

// CanRedo reports whether a redoable snapshot exists.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.redo) > 0
}
