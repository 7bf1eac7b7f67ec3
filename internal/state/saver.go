package state

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/timeline"
)

// DefaultSaveInterval debounces snapshot writes. Playback ticks mark the
// saver dirty many times a second; the backend sees at most one write per
// interval.
const DefaultSaveInterval = 2 * time.Second

// Saver debounces snapshot persistence off the playback path. Writes are
// best-effort; failures are logged and the session continues.
type Saver struct {
	store    Store
	source   func() *timeline.Snapshot
	interval time.Duration

	dirty  atomic.Bool
	logger zerolog.Logger
}

// NewSaver wires a Saver to a snapshot source (typically
// timelineStore.Snapshot). interval <= 0 falls back to the default.
func NewSaver(store Store, source func() *timeline.Snapshot, interval time.Duration) *Saver {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &Saver{
		store:    store,
		source:   source,
		interval: interval,
		logger:   log.WithComponent("state.saver"),
	}
}

// MarkDirty requests a write on the next debounce tick. Safe from any
// goroutine; suitable as a timeline store listener.
func (s *Saver) MarkDirty() {
	s.dirty.Store(true)
}

// Run flushes dirty state until the context ends, then performs one final
// flush so a clean shutdown never loses the last position.
func (s *Saver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return nil
		case <-ticker.C:
			if s.dirty.Swap(false) {
				s.flush(ctx)
			}
		}
	}
}

func (s *Saver) flush(ctx context.Context) {
	snap := s.source()
	if snap == nil {
		return
	}
	if err := s.store.Save(ctx, snap); err != nil {
		// Persistence must never block or fail playback.
		s.logger.Error().Err(err).Msg("snapshot save failed")
	}
}
