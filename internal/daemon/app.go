// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires configuration, persistence, ingestion, playback
// and the HTTP surface into one long-lived process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/multicam/internal/api"
	"github.com/ManuGH/multicam/internal/config"
	"github.com/ManuGH/multicam/internal/ingest"
	"github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/playback"
	"github.com/ManuGH/multicam/internal/sectorize"
	"github.com/ManuGH/multicam/internal/state"
	"github.com/ManuGH/multicam/internal/timebase"
	"github.com/ManuGH/multicam/internal/timeline"
)

// App owns the long-lived runtime lifecycle.
type App struct {
	cfg         *config.Config
	logger      zerolog.Logger
	store       *timeline.Store
	coordinator *playback.Coordinator
	library     *ingest.Service
	stateStore  state.Store
	saver       *state.Saver
	apiServer   *api.Server
}

// NewApp builds the full dependency graph from a validated configuration.
func NewApp(cfg *config.Config) (*App, error) {
	store := timeline.New(timebase.New(), sectorize.New(cfg.Playback.MergeGap))

	stateStore, err := state.NewStore(cfg.Storage.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("daemon: open state store: %w", err)
	}

	coordinator := playback.NewCoordinator(store, playback.Config{
		DriftThreshold:    cfg.Playback.DriftThreshold,
		ReconcileInterval: cfg.ReconcileInterval(),
		SwitchTimeout:     cfg.CameraSwitchTimeout(),
	})

	scanner := ingest.NewScanner(store, nil)
	library := ingest.NewService(cfg.Library, scanner)

	saver := state.NewSaver(stateStore, store.Snapshot, cfg.SaveInterval())

	return &App{
		cfg:         cfg,
		logger:      log.WithComponent("daemon"),
		store:       store,
		coordinator: coordinator,
		library:     library,
		stateStore:  stateStore,
		saver:       saver,
		apiServer:   api.NewServer(store, coordinator, library),
	}, nil
}

// Store exposes the timeline store, mainly for tests.
func (a *App) Store() *timeline.Store { return a.store }

// Run restores the last snapshot, starts all subsystems and blocks until
// ctx is canceled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if snap, err := a.stateStore.Load(ctx); err != nil {
		// A broken snapshot must not brick startup; the timeline simply
		// starts empty and the next save overwrites it.
		a.logger.Warn().Err(err).Msg("snapshot load failed, starting empty")
	} else if snap != nil {
		if err := a.store.Restore(snap); err != nil {
			a.logger.Warn().Err(err).Msg("snapshot restore failed, starting empty")
		} else {
			a.logger.Info().Int("sectors", len(snap.Sectors)).Msg("timeline restored")
		}
	}
	a.store.Subscribe(func(timeline.State) { a.saver.MarkDirty() })

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.coordinator.Run(ctx) })
	g.Go(func() error { return a.library.Run(ctx) })
	g.Go(func() error { return a.saver.Run(ctx) })

	httpSrv := &http.Server{
		Addr:              a.cfg.API.Listen,
		Handler:           a.apiServer.Router(a.cfg.API),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		a.logger.Info().Str("listen", a.cfg.API.Listen).Msg("http server starting")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("daemon: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if closeErr := a.stateStore.Close(); closeErr != nil {
		a.logger.Warn().Err(closeErr).Msg("state store close failed")
	}
	return err
}
