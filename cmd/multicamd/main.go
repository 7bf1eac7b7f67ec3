// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ManuGH/multicam/internal/config"
	"github.com/ManuGH/multicam/internal/daemon"
	mclog "github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("multicamd %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "multicamd: %v\n", err)
		os.Exit(1)
	}

	mclog.Configure(mclog.Config{
		Level:   cfg.LogLevel,
		Service: "multicam",
	})
	logger := mclog.Derive(func(c *zerolog.Context) {
		*c = c.Str(mclog.FieldComponent, "main").Str("version", version.Version)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := daemon.NewApp(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	logger.Info().Msg("multicamd starting")
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("runtime failure")
		os.Exit(1)
	}
	logger.Info().Msg("multicamd stopped")
}

// loadConfig resolves the effective config: an explicit --config path,
// otherwise ${MULTICAM_DATA}/config.yaml if it exists, otherwise defaults.
func loadConfig(explicit string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	if dataDir := os.Getenv("MULTICAM_DATA"); dataDir != "" {
		candidate := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := config.Load(candidate)
			if err != nil {
				return nil, err
			}
			if cfg.DataDir == "./data" {
				cfg.DataDir = dataDir
			}
			return cfg, nil
		}
		cfg := config.Default()
		cfg.DataDir = dataDir
		return cfg, nil
	}
	return config.Default(), nil
}
