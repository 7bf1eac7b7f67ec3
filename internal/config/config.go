// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for multicam.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the YAML configuration structure.
type Config struct {
	DataDir  string         `yaml:"dataDir,omitempty"`
	LogLevel string         `yaml:"logLevel,omitempty"`
	API      APIConfig      `yaml:"api,omitempty"`
	Library  LibraryConfig  `yaml:"library,omitempty"`
	Playback PlaybackConfig `yaml:"playback,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
}

// APIConfig holds the HTTP surface settings.
type APIConfig struct {
	Listen string `yaml:"listen,omitempty"`
	// RateLimit is requests per minute per client IP.
	RateLimit int `yaml:"rateLimit,omitempty"`
}

// LibraryConfig holds media library settings.
type LibraryConfig struct {
	Watch bool         `yaml:"watch,omitempty"`
	Roots []RootConfig `yaml:"roots,omitempty"`
}

// RootConfig defines one scan root.
type RootConfig struct {
	ID         string   `yaml:"id"`
	Path       string   `yaml:"path"`
	MaxDepth   int      `yaml:"max_depth,omitempty"`
	IncludeExt []string `yaml:"include_ext,omitempty"`
}

// PlaybackConfig tunes the synchronization engine. Durations are strings
// like "200ms" or "2s".
type PlaybackConfig struct {
	DriftThreshold      float64 `yaml:"driftThreshold,omitempty"`
	ReconcileInterval   string  `yaml:"reconcileInterval,omitempty"`
	CameraSwitchTimeout string  `yaml:"cameraSwitchTimeout,omitempty"`
	MergeGap            float64 `yaml:"mergeGap,omitempty"`
}

// StorageConfig selects the snapshot persistence backend.
type StorageConfig struct {
	// Backend is "sqlite" (default), "file" or "memory".
	Backend      string `yaml:"backend,omitempty"`
	SaveInterval string `yaml:"saveInterval,omitempty"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8088"
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = 120
	}
	if c.Playback.DriftThreshold == 0 {
		c.Playback.DriftThreshold = 0.5
	}
	if c.Playback.ReconcileInterval == "" {
		c.Playback.ReconcileInterval = "200ms"
	}
	if c.Playback.CameraSwitchTimeout == "" {
		c.Playback.CameraSwitchTimeout = "2s"
	}
	if c.Playback.MergeGap == 0 {
		c.Playback.MergeGap = 1.0
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.SaveInterval == "" {
		c.Storage.SaveInterval = "2s"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logLevel %q", c.LogLevel)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rateLimit must not be negative")
	}
	if c.Playback.DriftThreshold < 0 {
		return fmt.Errorf("playback.driftThreshold must not be negative")
	}
	if c.Playback.MergeGap < 0 {
		return fmt.Errorf("playback.mergeGap must not be negative")
	}
	for _, d := range []struct {
		name  string
		value string
	}{
		{"playback.reconcileInterval", c.Playback.ReconcileInterval},
		{"playback.cameraSwitchTimeout", c.Playback.CameraSwitchTimeout},
		{"storage.saveInterval", c.Storage.SaveInterval},
	} {
		dur, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if dur <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	switch c.Storage.Backend {
	case "sqlite", "file", "memory":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	seen := make(map[string]struct{}, len(c.Library.Roots))
	for i, root := range c.Library.Roots {
		if root.ID == "" {
			return fmt.Errorf("library.roots[%d]: id is required", i)
		}
		if root.Path == "" {
			return fmt.Errorf("library.roots[%d] (%s): path is required", i, root.ID)
		}
		if root.MaxDepth < 0 {
			return fmt.Errorf("library.roots[%d] (%s): max_depth must not be negative", i, root.ID)
		}
		if _, dup := seen[root.ID]; dup {
			return fmt.Errorf("duplicate library root id %q", root.ID)
		}
		seen[root.ID] = struct{}{}
	}
	return nil
}

// ReconcileInterval returns the parsed loop tick. Call Validate first.
func (c *Config) ReconcileInterval() time.Duration {
	return mustDuration(c.Playback.ReconcileInterval, 200*time.Millisecond)
}

// CameraSwitchTimeout returns the parsed switch deadline. Call Validate first.
func (c *Config) CameraSwitchTimeout() time.Duration {
	return mustDuration(c.Playback.CameraSwitchTimeout, 2*time.Second)
}

// SaveInterval returns the parsed snapshot debounce. Call Validate first.
func (c *Config) SaveInterval() time.Duration {
	return mustDuration(c.Storage.SaveInterval, 2*time.Second)
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
