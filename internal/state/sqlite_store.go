// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/multicam/internal/persistence/sqlite"
	"github.com/ManuGH/multicam/internal/timeline"
)

const schemaVersion = 1

// SqliteStore implements Store using SQLite. The snapshot is one JSON
// payload in a single-row table; history lives in memory, not here.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) a SQLite snapshot store.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("snapshot store: create data dir: %w", err)
	}
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS timeline_snapshots (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Save(ctx context.Context, snap *timeline.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot store: marshal: %w", err)
	}
	query := `
	INSERT INTO timeline_snapshots (id, payload, updated_at) VALUES (1, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		payload = excluded.payload,
		updated_at = excluded.updated_at
	`
	_, err = s.DB.ExecContext(ctx, query, string(payload), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SqliteStore) Load(ctx context.Context) (*timeline.Snapshot, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, "SELECT payload FROM timeline_snapshots WHERE id = 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap timeline.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("snapshot store: unmarshal: %w", err)
	}
	return &snap, nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
