package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/multicam/internal/timeline"
)

// FileStore implements Store as one JSON file, written atomically so a
// crash mid-save never leaves a truncated snapshot behind.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed snapshot store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(_ context.Context, snap *timeline.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("snapshot store: create dir: %w", err)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot store: marshal: %w", err)
	}
	if err := renameio.WriteFile(s.path, payload, 0o640); err != nil {
		return fmt.Errorf("snapshot store: write: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (*timeline.Snapshot, error) {
	payload, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap timeline.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("snapshot store: unmarshal: %w", err)
	}
	return &snap, nil
}

func (s *FileStore) Close() error {
	return nil
}
