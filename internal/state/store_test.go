package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/multicam/internal/media"
	"github.com/ManuGH/multicam/internal/timeline"
)

func sampleSnapshot() *timeline.Snapshot {
	return &timeline.Snapshot{
		Version: timeline.SnapshotVersion,
		SavedAt: time.Now().UTC(),
		Sectors: []media.Sector{{
			ID: "2024-06-01",
			Tracks: []media.Track{{
				ID: "t1", Day: "2024-06-01", Kind: media.KindVideo, Index: 1, BaseName: "cam",
				Assets: []media.Asset{{
					ID: "v1", Name: "cam_1.mp4", Path: "/media/cam_1.mp4",
					CaptureAt: 1717200000, HasCaptureAt: true, Duration: 100, Kind: media.KindVideo,
				}},
			}},
		}},
		Zoom:           1.5,
		CanonicalTime:  12.4,
		ActiveSectorID: "2024-06-01",
		PerAssetTime:   map[string]float64{"v1": 12.4},
		PerSectorTime:  map[string]float64{"2024-06-01": 12.4},
		Anchor:         1717200000,
		AnchorSet:      true,
	}
}

func testStoreRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded, "empty store must load nil, not error")

	want := sampleSnapshot()
	require.NoError(t, s.Save(ctx, want))

	// Second save overwrites, it never appends.
	want.CanonicalTime = 99
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 99.0, got.CanonicalTime)
	assert.Equal(t, want.ActiveSectorID, got.ActiveSectorID)
	assert.Equal(t, want.PerAssetTime, got.PerAssetTime)
	assert.Equal(t, want.AnchorSet, got.AnchorSet)
	require.Len(t, got.Sectors, 1)
	assert.Equal(t, "cam", got.Sectors[0].Tracks[0].BaseName)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStoreRoundTrip(t, s)
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "timeline.json"))
	defer s.Close()
	testStoreRoundTrip(t, s)
}

func TestSqliteStoreRoundTrip(t *testing.T) {
	s, err := NewSqliteStore(filepath.Join(t.TempDir(), "timeline.sqlite"))
	require.NoError(t, err)
	defer s.Close()
	testStoreRoundTrip(t, s)
}

func TestNewStoreBackends(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{"sqlite", false},
		{"file", false},
		{"memory", false},
		{"bolt", true},
	}
	for _, tt := range tests {
		t.Run("backend_"+tt.backend, func(t *testing.T) {
			s, err := NewStore(tt.backend, dir)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.NoError(t, s.Close())
		})
	}
}

func TestSaverDebouncesWrites(t *testing.T) {
	backing := NewMemoryStore()
	snap := sampleSnapshot()
	saver := NewSaver(backing, func() *timeline.Snapshot { return snap }, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = saver.Run(ctx)
		close(done)
	}()

	saver.MarkDirty()
	require.Eventually(t, func() bool {
		got, err := backing.Load(context.Background())
		return err == nil && got != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSaverFlushesOnShutdown(t *testing.T) {
	backing := NewMemoryStore()
	snap := sampleSnapshot()
	saver := NewSaver(backing, func() *timeline.Snapshot { return snap }, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = saver.Run(ctx)
		close(done)
	}()

	saver.MarkDirty()
	cancel()
	<-done

	got, err := backing.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got, "shutdown must flush the pending snapshot")
}
