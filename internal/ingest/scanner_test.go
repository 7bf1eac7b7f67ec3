package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/multicam/internal/config"
	"github.com/ManuGH/multicam/internal/media"
	"github.com/ManuGH/multicam/internal/sectorize"
	"github.com/ManuGH/multicam/internal/timebase"
	"github.com/ManuGH/multicam/internal/timeline"
)

// 2024-06-01 00:00:00 UTC
const day1 = 1717200000.0

// stubProber assigns deterministic capture times so sector assembly is
// predictable in tests.
type stubProber struct {
	captureAt map[string]float64
}

func (p stubProber) Probe(_ context.Context, path string) (media.Asset, error) {
	name := filepath.Base(path)
	at, ok := p.captureAt[name]
	if !ok {
		at = day1
	}
	return media.Asset{
		Path:         path,
		Name:         name,
		CaptureAt:    at,
		HasCaptureAt: true,
		Duration:     60,
		Kind:         media.KindVideo,
	}, nil
}

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
}

func newStore() *timeline.Store {
	return timeline.New(timebase.New(), sectorize.New(1.0))
}

func TestScanRootIngestsMediaFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cam_1.mp4")
	writeFile(t, dir, "cam_2.mp4")
	writeFile(t, dir, "notes.txt")

	store := newStore()
	sc := NewScanner(store, stubProber{captureAt: map[string]float64{
		"cam_1.mp4": day1,
		"cam_2.mp4": day1 + 120,
	}})

	res, err := sc.ScanRoot(context.Background(), config.RootConfig{
		ID: "root-a", Path: dir, IncludeExt: []string{".mp4"},
	})
	require.NoError(t, err)
	assert.Equal(t, RootStatusOK, res.FinalStatus)
	assert.Equal(t, 2, res.TotalScanned)
	assert.Equal(t, 2, res.Ingested)
	assert.Equal(t, 1, res.Skipped)

	sectors := store.Sectors()
	require.Len(t, sectors, 1)
	require.Len(t, sectors[0].Tracks, 1)
	assert.Len(t, sectors[0].Tracks[0].Assets, 2)
	assert.Equal(t, "root-a:cam_1.mp4", sectors[0].Tracks[0].Assets[0].ID)
}

func TestScanRootRescanIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cam_1.mp4")

	store := newStore()
	sc := NewScanner(store, stubProber{})
	root := config.RootConfig{ID: "root-a", Path: dir}

	first, err := sc.ScanRoot(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Ingested)

	second, err := sc.ScanRoot(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalScanned)
	assert.Equal(t, 0, second.Ingested)

	sectors := store.Sectors()
	require.Len(t, sectors, 1)
	assert.Len(t, sectors[0].Tracks[0].Assets, 1)
}

// capturelessProber marks one file as unplaceable so drop accounting is
// observable.
type capturelessProber struct {
	stubProber
	captureless string
}

func (p capturelessProber) Probe(ctx context.Context, path string) (media.Asset, error) {
	a, err := p.stubProber.Probe(ctx, path)
	if err == nil && a.Name == p.captureless {
		a.HasCaptureAt = false
	}
	return a, err
}

func TestScanRootDropAccounting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cam_1.mp4")
	writeFile(t, dir, "lost_1.mp4")

	store := newStore()
	sc := NewScanner(store, capturelessProber{captureless: "lost_1.mp4"})
	root := config.RootConfig{ID: "root-a", Path: dir}

	before := ingestedCount(t, "dropped")
	first, err := sc.ScanRoot(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Ingested)
	assert.Equal(t, before+1, ingestedCount(t, "dropped"),
		"only the captureless asset counts as dropped")

	// A rescan re-ingests nothing; duplicates are not dropped assets.
	placedBefore := ingestedCount(t, "placed")
	droppedBefore := ingestedCount(t, "dropped")
	second, err := sc.ScanRoot(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Ingested)
	assert.Equal(t, placedBefore, ingestedCount(t, "placed"))
	assert.Equal(t, droppedBefore+1, ingestedCount(t, "dropped"),
		"the captureless asset is dropped again, the duplicate is not")
}

func ingestedCount(t *testing.T, result string) float64 {
	t.Helper()
	fams, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range fams {
		if f.GetName() != "multicam_ingested_assets_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestScanRootHonorsMaxDepth(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top_1.mp4")
	writeFile(t, filepath.Join(dir, "deep", "deeper"), "nested_1.mp4")

	store := newStore()
	sc := NewScanner(store, stubProber{})

	res, err := sc.ScanRoot(context.Background(), config.RootConfig{
		ID: "root-a", Path: dir, MaxDepth: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalScanned)
}

func TestScanRootMissingPathFails(t *testing.T) {
	store := newStore()
	sc := NewScanner(store, stubProber{})

	res, err := sc.ScanRoot(context.Background(), config.RootConfig{
		ID: "root-a", Path: filepath.Join(t.TempDir(), "gone"),
	})
	require.Error(t, err)
	assert.Equal(t, RootStatusFailed, res.FinalStatus)
}

func TestServiceScanRootUnknownID(t *testing.T) {
	svc := NewService(config.LibraryConfig{}, NewScanner(newStore(), stubProber{}))
	_, err := svc.ScanRoot(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown library root")
}

func TestServiceScanAllContinuesPastFailures(t *testing.T) {
	good := t.TempDir()
	writeFile(t, good, "cam_1.mp4")

	svc := NewService(config.LibraryConfig{Roots: []config.RootConfig{
		{ID: "bad", Path: filepath.Join(t.TempDir(), "gone")},
		{ID: "good", Path: good},
	}}, NewScanner(newStore(), stubProber{}))

	results := svc.ScanAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, RootStatusFailed, results[0].FinalStatus)
	assert.Equal(t, RootStatusOK, results[1].FinalStatus)
	assert.Equal(t, 1, results[1].Ingested)
}
