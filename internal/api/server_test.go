package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/multicam/internal/config"
	"github.com/ManuGH/multicam/internal/ingest"
	"github.com/ManuGH/multicam/internal/media"
	"github.com/ManuGH/multicam/internal/sectorize"
	"github.com/ManuGH/multicam/internal/timebase"
	"github.com/ManuGH/multicam/internal/timeline"
)

// 2024-06-01 00:00:00 UTC
const day1 = 1717200000.0

type fakeController struct {
	playCalls  int
	pauseCalls int
	seeks      []float64
	assets     []string
	tracks     []string
	known      map[string]bool
}

func (f *fakeController) Play() error  { f.playCalls++; return nil }
func (f *fakeController) Pause() error { f.pauseCalls++; return nil }
func (f *fakeController) Seek(t float64) {
	f.seeks = append(f.seeks, t)
}

func (f *fakeController) SwitchToAsset(id string) error {
	if !f.known[id] {
		return fmt.Errorf("switch: unknown asset %q", id)
	}
	f.assets = append(f.assets, id)
	return nil
}

func (f *fakeController) SwitchToTrack(id string) error {
	if !f.known[id] {
		return fmt.Errorf("switch: unknown track %q", id)
	}
	f.tracks = append(f.tracks, id)
	return nil
}

type fakeLibrary struct {
	roots map[string]*ingest.ScanResult
}

func (f *fakeLibrary) ScanAll(context.Context) []*ingest.ScanResult {
	out := make([]*ingest.ScanResult, 0, len(f.roots))
	for _, r := range f.roots {
		out = append(out, r)
	}
	return out
}

func (f *fakeLibrary) ScanRoot(_ context.Context, rootID string) (*ingest.ScanResult, error) {
	r, ok := f.roots[rootID]
	if !ok {
		return nil, fmt.Errorf("unknown library root %q", rootID)
	}
	return r, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *timeline.Store, *fakeController) {
	t.Helper()
	store := timeline.New(timebase.New(), sectorize.New(1.0))
	store.Dispatch(timeline.IngestAssets{Assets: []media.Asset{
		{ID: "cam-1", Path: "/media/cam_1.mp4", Name: "cam_1.mp4", CaptureAt: day1, HasCaptureAt: true, Duration: 100, Kind: media.KindVideo},
	}})

	ctrl := &fakeController{known: map[string]bool{"cam-1": true}}
	lib := &fakeLibrary{roots: map[string]*ingest.ScanResult{
		"root-a": {RootID: "root-a", TotalScanned: 3, Ingested: 3, FinalStatus: ingest.RootStatusOK},
	}}
	srv := NewServer(store, ctrl, lib)
	ts := httptest.NewServer(srv.Router(config.APIConfig{}))
	t.Cleanup(ts.Close)
	return ts, store, ctrl
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestGetSectors(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/v1/sectors")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sectors []media.Sector
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sectors))
	require.Len(t, sectors, 1)
	assert.Equal(t, "2024-06-01", sectors[0].ID)
	require.Len(t, sectors[0].Tracks, 1)
	assert.Equal(t, "cam", sectors[0].Tracks[0].BaseName)
}

func TestGetPlayback(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/playback", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2024-06-01", body["active_sector_id"])
}

func TestSeek(t *testing.T) {
	ts, _, ctrl := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/playback/seek", `{"time": 42.5}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, ctrl.seeks, 1)
	assert.Equal(t, 42.5, ctrl.seeks[0])

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/playback/seek", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "time is required")
}

func TestPlayPause(t *testing.T) {
	ts, _, ctrl := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/playback/play", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/playback/pause", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ctrl.playCalls)
	assert.Equal(t, 1, ctrl.pauseCalls)
}

func TestSetActiveAsset(t *testing.T) {
	ts, _, ctrl := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/active/asset", `{"id": "cam-1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"cam-1"}, ctrl.assets)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/active/asset", `{"id": "ghost"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/active/asset", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetActiveSectorFuzzy(t *testing.T) {
	ts, store, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/active/sector", `{"id": "shoot-2024-06-01"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2024-06-01", store.Playback().ActiveSectorID)
}

func TestScan(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/ingest/scan", `{"root_id": "root-a"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "root-a", body["RootID"])

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/ingest/scan", `{"root_id": "ghost"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoveAsset(t *testing.T) {
	ts, store, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/v1/assets/cam-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	sectors := store.Sectors()
	require.Len(t, sectors, 1)
	assert.Empty(t, sectors[0].Tracks)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/assets/cam-1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestZoomClamped(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/zoom", `{"level": 5000}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, timeline.MaxZoom, body["zoom"])
}

func TestUndoRedo(t *testing.T) {
	ts, store, _ := newTestServer(t)
	// The seed ingestion is history-worthy, so one undo is available.
	require.True(t, store.CanUndo())

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/undo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, store.Sectors())

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/redo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, store.Sectors(), 1)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/redo", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "nothing to redo")
}

func TestRateLimit(t *testing.T) {
	store := timeline.New(timebase.New(), sectorize.New(1.0))
	srv := NewServer(store, &fakeController{}, &fakeLibrary{})
	ts := httptest.NewServer(srv.Router(config.APIConfig{RateLimit: 2}))
	t.Cleanup(ts.Close)

	statuses := make([]int, 0, 3)
	for range 3 {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		_ = resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
}
