// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the timeline command and query surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/multicam/internal/config"
	"github.com/ManuGH/multicam/internal/ingest"
	"github.com/ManuGH/multicam/internal/log"
	"github.com/ManuGH/multicam/internal/timeline"
	"github.com/ManuGH/multicam/internal/version"
)

// PlaybackController is the slice of the playback coordinator the HTTP
// surface drives.
type PlaybackController interface {
	Play() error
	Pause() error
	Seek(t float64)
	SwitchToAsset(assetID string) error
	SwitchToTrack(trackID string) error
}

// LibraryScanner triggers library scans.
type LibraryScanner interface {
	ScanAll(ctx context.Context) []*ingest.ScanResult
	ScanRoot(ctx context.Context, rootID string) (*ingest.ScanResult, error)
}

// Server holds handler dependencies.
type Server struct {
	store    *timeline.Store
	playback PlaybackController
	library  LibraryScanner
	logger   zerolog.Logger
}

func NewServer(store *timeline.Store, playback PlaybackController, library LibraryScanner) *Server {
	return &Server{
		store:    store,
		playback: playback,
		library:  library,
		logger:   log.WithComponent("api"),
	}
}

// Router assembles the HTTP handler with logging, panic recovery and
// per-IP rate limiting.
func (s *Server) Router(cfg config.APIConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	if cfg.RateLimit > 0 {
		r.Use(httprate.Limit(cfg.RateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sectors", s.handleSectors)
		r.Get("/playback", s.handlePlayback)

		r.Post("/ingest/scan", s.handleScan)
		r.Delete("/assets/{assetID}", s.handleRemoveAsset)

		r.Post("/playback/play", s.handlePlay)
		r.Post("/playback/pause", s.handlePause)
		r.Post("/playback/seek", s.handleSeek)

		r.Post("/active/sector", s.handleActiveSector)
		r.Post("/active/track", s.handleActiveTrack)
		r.Post("/active/asset", s.handleActiveAsset)

		r.Post("/zoom", s.handleZoom)
		r.Post("/zoom/fit", s.handleZoomFit)

		r.Post("/undo", s.handleUndo)
		r.Post("/redo", s.handleRedo)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleSectors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Sectors())
}

func (s *Server) handlePlayback(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RootID string `json:"root_id"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.RootID == "" {
		writeJSON(w, http.StatusOK, s.library.ScanAll(r.Context()))
		return
	}
	res, err := s.library.ScanRoot(r.Context(), req.RootID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	st := s.store.State()
	if _, _, _, ok := st.FindAsset(assetID); !ok {
		writeError(w, http.StatusNotFound, "unknown asset")
		return
	}
	s.store.Dispatch(timeline.RemoveAsset{AssetID: assetID})
	writeJSON(w, http.StatusOK, map[string]string{"removed": assetID})
}

func (s *Server) handlePlay(w http.ResponseWriter, _ *http.Request) {
	if err := s.playback.Play(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	if err := s.playback.Pause(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time *float64 `json:"time"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Time == nil {
		writeError(w, http.StatusBadRequest, "time is required")
		return
	}
	s.playback.Seek(*req.Time)
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func (s *Server) handleActiveSector(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeID(w, r)
	if !ok {
		return
	}
	s.store.Dispatch(timeline.SetActiveSector{ID: id})
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func (s *Server) handleActiveTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeID(w, r)
	if !ok {
		return
	}
	if err := s.playback.SwitchToTrack(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func (s *Server) handleActiveAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeID(w, r)
	if !ok {
		return
	}
	if err := s.playback.SwitchToAsset(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *float64 `json:"level"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Level == nil {
		writeError(w, http.StatusBadRequest, "level is required")
		return
	}
	st := s.store.Dispatch(timeline.SetZoom{Level: *req.Level})
	writeJSON(w, http.StatusOK, map[string]float64{"zoom": st.Zoom})
}

func (s *Server) handleZoomFit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ViewportWidth float64 `json:"viewport_width"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	st := s.store.Dispatch(timeline.FitToScreen{ViewportWidth: req.ViewportWidth})
	writeJSON(w, http.StatusOK, map[string]float64{"zoom": st.Zoom})
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request) {
	if !s.store.CanUndo() {
		writeError(w, http.StatusConflict, "nothing to undo")
		return
	}
	s.store.Dispatch(timeline.Undo{})
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func (s *Server) handleRedo(w http.ResponseWriter, _ *http.Request) {
	if !s.store.CanRedo() {
		writeError(w, http.StatusConflict, "nothing to redo")
		return
	}
	s.store.Dispatch(timeline.Redo{})
	writeJSON(w, http.StatusOK, s.store.Playback())
}

func decodeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return "", false
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return "", false
	}
	return req.ID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeOptional tolerates an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}
