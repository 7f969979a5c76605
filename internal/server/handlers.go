package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"songgraph/internal/enrich"
	"songgraph/internal/jobs"
	"songgraph/internal/models"
	"songgraph/internal/orchestrator"
	"songgraph/internal/progress"
	"songgraph/internal/storage"
)

type jobResponse struct {
	JobID string `json:"job_id"`
}

type playlistResponse struct {
	PlaylistName string         `json:"playlist_name"`
	TrackCount   int            `json:"track_count"`
	Tracks       []models.Track `json:"tracks"`
	OutputFile   string         `json:"output_file,omitempty"`
}

func (s *Server) handleSubmitPlaylist(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.PlaylistURL) == "" {
		writeError(w, http.StatusBadRequest, "playlist_url is required")
		return
	}
	req.Tracks = nil
	s.submit(w, req)
}

func (s *Server) handleSubmitTracks(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tracks) == 0 {
		writeError(w, http.StatusBadRequest, "tracks are required")
		return
	}
	req.PlaylistURL = ""
	s.submit(w, req)
}

func (s *Server) submit(w http.ResponseWriter, req orchestrator.Request) {
	id, err := s.orchestrator.Submit(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{JobID: id})
}

func (s *Server) handleProcessPlaylist(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.PlaylistURL) == "" {
		writeError(w, http.StatusBadRequest, "playlist_url is required")
		return
	}
	req.Tracks = nil

	job, err := s.orchestrator.Process(r.Context(), req)
	if err != nil {
		s.logger.Warn("synchronous processing failed", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, processStatus(err), fmt.Sprintf("error processing playlist: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{
		PlaylistName: job.PlaylistName,
		TrackCount:   len(job.Tracks),
		Tracks:       job.Tracks,
		OutputFile:   job.OutputKey,
	})
}

// processStatus maps a synchronous processing failure to an HTTP status.
func processStatus(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest), errors.Is(err, enrich.ErrInvalidReference):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	job, err := s.orchestrator.Registry().Get(r.PathValue("job_id"))
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	events := s.publisher.Stream(r.Context(), r.PathValue("job_id"))
	if err := progress.WriteSSE(w, events); err != nil {
		s.logger.Debug("progress stream closed", zap.String("job_id", r.PathValue("job_id")), zap.Error(err))
	}
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}
	summaries, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("error listing playlists: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": nonNilSummaries(summaries)})
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}
	playlist, err := s.store.Load(r.Context(), r.PathValue("name"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("error loading playlist: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{
		PlaylistName: playlist.Name,
		TrackCount:   len(playlist.Tracks),
		Tracks:       playlist.Tracks,
	})
}

func (s *Server) handlePlaylistMetadata(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.catalogRef(w, r)
	if !ok {
		return
	}
	meta, err := s.catalog.FetchMetadata(r.Context(), ref)
	if err != nil {
		writeError(w, catalogStatus(err), fmt.Sprintf("error fetching playlist metadata: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handlePlaylistWithTracks(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.catalogRef(w, r)
	if !ok {
		return
	}
	meta, err := s.catalog.FetchMetadata(r.Context(), ref)
	if err != nil {
		writeError(w, catalogStatus(err), fmt.Sprintf("error fetching playlist metadata: %v", err))
		return
	}
	tracks, name, err := s.catalog.FetchTracks(r.Context(), ref)
	if err != nil {
		writeError(w, catalogStatus(err), fmt.Sprintf("error fetching playlist tracks: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata":      meta,
		"tracks":        tracks,
		"playlist_name": name,
		"track_count":   len(tracks),
	})
}

// handlePlaylistTracks returns the tracks with tempo filled in, leaving
// lyrics and sentiment for a later job.
func (s *Server) handlePlaylistTracks(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("playlist_url"))
	if ref == "" {
		writeError(w, http.StatusBadRequest, "playlist_url is required")
		return
	}
	tracks, name, err := s.orchestrator.FetchWithTempo(r.Context(), ref)
	if err != nil {
		writeError(w, processStatus(err), fmt.Sprintf("error fetching playlist tracks: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{
		PlaylistName: name,
		TrackCount:   len(tracks),
		Tracks:       nonNilTracks(tracks),
	})
}

func catalogStatus(err error) int {
	if errors.Is(err, enrich.ErrInvalidReference) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) catalogRef(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "playlist provider is not configured")
		return "", false
	}
	ref := strings.TrimSpace(r.URL.Query().Get("playlist_url"))
	if ref == "" {
		writeError(w, http.StatusBadRequest, "playlist_url is required")
		return "", false
	}
	return ref, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func nonNilTracks(t []models.Track) []models.Track {
	if t == nil {
		return []models.Track{}
	}
	return t
}

func nonNilSummaries(s []models.PlaylistSummary) []models.PlaylistSummary {
	if s == nil {
		return []models.PlaylistSummary{}
	}
	return s
}
