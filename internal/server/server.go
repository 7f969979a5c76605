// Package server exposes the orchestrator over HTTP: job submission,
// snapshot and server-sent-event progress, and the persisted playlists.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"songgraph/internal/models"
	"songgraph/internal/orchestrator"
	"songgraph/internal/progress"
	"songgraph/internal/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 10 << 20
)

// Catalog reads playlists from the remote provider.
type Catalog interface {
	FetchMetadata(ctx context.Context, ref string) (models.PlaylistMetadata, error)
	FetchTracks(ctx context.Context, ref string) ([]models.Track, string, error)
}

// Server routes HTTP requests to the orchestrator, the publisher and the
// store.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	publisher    *progress.Publisher
	store        storage.Store
	catalog      Catalog
	logger       *zap.Logger
	mux          *http.ServeMux
}

// New builds a Server. store and catalog may be nil, in which case their
// endpoints answer 503.
func New(o *orchestrator.Orchestrator, publisher *progress.Publisher, store storage.Store, catalog Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orchestrator: o,
		publisher:    publisher,
		store:        store,
		catalog:      catalog,
		logger:       logger,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/process-playlist-stream", s.handleSubmitPlaylist)
	s.mux.HandleFunc("POST /api/process-features", s.handleSubmitTracks)
	s.mux.HandleFunc("POST /api/process-playlist", s.handleProcessPlaylist)
	s.mux.HandleFunc("GET /api/progress/{job_id}", s.handleProgress)
	s.mux.HandleFunc("GET /api/progress-stream/{job_id}", s.handleProgressStream)
	s.mux.HandleFunc("GET /api/playlists", s.handleListPlaylists)
	s.mux.HandleFunc("GET /api/playlists/{name}", s.handleGetPlaylist)
	s.mux.HandleFunc("GET /api/playlist-metadata", s.handlePlaylistMetadata)
	s.mux.HandleFunc("GET /api/playlist-with-tracks", s.handlePlaylistWithTracks)
	s.mux.HandleFunc("GET /api/playlist-tracks", s.handlePlaylistTracks)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
