// Package orchestrator turns enrichment requests into jobs: it registers the
// job, fetches the playlist when needed, drives the enrichment pipeline,
// normalizes sentiment and persists the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"songgraph/internal/enrich"
	"songgraph/internal/jobs"
	"songgraph/internal/models"
	"songgraph/internal/storage"
)

// DefaultPlaylistName is used when a request carries tracks without a name.
const DefaultPlaylistName = "Unknown Playlist"

var (
	// ErrInvalidRequest marks requests rejected before a job is created.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmptyRequest is returned for a request with neither a playlist
	// reference nor tracks.
	ErrEmptyRequest = fmt.Errorf("%w: either playlist_url or tracks is required", ErrInvalidRequest)
	// ErrFetch wraps failures of the playlist provider.
	ErrFetch = errors.New("fetch playlist")
)

// Request asks for one collection to be enriched. PlaylistURL and Tracks are
// mutually exclusive; PlaylistURL wins when both are set.
type Request struct {
	PlaylistURL  string         `json:"playlist_url,omitempty"`
	Tracks       []models.Track `json:"tracks,omitempty"`
	PlaylistName string         `json:"playlist_name,omitempty"`
	Topology     string         `json:"topology,omitempty"`
}

// topology picks the requested topology, or the per-entry-point default:
// playlist references run sequentially, supplied tracks run in parallel.
func (r Request) topology() (enrich.Topology, error) {
	if r.Topology != "" {
		return enrich.ParseTopology(r.Topology)
	}
	if r.PlaylistURL != "" {
		return enrich.Sequential, nil
	}
	return enrich.Parallel, nil
}

// referenceValidator is implemented by fetchers that can reject a malformed
// playlist reference up front.
type referenceValidator interface {
	ValidateReference(ref string) error
}

// Orchestrator runs jobs in the background against a shared registry.
type Orchestrator struct {
	ctx      context.Context
	registry *jobs.Registry
	pipeline *enrich.Pipeline
	fetcher  enrich.PlaylistFetcher
	store    storage.Store
	logger   *zap.Logger
	newID    func() string
	wg       sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore persists completed collections. Without a store results only
// live in the registry.
func WithStore(store storage.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIDGenerator replaces the random job id source.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// New creates an Orchestrator. Background jobs inherit ctx, so cancelling
// it stops every job that is still running; request contexts never do.
func New(ctx context.Context, registry *jobs.Registry, pipeline *enrich.Pipeline, fetcher enrich.PlaylistFetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ctx:      ctx,
		registry: registry,
		pipeline: pipeline,
		fetcher:  fetcher,
		logger:   zap.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the registry jobs are recorded in.
func (o *Orchestrator) Registry() *jobs.Registry { return o.registry }

// Submit registers a job for req and starts it in the background. The job id
// is returned as soon as the job is visible in the registry.
func (o *Orchestrator) Submit(req Request) (string, error) {
	id, err := o.create(req)
	if err != nil {
		return "", err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.Run(o.ctx, id, req); err != nil {
			o.logger.Warn("job failed", zap.String("job_id", id), zap.Error(err))
		}
	}()
	return id, nil
}

// Process runs req and waits for the final job snapshot. The job runs under
// the orchestrator's context: when ctx ends first Process stops waiting and
// returns ctx's error together with the latest snapshot, while the job keeps
// running to completion or error.
func (o *Orchestrator) Process(ctx context.Context, req Request) (jobs.Job, error) {
	id, err := o.create(req)
	if err != nil {
		return jobs.Job{}, err
	}

	done := make(chan error, 1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		done <- o.Run(o.ctx, id, req)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		runErr = ctx.Err()
	}
	job, err := o.registry.Get(id)
	if err != nil {
		return jobs.Job{}, err
	}
	return job, runErr
}

// FetchWithTempo loads a playlist and runs only the tempo stage over it,
// without registering a job.
func (o *Orchestrator) FetchWithTempo(ctx context.Context, ref string) ([]models.Track, string, error) {
	if v, ok := o.fetcher.(referenceValidator); ok {
		if err := v.ValidateReference(ref); err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	tracks, name, err := o.fetcher.FetchTracks(ctx, ref)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	tr := &sliceTracker{tracks: tracks}
	if err := o.pipeline.RunKind(ctx, models.KindTempo, tr); err != nil {
		return nil, "", err
	}
	return tr.tracks, name, nil
}

// sliceTracker records completions into a plain slice. Only one stage writes
// to it at a time.
type sliceTracker struct {
	tracks []models.Track
}

func (t *sliceTracker) Tracks() ([]models.Track, error) {
	return models.CloneTracks(t.tracks), nil
}

func (t *sliceTracker) Begin(models.Kind, int) error { return nil }

func (t *sliceTracker) Record(c enrich.Completion) error {
	if c.Index < 0 || c.Index >= len(t.tracks) {
		return fmt.Errorf("completion index %d out of range [0,%d)", c.Index, len(t.tracks))
	}
	t.tracks[c.Index].Merge(c.Kind, c.Track)
	return nil
}

// Wait blocks until every job started by Submit has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) create(req Request) (string, error) {
	req.PlaylistURL = strings.TrimSpace(req.PlaylistURL)
	if req.PlaylistURL == "" && len(req.Tracks) == 0 {
		return "", ErrEmptyRequest
	}
	topology, err := req.topology()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if v, ok := o.fetcher.(referenceValidator); ok && req.PlaylistURL != "" {
		if err := v.ValidateReference(req.PlaylistURL); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	opts := jobs.CreateOptions{Topology: topology, Message: "Starting"}
	if req.PlaylistURL == "" {
		opts.Tracks = req.Tracks
		opts.PlaylistName = req.PlaylistName
		if opts.PlaylistName == "" {
			opts.PlaylistName = DefaultPlaylistName
		}
	}
	id := o.newID()
	if _, err := o.registry.Create(id, opts); err != nil {
		return "", err
	}
	o.logger.Info("job created",
		zap.String("job_id", id),
		zap.String("topology", string(topology)),
		zap.Int("tracks", len(opts.Tracks)))
	return id, nil
}

// Run executes an already registered job. Any failure moves the job to the
// error stage before it is returned.
func (o *Orchestrator) Run(ctx context.Context, id string, req Request) error {
	if err := o.run(ctx, id, req); err != nil {
		if failErr := o.registry.Fail(id, err); failErr != nil {
			o.logger.Warn("could not record job failure", zap.String("job_id", id), zap.Error(failErr))
		}
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, id string, req Request) error {
	job, err := o.registry.Get(id)
	if err != nil {
		return err
	}

	if ref := strings.TrimSpace(req.PlaylistURL); ref != "" {
		if err := o.registry.Advance(id, jobs.StageFetching, "Fetching playlist"); err != nil {
			return err
		}
		tracks, name, err := o.fetcher.FetchTracks(ctx, ref)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFetch, err)
		}
		if err := o.registry.Load(id, tracks, name); err != nil {
			return err
		}
	}

	if err := o.pipeline.Run(ctx, job.Topology, o.registry.Tracker(id)); err != nil {
		return err
	}

	if err := o.registry.Advance(id, jobs.StageNormalizing, "Normalizing sentiment"); err != nil {
		return err
	}
	job, err = o.registry.Get(id)
	if err != nil {
		return err
	}
	tracks := enrich.NormalizeSentiment(job.Tracks)

	key := o.persist(ctx, id, job.PlaylistName, tracks)
	if err := o.registry.Complete(id, tracks, key); err != nil {
		return err
	}
	o.logger.Info("job complete",
		zap.String("job_id", id),
		zap.String("playlist", job.PlaylistName),
		zap.String("output_key", key))
	return nil
}

// persist saves the collection and returns its key. Failures are logged and
// yield an empty key; the job still completes.
func (o *Orchestrator) persist(ctx context.Context, id, name string, tracks []models.Track) string {
	if o.store == nil {
		return ""
	}
	if name == "" {
		name = DefaultPlaylistName
	}
	key, err := o.store.Save(ctx, name, tracks)
	if err != nil {
		o.logger.Error("failed to persist playlist",
			zap.String("job_id", id),
			zap.String("playlist", name),
			zap.Error(err))
		return ""
	}
	return key
}
