package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"songgraph/internal/enrich"
	"songgraph/internal/models"
)

var (
	// ErrNotFound is returned for an unknown or evicted job id.
	ErrNotFound = errors.New("job not found")
	// ErrExists is returned when creating a job under an id already in use.
	ErrExists = errors.New("job already exists")
	// ErrInvalidTransition is returned when a change would move a job
	// backwards or out of a terminal stage.
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// DefaultTTL is how long a finished job stays readable.
const DefaultTTL = time.Hour

// CreateOptions seeds a new job.
type CreateOptions struct {
	Tracks       []models.Track
	PlaylistName string
	Topology     enrich.Topology
	Message      string
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets how long terminal jobs are kept before Sweep evicts them.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry holds every known job keyed by id. All mutation goes through a
// single mutex and every read returns a deep copy.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
	now  func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs: make(map[string]*Job),
		ttl:  DefaultTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a job in the initializing stage.
func (r *Registry) Create(id string, opts CreateOptions) (Job, error) {
	if id == "" {
		return Job{}, errors.New("job id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return Job{}, fmt.Errorf("%w: %s", ErrExists, id)
	}
	topology := opts.Topology
	if topology == "" {
		topology = enrich.Sequential
	}
	now := r.now()
	job := &Job{
		ID:           id,
		Stage:        StageInitializing,
		Total:        len(opts.Tracks),
		Tracks:       models.CloneTracks(opts.Tracks),
		Message:      opts.Message,
		PlaylistName: opts.PlaylistName,
		Topology:     topology,
		Completed:    make(map[models.Kind]int),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.jobs[id] = job
	return job.clone(), nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job.clone(), nil
}

// List returns snapshots of all jobs, oldest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Mutate applies fn to a working copy of the job and commits it only when fn
// succeeds and the resulting stage is reachable from the current one. A job
// that reaches a terminal stage gets its FinishedAt stamped.
func (r *Registry) Mutate(id string, fn func(*Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Terminal() {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, id, job.Stage)
	}

	next := job.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if !canTransition(job.Stage, next.Stage) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Stage, next.Stage)
	}
	next.ID = job.ID
	next.CreatedAt = job.CreatedAt
	next.UpdatedAt = r.now()
	if next.Terminal() && next.FinishedAt == nil {
		finished := next.UpdatedAt
		next.FinishedAt = &finished
	}
	*job = next
	return nil
}

// Advance moves the job to stage with a human readable message.
func (r *Registry) Advance(id string, stage Stage, message string) error {
	return r.Mutate(id, func(j *Job) error {
		if j.Stage != stage {
			j.Current = 0
		}
		j.Stage = stage
		j.Message = message
		return nil
	})
}

// Load installs the fetched collection on a job.
func (r *Registry) Load(id string, tracks []models.Track, playlistName string) error {
	return r.Mutate(id, func(j *Job) error {
		j.Tracks = models.CloneTracks(tracks)
		j.Total = len(tracks)
		if playlistName != "" {
			j.PlaylistName = playlistName
		}
		j.Message = fmt.Sprintf("Loaded %d tracks", len(tracks))
		return nil
	})
}

// Begin marks the start of kind's stage over total tracks.
func (r *Registry) Begin(id string, kind models.Kind, total int) error {
	return r.Mutate(id, func(j *Job) error {
		j.Stage = StageFor(kind)
		j.Current = j.Completed[kind]
		j.Total = total
		j.Message = fmt.Sprintf("%s: %d/%d", stageLabel(kind), j.Current, total)
		return nil
	})
}

// Apply merges one completed item into the job. Only the fields owned by the
// completion's kind are written.
func (r *Registry) Apply(id string, c enrich.Completion) error {
	return r.Mutate(id, func(j *Job) error {
		if c.Index < 0 || c.Index >= len(j.Tracks) {
			return fmt.Errorf("completion index %d out of range [0,%d)", c.Index, len(j.Tracks))
		}
		j.Tracks[c.Index].Merge(c.Kind, c.Track)
		if j.Completed == nil {
			j.Completed = make(map[models.Kind]int)
		}
		j.Completed[c.Kind] = max(j.Completed[c.Kind], c.Completed)
		j.Stage = StageFor(c.Kind)
		j.Current = j.Completed[c.Kind]
		j.Total = c.Total
		j.Message = fmt.Sprintf("%s: %d/%d", stageLabel(c.Kind), j.Current, c.Total)
		return nil
	})
}

// Fail moves the job to the error stage.
func (r *Registry) Fail(id string, cause error) error {
	return r.Mutate(id, func(j *Job) error {
		j.Stage = StageError
		j.Error = cause.Error()
		j.Message = "Failed"
		return nil
	})
}

// Complete installs the final collection and marks the job complete.
func (r *Registry) Complete(id string, tracks []models.Track, outputKey string) error {
	return r.Mutate(id, func(j *Job) error {
		j.Tracks = models.CloneTracks(tracks)
		j.Stage = StageComplete
		j.Current = len(tracks)
		j.Total = len(tracks)
		j.OutputKey = outputKey
		j.Message = "Complete"
		return nil
	})
}

// Evict removes a job and reports whether it existed.
func (r *Registry) Evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[id]
	delete(r.jobs, id)
	return ok
}

// Sweep evicts terminal jobs that finished at least one TTL before now and
// returns how many were removed. Running jobs are never evicted.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for id, job := range r.jobs {
		if job.FinishedAt == nil {
			continue
		}
		if !now.Before(job.FinishedAt.Add(r.ttl)) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

func stageLabel(kind models.Kind) string {
	switch kind {
	case models.KindTempo:
		return "Analyzing tempo"
	case models.KindLyrics:
		return "Fetching lyrics"
	case models.KindSentiment:
		return "Analyzing sentiment"
	}
	return string(kind)
}
