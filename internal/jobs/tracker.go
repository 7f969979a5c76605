package jobs

import (
	"songgraph/internal/enrich"
	"songgraph/internal/models"
)

// Tracker binds a job id to the registry so a pipeline can drive it.
func (r *Registry) Tracker(id string) enrich.Tracker {
	return &jobTracker{registry: r, id: id}
}

type jobTracker struct {
	registry *Registry
	id       string
}

func (t *jobTracker) Tracks() ([]models.Track, error) {
	job, err := t.registry.Get(t.id)
	if err != nil {
		return nil, err
	}
	return job.Tracks, nil
}

func (t *jobTracker) Begin(kind models.Kind, total int) error {
	return t.registry.Begin(t.id, kind, total)
}

func (t *jobTracker) Record(c enrich.Completion) error {
	return t.registry.Apply(t.id, c)
}
