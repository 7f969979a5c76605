// Package enrich runs per-track enrichments (tempo, lyrics, sentiment) over a
// playlist. Each enrichment kind gets its own bounded worker pool, and pools
// are composed into one of two topologies: a sequential chain, or two parallel
// branches joined before the playlist-wide normalization pass.
package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"songgraph/internal/models"
)

// Enricher is a single per-track transform. Implementations receive a private
// copy of the track and return the updated copy; they only need to fill the
// fields owned by their Kind. A returned error is converted by the pool into
// the kind's error field, so implementations never have to do that
// themselves. The context carries the per-call timeout.
type Enricher interface {
	Kind() models.Kind
	Enrich(ctx context.Context, track models.Track) (models.Track, error)
}

// EnricherFunc adapts a plain function to the Enricher interface.
type EnricherFunc struct {
	K  models.Kind
	Fn func(ctx context.Context, track models.Track) (models.Track, error)
}

func (f EnricherFunc) Kind() models.Kind { return f.K }

func (f EnricherFunc) Enrich(ctx context.Context, track models.Track) (models.Track, error) {
	return f.Fn(ctx, track)
}

// Completion is emitted once per finished item, in completion order. Index is
// the item's position in the input so the receiver can merge it back into the
// shared collection.
type Completion struct {
	Kind      models.Kind
	Index     int
	Completed int
	Total     int
	Track     models.Track
}

// Stage pairs an Enricher with the pool that runs it.
type Stage struct {
	enricher Enricher
	pool     *Pool
}

// NewStage constructs a Stage whose pool runs at most width enrichments at a
// time.
func NewStage(e Enricher, width int, itemTimeout time.Duration, logger *zap.Logger) *Stage {
	return &Stage{
		enricher: e,
		pool:     NewPool(e.Kind(), width, WithItemTimeout(itemTimeout), WithLogger(logger)),
	}
}

// Kind returns the enrichment kind handled by the stage.
func (s *Stage) Kind() models.Kind { return s.enricher.Kind() }
