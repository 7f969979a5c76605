package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"songgraph/internal/models"
)

// Topology selects how the enrichment stages are composed.
type Topology string

const (
	// Sequential runs tempo, lyrics and sentiment one after another; each
	// stage drains completely before the next one starts.
	Sequential Topology = "sequential"
	// Parallel runs the tempo stage concurrently with the lyrics-then-
	// sentiment branch and joins both before returning.
	Parallel Topology = "parallel"
)

// ParseTopology validates a topology name. The empty string selects
// Sequential.
func ParseTopology(s string) (Topology, error) {
	switch Topology(s) {
	case "", Sequential:
		return Sequential, nil
	case Parallel:
		return Parallel, nil
	}
	return "", fmt.Errorf("unknown topology %q", s)
}

// Tracker is the pipeline's view of the shared collection. Tracks returns a
// snapshot of the current collection, Begin announces that a stage starts,
// and Record merges one completed item back into the collection. Record must
// merge only the fields owned by the completion's kind.
type Tracker interface {
	Tracks() ([]models.Track, error)
	Begin(kind models.Kind, total int) error
	Record(c Completion) error
}

// Pipeline composes the tempo, lyrics and sentiment stages.
type Pipeline struct {
	tempo     *Stage
	lyrics    *Stage
	sentiment *Stage
	logger    *zap.Logger
}

// NewPipeline constructs a Pipeline from its three stages.
func NewPipeline(tempo, lyrics, sentiment *Stage, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{tempo: tempo, lyrics: lyrics, sentiment: sentiment, logger: logger}
}

// Run drives the stages in the given topology. It returns once every stage
// has drained; the caller runs the normalization pass afterwards. Item
// failures never surface here: an error means the tracker rejected an update
// or the context was cancelled.
func (p *Pipeline) Run(ctx context.Context, topology Topology, tr Tracker) error {
	switch topology {
	case Parallel:
		return p.runParallel(ctx, tr)
	case Sequential, "":
		return p.runSequential(ctx, tr)
	}
	return fmt.Errorf("unknown topology %q", topology)
}

// RunKind runs only the stage of the given kind.
func (p *Pipeline) RunKind(ctx context.Context, kind models.Kind, tr Tracker) error {
	for _, stage := range []*Stage{p.tempo, p.lyrics, p.sentiment} {
		if stage.Kind() == kind {
			return p.runStage(ctx, stage, tr)
		}
	}
	return fmt.Errorf("no stage for kind %q", kind)
}

func (p *Pipeline) runSequential(ctx context.Context, tr Tracker) error {
	for _, stage := range []*Stage{p.tempo, p.lyrics, p.sentiment} {
		if err := p.runStage(ctx, stage, tr); err != nil {
			return err
		}
	}
	return nil
}

// runParallel runs two branches over the same collection. The branches own
// disjoint fields, so their merges never overwrite one another.
func (p *Pipeline) runParallel(ctx context.Context, tr Tracker) error {
	var g errgroup.Group
	g.Go(func() error {
		return p.runStage(ctx, p.tempo, tr)
	})
	g.Go(func() error {
		if err := p.runStage(ctx, p.lyrics, tr); err != nil {
			return err
		}
		return p.runStage(ctx, p.sentiment, tr)
	})
	return g.Wait()
}

// runStage takes a snapshot, runs the stage's pool over it and merges every
// completion into the tracker as it arrives. The stage barrier is the return
// of Pool.Run plus the drain of the updates channel.
func (p *Pipeline) runStage(ctx context.Context, stage *Stage, tr Tracker) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kind := stage.Kind()
	items, err := tr.Tracks()
	if err != nil {
		return fmt.Errorf("%s stage snapshot: %w", kind, err)
	}
	if err := tr.Begin(kind, len(items)); err != nil {
		return fmt.Errorf("%s stage begin: %w", kind, err)
	}
	p.logger.Info("stage started",
		zap.String("kind", kind.String()),
		zap.Int("tracks", len(items)),
		zap.Int("workers", stage.pool.Width()))

	updates := make(chan Completion)
	recorded := make(chan error, 1)
	go func() {
		var first error
		for c := range updates {
			if err := tr.Record(c); err != nil && first == nil {
				first = err
				p.logger.Warn("record completion failed",
					zap.String("kind", kind.String()),
					zap.Int("index", c.Index),
					zap.Error(err))
			}
		}
		recorded <- first
	}()

	stage.pool.Run(ctx, items, stage.enricher, updates)
	close(updates)
	if err := <-recorded; err != nil {
		return fmt.Errorf("%s stage record: %w", kind, err)
	}

	p.logger.Info("stage finished", zap.String("kind", kind.String()))
	return nil
}
