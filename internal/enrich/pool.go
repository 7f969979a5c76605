package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"songgraph/internal/models"
)

const (
	// MaxErrorLength caps the error text stored on a track.
	MaxErrorLength = 50

	// DefaultItemTimeout bounds a single enrichment call.
	DefaultItemTimeout = 10 * time.Second
)

// Pool fans a slice of tracks out to at most width goroutines and fans the
// results back in. It holds no state between runs.
type Pool struct {
	kind        models.Kind
	width       int
	itemTimeout time.Duration
	logger      *zap.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithItemTimeout sets the deadline applied to every Enrich call.
func WithItemTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.itemTimeout = d
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(l *zap.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool builds a pool for kind. A width below one is raised to one.
func NewPool(kind models.Kind, width int, opts ...PoolOption) *Pool {
	p := &Pool{
		kind:        kind,
		width:       max(width, 1),
		itemTimeout: DefaultItemTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Width returns the concurrency cap.
func (p *Pool) Width() int { return p.width }

type indexedTrack struct {
	index int
	track models.Track
}

// Run enriches every item and returns the results in input order. Items are
// processed concurrently, so completions arrive out of order; each one is
// reported on updates (when non-nil) as soon as it is collected. Run never
// fails: a failing or panicking item ends up with its kind's error field set
// and its siblings are unaffected. The caller owns updates and must keep
// draining it until Run returns.
func (p *Pool) Run(ctx context.Context, items []models.Track, e Enricher, updates chan<- Completion) []models.Track {
	total := len(items)
	results := make([]models.Track, total)
	if total == 0 {
		return results
	}

	workers, err := ants.NewPool(p.width)
	if err != nil {
		p.logger.Error("create worker pool, running inline", zap.String("kind", p.kind.String()), zap.Error(err))
	} else {
		defer workers.Release()
	}

	// Buffered to total so workers never block on a slow collector.
	done := make(chan indexedTrack, total)

	go func() {
		var wg sync.WaitGroup
		for i, item := range items {
			i, item := i, item.Clone()
			task := func() {
				defer wg.Done()
				done <- indexedTrack{index: i, track: p.apply(ctx, e, item)}
			}
			wg.Add(1)
			if workers == nil {
				task()
				continue
			}
			if err := workers.Submit(task); err != nil {
				item.SetError(p.kind, TruncateError(err.Error()))
				done <- indexedTrack{index: i, track: item}
				wg.Done()
			}
		}
		wg.Wait()
		close(done)
	}()

	completed := 0
	for r := range done {
		results[r.index] = r.track
		completed++
		if updates != nil {
			updates <- Completion{
				Kind:      p.kind,
				Index:     r.index,
				Completed: completed,
				Total:     total,
				Track:     r.track.Clone(),
			}
		}
	}

	p.logger.Debug("pool drained",
		zap.String("kind", p.kind.String()),
		zap.Int("items", total),
		zap.Int("width", p.width))
	return results
}

// apply runs one Enrich call behind a timeout and a recover, and guarantees
// that exactly one of the kind's value or error fields is set afterwards.
func (p *Pool) apply(ctx context.Context, e Enricher, item models.Track) (out models.Track) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("enricher panicked",
				zap.String("kind", p.kind.String()),
				zap.String("track_id", item.ID),
				zap.Any("panic", r))
			out = item
			out.SetError(p.kind, TruncateError(fmt.Sprintf("panic: %v", r)))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, p.itemTimeout)
	defer cancel()

	updated, err := e.Enrich(callCtx, item.Clone())
	if err != nil {
		p.logger.Debug("enrichment failed",
			zap.String("kind", p.kind.String()),
			zap.String("track_id", item.ID),
			zap.Error(err))
		item.SetError(p.kind, TruncateError(err.Error()))
		return item
	}

	// Only the kind's own fields are taken from the enricher's copy.
	item.Merge(p.kind, updated)
	if msg, failed := errorField(item, p.kind); failed {
		item.SetError(p.kind, TruncateError(msg))
	} else if !item.Settled(p.kind) {
		item.SetError(p.kind, "no result")
	}
	return item
}

func errorField(t models.Track, kind models.Kind) (string, bool) {
	var field *string
	switch kind {
	case models.KindTempo:
		field = t.TempoError
	case models.KindLyrics:
		field = t.LyricsError
	case models.KindSentiment:
		field = t.SentimentError
	}
	if field == nil {
		return "", false
	}
	return *field, true
}

// TruncateError shortens msg to MaxErrorLength runes.
func TruncateError(msg string) string {
	return truncateRunes(msg, MaxErrorLength)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
