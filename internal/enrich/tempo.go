package enrich

import (
	"context"
	"errors"
	"fmt"

	"songgraph/internal/models"
)

// ErrNoPreview is reported for tracks without an audio locator.
var ErrNoPreview = errors.New("no preview URL available")

// TempoEnricher downloads a track's preview clip and estimates its tempo.
type TempoEnricher struct {
	audio     AudioFetcher
	estimator TempoEstimator
}

func NewTempoEnricher(audio AudioFetcher, estimator TempoEstimator) *TempoEnricher {
	return &TempoEnricher{audio: audio, estimator: estimator}
}

func (e *TempoEnricher) Kind() models.Kind { return models.KindTempo }

func (e *TempoEnricher) Enrich(ctx context.Context, track models.Track) (models.Track, error) {
	if track.PreviewURL == "" {
		return track, ErrNoPreview
	}
	audio, err := e.audio.FetchAudio(ctx, track.PreviewURL)
	if err != nil {
		return track, fmt.Errorf("download preview: %w", err)
	}
	bpm, err := e.estimator.EstimateTempo(ctx, audio)
	if err != nil {
		return track, fmt.Errorf("estimate tempo: %w", err)
	}
	track.Tempo = &bpm
	track.TempoError = nil
	return track, nil
}
