package enrich

import (
	"context"
	"errors"

	"songgraph/internal/models"
)

// ErrInvalidReference is returned by a PlaylistFetcher for a playlist
// reference it cannot parse.
var ErrInvalidReference = errors.New("invalid playlist reference")

// PlaylistFetcher loads the ordered track list and the display name of a
// remote playlist.
type PlaylistFetcher interface {
	FetchTracks(ctx context.Context, ref string) ([]models.Track, string, error)
}

// AudioFetcher downloads the audio behind a preview locator.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, url string) ([]byte, error)
}

// TempoEstimator turns raw audio into beats per minute.
type TempoEstimator interface {
	EstimateTempo(ctx context.Context, audio []byte) (float64, error)
}

// LyricsFetcher looks up lyric text. found is false when the song is unknown.
type LyricsFetcher interface {
	FetchLyrics(ctx context.Context, title, artist string) (lyrics string, found bool, err error)
}

// SentimentClassifier labels one piece of text as negative, neutral or
// positive with a confidence in [0,1].
type SentimentClassifier interface {
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
}
