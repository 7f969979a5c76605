package enrich

import (
	"context"
	"regexp"
	"strings"
	"time"

	"songgraph/internal/models"
)

const lyricsNotFound = "lyrics not found"

// LyricsEnricher fetches lyric text for a track's title and primary artist.
type LyricsEnricher struct {
	fetcher  LyricsFetcher
	throttle time.Duration
}

// NewLyricsEnricher builds a LyricsEnricher that waits throttle after every
// lookup to stay under the provider's rate limit.
func NewLyricsEnricher(fetcher LyricsFetcher, throttle time.Duration) *LyricsEnricher {
	return &LyricsEnricher{fetcher: fetcher, throttle: throttle}
}

func (e *LyricsEnricher) Kind() models.Kind { return models.KindLyrics }

func (e *LyricsEnricher) Enrich(ctx context.Context, track models.Track) (models.Track, error) {
	if track.Lyrics != nil && *track.Lyrics != "" {
		return track, nil
	}
	defer e.wait(ctx)

	text, found, err := e.fetcher.FetchLyrics(ctx, track.Title, track.PrimaryArtist())
	if err != nil {
		return track, err
	}
	text = CleanLyrics(text)
	if !found || text == "" {
		track.SetError(models.KindLyrics, lyricsNotFound)
		return track, nil
	}
	track.Lyrics = &text
	track.LyricsSource = models.LyricsSourceFound
	track.LyricsError = nil
	return track, nil
}

func (e *LyricsEnricher) wait(ctx context.Context) {
	if e.throttle <= 0 {
		return
	}
	timer := time.NewTimer(e.throttle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

var embedFooter = regexp.MustCompile(`\d*Embed\s*$`)

// CleanLyrics trims whitespace and drops a trailing "123Embed" footer as
// scraped from lyric sites. "Embed" inside the lyric body is kept.
func CleanLyrics(text string) string {
	text = strings.TrimSpace(text)
	return strings.TrimSpace(embedFooter.ReplaceAllString(text, ""))
}
