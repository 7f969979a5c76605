package models

import (
	"fmt"
	"slices"
)

// LyricsSource records whether a lyric lookup produced text.
type LyricsSource string

const (
	LyricsSourceNone  LyricsSource = "none"
	LyricsSourceFound LyricsSource = "found"
)

// Track is one position in a playlist. Optional enrichment results are
// pointers so that "absent" can be told apart from a zero value.
type Track struct {
	ID               string   `json:"track_id"`
	Title            string   `json:"title"`
	Artists          []string `json:"artists"`
	Album            string   `json:"album,omitempty"`
	AlbumArtURL      string   `json:"album_art_url,omitempty"`
	AlbumReleaseDate string   `json:"album_release_date,omitempty"`
	DurationMS       int      `json:"duration_ms,omitempty"`
	Popularity       int      `json:"popularity,omitempty"`
	TrackURL         string   `json:"track_url,omitempty"`
	PreviewURL       string   `json:"preview_url,omitempty"`

	Tempo      *float64 `json:"tempo,omitempty"`
	TempoError *string  `json:"tempo_error,omitempty"`

	Lyrics       *string      `json:"lyrics,omitempty"`
	LyricsSource LyricsSource `json:"lyrics_source,omitempty"`
	LyricsError  *string      `json:"lyrics_error,omitempty"`

	SentimentScore  *float64  `json:"sentiment_score,omitempty"`
	SentimentChunks int       `json:"sentiment_chunks"`
	StanzaScores    []float64 `json:"stanza_scores,omitempty"`
	SentimentError  *string   `json:"sentiment_error,omitempty"`

	RawSentiment        *float64 `json:"raw_sentiment,omitempty"`
	NormalizedSentiment *float64 `json:"normalized_sentiment,omitempty"`
}

// PrimaryArtist returns the first credited artist or an empty string.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Clone returns a deep copy so that a snapshot never aliases the pointers of
// the collection it was taken from.
func (t Track) Clone() Track {
	c := t
	c.Artists = slices.Clone(t.Artists)
	c.StanzaScores = slices.Clone(t.StanzaScores)
	c.Tempo = clonePtr(t.Tempo)
	c.TempoError = clonePtr(t.TempoError)
	c.Lyrics = clonePtr(t.Lyrics)
	c.LyricsError = clonePtr(t.LyricsError)
	c.SentimentScore = clonePtr(t.SentimentScore)
	c.SentimentError = clonePtr(t.SentimentError)
	c.RawSentiment = clonePtr(t.RawSentiment)
	c.NormalizedSentiment = clonePtr(t.NormalizedSentiment)
	return c
}

// Merge copies the fields owned by kind from src into t. Fields owned by other
// kinds are left alone, which is what lets two branches write the same track
// without losing each other's results.
func (t *Track) Merge(kind Kind, src Track) {
	switch kind {
	case KindTempo:
		t.Tempo = clonePtr(src.Tempo)
		t.TempoError = clonePtr(src.TempoError)
	case KindLyrics:
		t.Lyrics = clonePtr(src.Lyrics)
		t.LyricsSource = src.LyricsSource
		t.LyricsError = clonePtr(src.LyricsError)
	case KindSentiment:
		t.SentimentScore = clonePtr(src.SentimentScore)
		t.SentimentChunks = src.SentimentChunks
		t.StanzaScores = slices.Clone(src.StanzaScores)
		t.SentimentError = clonePtr(src.SentimentError)
	}
}

// SetError records msg as the failure of kind and clears that kind's value.
func (t *Track) SetError(kind Kind, msg string) {
	switch kind {
	case KindTempo:
		t.Tempo = nil
		t.TempoError = &msg
	case KindLyrics:
		t.Lyrics = nil
		t.LyricsSource = LyricsSourceNone
		t.LyricsError = &msg
	case KindSentiment:
		t.SentimentScore = nil
		t.SentimentError = &msg
	}
}

// Settled reports whether kind has reached a terminal per-item state, i.e.
// either a value or an error is present.
func (t Track) Settled(kind Kind) bool {
	switch kind {
	case KindTempo:
		return t.Tempo != nil || t.TempoError != nil
	case KindLyrics:
		return t.Lyrics != nil || t.LyricsError != nil
	case KindSentiment:
		return t.SentimentScore != nil || t.SentimentError != nil
	}
	return false
}

// CloneTracks deep-copies a collection.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}

func (t Track) String() string {
	return fmt.Sprintf("%s - %s", t.PrimaryArtist(), t.Title)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
