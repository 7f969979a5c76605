package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"

	"songgraph/internal/models"
)

type fakeAudio map[string][]byte

func (f fakeAudio) FetchAudio(_ context.Context, url string) ([]byte, error) {
	b, ok := f[url]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return b, nil
}

type lenEstimator struct{}

func (lenEstimator) EstimateTempo(_ context.Context, audio []byte) (float64, error) {
	if len(audio) == 0 {
		return 0, errors.New("silence")
	}
	return float64(len(audio)), nil
}

type fakeLyrics map[string]string

func (f fakeLyrics) FetchLyrics(_ context.Context, title, artist string) (string, bool, error) {
	if title == "boom" {
		return "", false, errors.New("search failed")
	}
	text, ok := f[artist+"/"+title]
	return text, ok, nil
}

func TestTempoEnricher(t *testing.T) {
	e := NewTempoEnricher(fakeAudio{"ok": make([]byte, 120), "empty": {}}, lenEstimator{})

	t.Run("estimates from preview audio", func(t *testing.T) {
		out, err := e.Enrich(context.Background(), models.Track{PreviewURL: "ok"})
		td.CmpNoError(t, err)
		td.Cmp(t, out.Tempo, td.Ptr(120.0))
		td.CmpNil(t, out.TempoError)
	})

	t.Run("no preview", func(t *testing.T) {
		_, err := e.Enrich(context.Background(), models.Track{})
		td.CmpErrorIs(t, err, ErrNoPreview)
	})

	t.Run("download failure", func(t *testing.T) {
		_, err := e.Enrich(context.Background(), models.Track{PreviewURL: "missing"})
		td.CmpString(t, err, "download preview: 404 Not Found")
	})

	t.Run("estimation failure", func(t *testing.T) {
		_, err := e.Enrich(context.Background(), models.Track{PreviewURL: "empty"})
		td.CmpString(t, err, "estimate tempo: silence")
	})
}

func TestLyricsEnricher(t *testing.T) {
	e := NewLyricsEnricher(fakeLyrics{
		"Band/Song":  "  first line\nsecond line 12Embed",
		"Band/Blank": "",
	}, 0)

	t.Run("found", func(t *testing.T) {
		out, err := e.Enrich(context.Background(), models.Track{Title: "Song", Artists: []string{"Band", "Guest"}})
		td.CmpNoError(t, err)
		td.Cmp(t, out.Lyrics, td.Ptr("first line\nsecond line"))
		td.Cmp(t, out.LyricsSource, models.LyricsSourceFound)
	})

	t.Run("not found", func(t *testing.T) {
		out, err := e.Enrich(context.Background(), models.Track{Title: "Other", Artists: []string{"Band"}})
		td.CmpNoError(t, err)
		td.CmpNil(t, out.Lyrics)
		td.Cmp(t, out.LyricsSource, models.LyricsSourceNone)
		td.Cmp(t, out.LyricsError, td.Ptr(lyricsNotFound))
	})

	t.Run("empty text counts as not found", func(t *testing.T) {
		out, err := e.Enrich(context.Background(), models.Track{Title: "Blank", Artists: []string{"Band"}})
		td.CmpNoError(t, err)
		td.Cmp(t, out.LyricsError, td.Ptr(lyricsNotFound))
	})

	t.Run("lookup error surfaces", func(t *testing.T) {
		_, err := e.Enrich(context.Background(), models.Track{Title: "boom"})
		td.CmpString(t, err, "search failed")
	})

	t.Run("existing lyrics are kept", func(t *testing.T) {
		out, err := e.Enrich(context.Background(), models.Track{Title: "boom", Lyrics: lo.ToPtr("already")})
		td.CmpNoError(t, err)
		td.Cmp(t, out.Lyrics, td.Ptr("already"))
	})

	t.Run("throttle stops at context cancellation", func(t *testing.T) {
		slow := NewLyricsEnricher(fakeLyrics{}, time.Hour)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := slow.Enrich(ctx, models.Track{Title: "x"})

		td.CmpNoError(t, err)
		td.CmpTrue(t, time.Since(start) < time.Second)
	})
}

func TestCleanLyrics(t *testing.T) {
	td.Cmp(t, CleanLyrics("  verse\nchorus 37Embed  "), "verse\nchorus")
	td.Cmp(t, CleanLyrics("verse\nchorusEmbed"), "verse\nchorus")
	td.Cmp(t, CleanLyrics("Embedded in my heart\nsecond line"), "Embedded in my heart\nsecond line")
	td.Cmp(t, CleanLyrics("you Embed the night\nfade out"), "you Embed the night\nfade out")
	td.Cmp(t, CleanLyrics(""), "")
}
