package enrich

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"

	"songgraph/internal/models"
)

type memTracker struct {
	mu        sync.Mutex
	tracks    []models.Track
	begins    []models.Kind
	completed map[models.Kind]int
	failAt    models.Kind
}

func newMemTracker(tracks []models.Track) *memTracker {
	return &memTracker{tracks: tracks, completed: map[models.Kind]int{}}
}

func (m *memTracker) Tracks() ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.CloneTracks(m.tracks), nil
}

func (m *memTracker) Begin(kind models.Kind, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begins = append(m.begins, kind)
	return nil
}

func (m *memTracker) Record(c Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Kind == m.failAt {
		return errors.New("job gone")
	}
	m.tracks[c.Index].Merge(c.Kind, c.Track)
	m.completed[c.Kind] = c.Completed
	return nil
}

func lyricsByID() Enricher {
	return EnricherFunc{K: models.KindLyrics, Fn: func(_ context.Context, tr models.Track) (models.Track, error) {
		text := "words of " + tr.ID
		tr.Lyrics = &text
		tr.LyricsSource = models.LyricsSourceFound
		return tr, nil
	}}
}

func sentimentFromLyrics() Enricher {
	return EnricherFunc{K: models.KindSentiment, Fn: func(_ context.Context, tr models.Track) (models.Track, error) {
		if tr.Lyrics == nil {
			return tr, errors.New(noLyrics)
		}
		score := float64(len(*tr.Lyrics)) / 100
		tr.SentimentScore = &score
		return tr, nil
	}}
}

func slowTempo(d time.Duration) Enricher {
	inner := tempoFromIndex()
	return EnricherFunc{K: models.KindTempo, Fn: func(ctx context.Context, tr models.Track) (models.Track, error) {
		time.Sleep(d)
		return inner.Enrich(ctx, tr)
	}}
}

func newTestPipeline(tempo Enricher) *Pipeline {
	return NewPipeline(
		NewStage(tempo, 2, time.Second, nil),
		NewStage(lyricsByID(), 3, time.Second, nil),
		NewStage(sentimentFromLyrics(), 2, time.Second, nil),
		nil,
	)
}

func TestParseTopology(t *testing.T) {
	cases := []struct {
		in       string
		expected Topology
		err      bool
	}{
		{"", Sequential, false},
		{"sequential", Sequential, false},
		{"parallel", Parallel, false},
		{"diagonal", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTopology(tc.in)
			if tc.err {
				td.CmpError(t, err)
				return
			}
			td.CmpNoError(t, err)
			td.Cmp(t, got, tc.expected)
		})
	}
}

func TestPipeline_Sequential(t *testing.T) {
	// Arrange
	tr := newMemTracker(makeTracks(6))
	p := newTestPipeline(tempoFromIndex())

	// Act
	err := p.Run(context.Background(), Sequential, tr)

	// Assert
	td.Require(t).CmpNoError(err)
	td.Cmp(t, tr.begins, models.Kinds)
	for i, track := range tr.tracks {
		td.Cmp(t, track.Tempo, td.Ptr(float64(100+i)))
		td.Cmp(t, track.Lyrics, td.Ptr("words of "+track.ID))
		td.CmpNotNil(t, track.SentimentScore, "sentiment saw the lyrics of %s", track.ID)
		td.CmpNil(t, track.SentimentError)
	}
	td.Cmp(t, tr.completed, map[models.Kind]int{
		models.KindTempo:     6,
		models.KindLyrics:    6,
		models.KindSentiment: 6,
	})
}

func TestPipeline_Parallel(t *testing.T) {
	// Arrange: tempo is slow, so its merges interleave with the lyrics and
	// sentiment merges on the same tracks.
	tr := newMemTracker(makeTracks(8))
	p := newTestPipeline(slowTempo(5 * time.Millisecond))

	// Act
	err := p.Run(context.Background(), Parallel, tr)

	// Assert
	td.Require(t).CmpNoError(err)
	td.CmpLen(t, tr.begins, 3)
	td.CmpTrue(t, slices.Index(tr.begins, models.KindLyrics) < slices.Index(tr.begins, models.KindSentiment))
	for i, track := range tr.tracks {
		td.Cmp(t, track.Tempo, td.Ptr(float64(100+i)), "tempo kept on %s", track.ID)
		td.CmpNotNil(t, track.Lyrics, "lyrics kept on %s", track.ID)
		td.CmpNotNil(t, track.SentimentScore, "sentiment kept on %s", track.ID)
	}
}

func TestPipeline_Errors(t *testing.T) {
	t.Run("cancelled before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tr := newMemTracker(makeTracks(2))

		err := newTestPipeline(tempoFromIndex()).Run(ctx, Sequential, tr)

		td.CmpErrorIs(t, err, context.Canceled)
		td.CmpLen(t, tr.begins, 0)
	})

	t.Run("record failure stops the sequence", func(t *testing.T) {
		tr := newMemTracker(makeTracks(3))
		tr.failAt = models.KindLyrics

		err := newTestPipeline(tempoFromIndex()).Run(context.Background(), Sequential, tr)

		td.CmpString(t, err, "lyrics stage record: job gone")
		td.Cmp(t, tr.begins, []models.Kind{models.KindTempo, models.KindLyrics})
	})

	t.Run("unknown topology", func(t *testing.T) {
		err := newTestPipeline(tempoFromIndex()).Run(context.Background(), "diagonal", newMemTracker(nil))
		td.CmpString(t, err, `unknown topology "diagonal"`)
	})
}

func TestPipeline_RunKind(t *testing.T) {
	tr := newMemTracker(makeTracks(4))

	err := newTestPipeline(tempoFromIndex()).RunKind(context.Background(), models.KindTempo, tr)

	td.Require(t).CmpNoError(err)
	td.Cmp(t, tr.begins, []models.Kind{models.KindTempo})
	for i, track := range tr.tracks {
		td.Cmp(t, track.Tempo, td.Ptr(float64(100+i)))
		td.CmpNil(t, track.Lyrics)
	}

	err = newTestPipeline(tempoFromIndex()).RunKind(context.Background(), "mood", tr)
	td.CmpString(t, err, `no stage for kind "mood"`)
}
