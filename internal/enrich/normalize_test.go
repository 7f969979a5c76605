package enrich

import (
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"

	"songgraph/internal/models"
)

func scored(scores ...*float64) []models.Track {
	return lo.Map(scores, func(s *float64, i int) models.Track {
		return models.Track{ID: string(rune('a' + i)), SentimentScore: s}
	})
}

func TestNormalizeSentiment(t *testing.T) {
	t.Run("median maps to one half and order is preserved", func(t *testing.T) {
		// Arrange
		tracks := scored(lo.ToPtr(0.2), lo.ToPtr(0.5), lo.ToPtr(0.8))

		// Act
		out := NormalizeSentiment(tracks)

		// Assert
		td.Cmp(t, *out[1].SentimentScore, 0.5)
		td.CmpTrue(t, *out[0].SentimentScore < *out[1].SentimentScore)
		td.CmpTrue(t, *out[1].SentimentScore < *out[2].SentimentScore)
		td.Cmp(t, *out[0].SentimentScore, td.Between(Sigmoid(-1)-1e-9, Sigmoid(-1)+1e-9))
		td.Cmp(t, out[0].RawSentiment, td.Ptr(0.2))
		td.Cmp(t, out[2].NormalizedSentiment, td.Ptr(*out[2].SentimentScore))
	})

	t.Run("degenerate spread collapses to one half", func(t *testing.T) {
		out := NormalizeSentiment(scored(lo.ToPtr(0.6), lo.ToPtr(0.6), lo.ToPtr(0.6)))

		for _, tr := range out {
			td.Cmp(t, tr.SentimentScore, td.Ptr(0.5))
			td.Cmp(t, tr.RawSentiment, td.Ptr(0.6))
		}
	})

	t.Run("single score is left untouched", func(t *testing.T) {
		out := NormalizeSentiment(scored(lo.ToPtr(0.9), nil, nil))

		td.Cmp(t, out[0].SentimentScore, td.Ptr(0.9))
		td.CmpNil(t, out[0].RawSentiment)
		td.CmpNil(t, out[0].NormalizedSentiment)
	})

	t.Run("absent scores stay absent", func(t *testing.T) {
		out := NormalizeSentiment(scored(lo.ToPtr(0.9), lo.ToPtr(0.1), nil))

		td.CmpNil(t, out[2].SentimentScore)
		td.CmpNil(t, out[2].RawSentiment)
		td.CmpNil(t, out[2].NormalizedSentiment)
		// median 0.5, IQR 0.4 with interpolated quartiles: z = +-1.
		td.Cmp(t, *out[0].SentimentScore, td.Between(0.73, 0.74))
		td.Cmp(t, *out[1].SentimentScore, td.Between(0.26, 0.27))
		td.Cmp(t, *out[0].SentimentScore+*out[1].SentimentScore, td.Between(1-1e-9, 1+1e-9))
	})

	t.Run("monotonic in the raw score", func(t *testing.T) {
		raw := []float64{0.05, 0.9, 0.33, 0.33, 0.61, 0.12, 0.99}
		tracks := scored(lo.Map(raw, func(v float64, _ int) *float64 { return lo.ToPtr(v) })...)

		out := NormalizeSentiment(tracks)

		for i := range raw {
			for j := range raw {
				if raw[i] <= raw[j] {
					td.CmpTrue(t, *out[i].SentimentScore <= *out[j].SentimentScore,
						"raw %v <= %v", raw[i], raw[j])
				}
			}
		}
	})
}

func TestPercentile(t *testing.T) {
	sorted := []float64{0.2, 0.5, 0.8}
	td.Cmp(t, Percentile(sorted, 50), 0.5)
	td.Cmp(t, Percentile(sorted, 25), td.Between(0.35-1e-9, 0.35+1e-9))
	td.Cmp(t, Percentile(sorted, 75), td.Between(0.65-1e-9, 0.65+1e-9))
	td.Cmp(t, Percentile([]float64{4}, 75), 4.0)
	td.Cmp(t, Percentile([]float64{0.1, 0.9}, 75)-Percentile([]float64{0.1, 0.9}, 25), td.Between(0.4-1e-9, 0.4+1e-9))
}
