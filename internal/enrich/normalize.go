package enrich

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"songgraph/internal/models"
)

// degenerateIQR is the spread below which scores are considered identical.
const degenerateIQR = 1e-6

// NormalizeSentiment rescales sentiment scores relative to the playlist: the
// median maps to 0.5 and the interquartile range sets the scale, squashed
// through a logistic curve into (0,1). Raw scores are kept in RawSentiment.
// Fewer than two scores leave the playlist untouched; tracks without a score
// are never modified. The input slice is updated in place and returned.
func NormalizeSentiment(tracks []models.Track) []models.Track {
	scores := lo.FilterMap(tracks, func(t models.Track, _ int) (float64, bool) {
		if t.SentimentScore == nil {
			return 0, false
		}
		return *t.SentimentScore, true
	})
	if len(scores) < 2 {
		return tracks
	}

	slices.Sort(scores)
	median := Percentile(scores, 50)
	iqr := Percentile(scores, 75) - Percentile(scores, 25)

	for i := range tracks {
		if tracks[i].SentimentScore == nil {
			continue
		}
		raw := *tracks[i].SentimentScore
		normalized := 0.5
		if iqr >= degenerateIQR {
			normalized = Sigmoid((raw - median) / iqr)
		}
		tracks[i].RawSentiment = &raw
		tracks[i].NormalizedSentiment = lo.ToPtr(normalized)
		tracks[i].SentimentScore = lo.ToPtr(normalized)
	}
	return tracks
}

// Percentile returns the p-th percentile of sorted values using linear
// interpolation between the closest ranks, the same convention as numpy's
// default percentile. For scores [0.1, 0.9] that gives an IQR of 0.4 and
// normalized values of sigmoid(±1).
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// Sigmoid is the logistic function 1/(1+e^-z).
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
