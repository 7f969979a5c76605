package enrich

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"songgraph/internal/models"
)

const (
	minStanzaWords = 10
	maxStanzaChars = 2000

	noLyrics      = "no lyrics available"
	noStanzaScore = "no stanza could be scored"
)

var (
	sectionHeader = regexp.MustCompile(`\[.*?\]`)
	repeatMarker  = regexp.MustCompile(`\(x\d+\)`)
	repeatWord    = regexp.MustCompile(`(?i)\(repeat\)`)
	manyNewlines  = regexp.MustCompile(`\n{3,}`)
	manySpaces    = regexp.MustCompile(` +`)
	stanzaBreak   = regexp.MustCompile(`\n\n+`)
)

// SentimentEnricher scores lyrics stanza by stanza and averages the stanza
// valences into one score in [0,1].
type SentimentEnricher struct {
	classifier SentimentClassifier
}

func NewSentimentEnricher(classifier SentimentClassifier) *SentimentEnricher {
	return &SentimentEnricher{classifier: classifier}
}

func (e *SentimentEnricher) Kind() models.Kind { return models.KindSentiment }

func (e *SentimentEnricher) Enrich(ctx context.Context, track models.Track) (models.Track, error) {
	if track.SentimentScore != nil {
		return track, nil
	}
	track.StanzaScores = nil
	track.SentimentChunks = 0

	if track.Lyrics == nil {
		return track, errors.New(noLyrics)
	}
	text := PreprocessLyrics(*track.Lyrics)
	if text == "" {
		return track, errors.New(noLyrics)
	}

	stanzas := SplitStanzas(text)
	track.SentimentChunks = len(stanzas)

	scores := make([]float64, 0, len(stanzas))
	for _, stanza := range stanzas {
		if err := ctx.Err(); err != nil {
			return track, err
		}
		stanza = truncateRunes(stanza, maxStanzaChars)
		label, confidence, err := e.classifier.Classify(ctx, stanza)
		if err != nil {
			continue
		}
		scores = append(scores, Valence(label, confidence))
	}
	if len(scores) == 0 {
		return track, errors.New(noStanzaScore)
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	score := sum / float64(len(scores))
	track.SentimentScore = &score
	track.StanzaScores = scores
	track.SentimentError = nil
	return track, nil
}

// PreprocessLyrics lowercases lyrics and strips section headers and repeat
// markers while keeping blank lines between stanzas.
func PreprocessLyrics(lyrics string) string {
	if lyrics == "" {
		return ""
	}
	lyrics = strings.ToLower(lyrics)
	lyrics = sectionHeader.ReplaceAllString(lyrics, "")
	lyrics = repeatMarker.ReplaceAllString(lyrics, "")
	lyrics = repeatWord.ReplaceAllString(lyrics, "")
	lyrics = manyNewlines.ReplaceAllString(lyrics, "\n\n")
	lyrics = manySpaces.ReplaceAllString(lyrics, " ")
	return strings.TrimSpace(lyrics)
}

// SplitStanzas splits preprocessed lyrics on blank lines and keeps stanzas of
// at least ten words. When nothing survives, the whole text is one stanza.
func SplitStanzas(lyrics string) []string {
	if lyrics == "" {
		return nil
	}
	var stanzas []string
	for _, s := range stanzaBreak.Split(lyrics, -1) {
		s = strings.TrimSpace(s)
		if len(strings.Fields(s)) >= minStanzaWords {
			stanzas = append(stanzas, s)
		}
	}
	if len(stanzas) == 0 {
		return []string{lyrics}
	}
	return stanzas
}

// Valence maps a three-class label and its confidence onto [0,1]: negative
// labels land in the lower half, neutral at 0.5, positive in the upper half.
func Valence(label string, confidence float64) float64 {
	label = strings.ToLower(label)
	switch {
	case strings.Contains(label, "negative") || label == "label_0":
		return (1 - confidence) * 0.5
	case strings.Contains(label, "neutral") || label == "label_1":
		return 0.5
	default:
		return 0.5 + confidence*0.5
	}
}
