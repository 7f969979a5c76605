package models

// Kind names one enrichment. Every kind owns a disjoint set of Track fields;
// adding a kind that writes a field another kind owns breaks the merge
// discipline of the parallel topology.
type Kind string

const (
	KindTempo     Kind = "tempo"
	KindLyrics    Kind = "lyrics"
	KindSentiment Kind = "sentiment"
)

// Kinds lists all enrichment kinds in sequential pipeline order.
var Kinds = []Kind{KindTempo, KindLyrics, KindSentiment}

// Fields returns the JSON names of the Track fields written by k.
func (k Kind) Fields() []string {
	switch k {
	case KindTempo:
		return []string{"tempo", "tempo_error"}
	case KindLyrics:
		return []string{"lyrics", "lyrics_source", "lyrics_error"}
	case KindSentiment:
		return []string{"sentiment_score", "sentiment_chunks", "stanza_scores", "sentiment_error"}
	}
	return nil
}

func (k Kind) String() string { return string(k) }
