package config

import "time"

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8000"},
		Workers: Workers{
			Tempo:          4,
			Lyrics:         8,
			Sentiment:      4,
			ItemTimeout:    Duration(10 * time.Second),
			LyricsThrottle: Duration(100 * time.Millisecond),
		},
		Progress: Progress{
			PollInterval: Duration(50 * time.Millisecond),
			JobTTL:       Duration(time.Hour),
		},
		Storage: Storage{
			Backend:      "file",
			PlaylistsDir: "playlists",
			Bucket:       "playlists",
		},
		Kafka: Kafka{
			SubmitTopic:   "playlist-submissions",
			ProgressTopic: "playlist-progress",
			GroupID:       "songgraph",
		},
		Inference: Inference{
			SentimentModel: "cardiffnlp/twitter-roberta-base-sentiment-latest",
			LyricsBaseURL:  "https://api.lyrics.ovh",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}
