// Package config assembles runtime settings from defaults, an optional TOML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"songgraph/internal/env"
)

// Duration is a time.Duration that decodes from TOML strings such as "10s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Server contains the HTTP listener settings.
type Server struct {
	Addr string `toml:"addr"`
}

// Workers contains the per-kind pool widths and call limits.
type Workers struct {
	Tempo          int      `toml:"tempo"`
	Lyrics         int      `toml:"lyrics"`
	Sentiment      int      `toml:"sentiment"`
	ItemTimeout    Duration `toml:"item_timeout"`
	LyricsThrottle Duration `toml:"lyrics_throttle"`
}

// Progress contains publisher and retention settings.
type Progress struct {
	PollInterval Duration `toml:"poll_interval"`
	JobTTL       Duration `toml:"job_ttl"`
}

// MinIO contains S3-compatible endpoint credentials.
type MinIO struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Region    string `toml:"region"`
}

// Storage selects and configures the playlist store.
type Storage struct {
	Backend      string `toml:"backend"`
	PlaylistsDir string `toml:"playlists_dir"`
	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	DatabaseURL  string `toml:"database_url"`
	MinIO        MinIO  `toml:"minio"`
}

// Kafka contains broker and topic names for the queue entry point.
type Kafka struct {
	Broker        string `toml:"broker"`
	SubmitTopic   string `toml:"submit_topic"`
	ProgressTopic string `toml:"progress_topic"`
	GroupID       string `toml:"group_id"`
}

// Spotify contains client-credentials for the playlist provider.
type Spotify struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Inference contains the model endpoints.
type Inference struct {
	HFToken          string `toml:"hf_token"`
	SentimentModel   string `toml:"sentiment_model"`
	TempoAnalyzerURL string `toml:"tempo_analyzer_url"`
	LyricsBaseURL    string `toml:"lyrics_base_url"`
}

// Logging contains log level and format.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values.
type Config struct {
	Server    Server    `toml:"server"`
	Workers   Workers   `toml:"workers"`
	Progress  Progress  `toml:"progress"`
	Storage   Storage   `toml:"storage"`
	Kafka     Kafka     `toml:"kafka"`
	Spotify   Spotify   `toml:"spotify"`
	Inference Inference `toml:"inference"`
	Logging   Logging   `toml:"logging"`
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	env.String("HTTP_ADDR", &c.Server.Addr)

	for key, dst := range map[string]*int{
		"BPM_MAX_WORKERS":       &c.Workers.Tempo,
		"LYRICS_MAX_WORKERS":    &c.Workers.Lyrics,
		"SENTIMENT_MAX_WORKERS": &c.Workers.Sentiment,
	} {
		if err := env.Int(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*Duration{
		"ITEM_TIMEOUT":    &c.Workers.ItemTimeout,
		"LYRICS_THROTTLE": &c.Workers.LyricsThrottle,
		"POLL_INTERVAL":   &c.Progress.PollInterval,
		"JOB_TTL":         &c.Progress.JobTTL,
	} {
		d := time.Duration(*dst)
		if err := env.Duration(key, &d); err != nil {
			return err
		}
		*dst = Duration(d)
	}

	env.String("STORAGE_BACKEND", &c.Storage.Backend)
	env.String("PLAYLISTS_DIR", &c.Storage.PlaylistsDir)
	env.String("PLAYLIST_BUCKET", &c.Storage.Bucket)
	env.String("DATABASE_URL", &c.Storage.DatabaseURL)
	env.String("MINIO_ENDPOINT", &c.Storage.MinIO.Endpoint)
	env.String("MINIO_ACCESS_KEY", &c.Storage.MinIO.AccessKey)
	env.String("MINIO_SECRET_KEY", &c.Storage.MinIO.SecretKey)
	env.String("MINIO_REGION", &c.Storage.MinIO.Region)
	if err := env.Bool("MINIO_USE_SSL", &c.Storage.MinIO.UseSSL); err != nil {
		return err
	}

	env.String("KAFKA_BROKER", &c.Kafka.Broker)
	env.String("KAFKA_SUBMIT_TOPIC", &c.Kafka.SubmitTopic)
	env.String("KAFKA_PROGRESS_TOPIC", &c.Kafka.ProgressTopic)
	env.String("KAFKA_GROUP_ID", &c.Kafka.GroupID)

	env.String("SPOTIFY_CLIENT_ID", &c.Spotify.ClientID)
	env.String("SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret)

	env.String("HF_API_TOKEN", &c.Inference.HFToken)
	env.String("SENTIMENT_MODEL", &c.Inference.SentimentModel)
	env.String("TEMPO_ANALYZER_URL", &c.Inference.TempoAnalyzerURL)
	env.String("LYRICS_BASE_URL", &c.Inference.LyricsBaseURL)

	env.String("LOG_LEVEL", &c.Logging.Level)
	env.String("LOG_FORMAT", &c.Logging.Format)
	return nil
}
