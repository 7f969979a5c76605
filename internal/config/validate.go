package config

import (
	"errors"
	"fmt"

	"songgraph/internal/storage"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkers() error {
	for name, n := range map[string]int{
		"workers.tempo":     c.Workers.Tempo,
		"workers.lyrics":    c.Workers.Lyrics,
		"workers.sentiment": c.Workers.Sentiment,
	} {
		if n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, n)
		}
	}
	if c.Workers.ItemTimeout <= 0 {
		return errors.New("workers.item_timeout must be positive")
	}
	if c.Progress.PollInterval <= 0 {
		return errors.New("progress.poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	backend, err := storage.ParseBackend(c.Storage.Backend)
	if err != nil {
		return fmt.Errorf("storage.backend: %w", err)
	}
	switch backend {
	case storage.BackendFile:
		if c.Storage.PlaylistsDir == "" {
			return errors.New("storage.playlists_dir must be set for the file backend")
		}
	case storage.BackendS3:
		if c.Storage.Bucket == "" || c.Storage.MinIO.Endpoint == "" {
			return errors.New("storage.bucket and storage.minio.endpoint must be set for the s3 backend")
		}
	case storage.BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("storage.database_url must be set for the postgres backend")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
