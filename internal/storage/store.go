// Package storage persists enriched playlists. Every backend keys a playlist
// by keys.Playlist(name) and stores the track list as a JSON array.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"songgraph/internal/keys"
	"songgraph/internal/models"
)

// ErrNotFound is returned when no playlist is stored under a name.
var ErrNotFound = errors.New("playlist not found")

// Store persists and lists enriched playlists.
type Store interface {
	// Save writes tracks under name and returns the storage key.
	Save(ctx context.Context, name string, tracks []models.Track) (string, error)
	// List returns a summary of every stored playlist sorted by name.
	List(ctx context.Context) ([]models.PlaylistSummary, error)
	// Load returns the playlist stored under name or ErrNotFound.
	Load(ctx context.Context, name string) (models.Playlist, error)
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendS3       Backend = "s3"
	BackendPostgres Backend = "postgres"
)

// ParseBackend validates a backend name. The empty string selects
// BackendFile.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case "":
		return BackendFile, nil
	case BackendFile, BackendS3, BackendPostgres:
		return b, nil
	}
	return "", fmt.Errorf("unknown storage backend %q", s)
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("playlist name is required")
	}
	if keys.Sanitize(name) == "" {
		return fmt.Errorf("playlist name %q has no usable characters", name)
	}
	return nil
}
