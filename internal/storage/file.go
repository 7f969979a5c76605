package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"songgraph/internal/keys"
	"songgraph/internal/models"
)

// FileStore keeps one JSON file per playlist in a directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, logger: logger}
}

func (s *FileStore) Save(_ context.Context, name string, tracks []models.Track) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create playlists dir: %w", err)
	}
	key := keys.Playlist(name)
	data, err := json.MarshalIndent(nonNil(tracks), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode playlist: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".playlist-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write playlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write playlist: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return "", fmt.Errorf("store playlist: %w", err)
	}

	s.logger.Info("stored playlist", zap.String("key", key), zap.Int("tracks", len(tracks)))
	return key, nil
}

func (s *FileStore) List(_ context.Context) ([]models.PlaylistSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.PlaylistSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read playlists dir: %w", err)
	}

	out := make([]models.PlaylistSummary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !keys.IsPlaylist(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		tracks, err := s.read(e.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable playlist", zap.String("key", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, models.PlaylistSummary{
			Name:       keys.Name(e.Name()),
			Key:        e.Name(),
			TrackCount: len(tracks),
		})
	}
	sortSummaries(out)
	return out, nil
}

func (s *FileStore) Load(_ context.Context, name string) (models.Playlist, error) {
	if err := validName(name); err != nil {
		return models.Playlist{}, err
	}
	key := keys.Playlist(name)
	tracks, err := s.read(key)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Playlist{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return models.Playlist{}, err
	}
	info, err := os.Stat(filepath.Join(s.dir, key))
	if err != nil {
		return models.Playlist{}, err
	}
	return models.Playlist{Name: keys.Name(key), Tracks: tracks, UpdatedAt: info.ModTime()}, nil
}

func (s *FileStore) read(key string) ([]models.Track, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		return nil, err
	}
	return decodeTracks(data)
}

func decodeTracks(data []byte) ([]models.Track, error) {
	var tracks []models.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	return tracks, nil
}

func nonNil(tracks []models.Track) []models.Track {
	if tracks == nil {
		return []models.Track{}
	}
	return tracks
}

func sortSummaries(s []models.PlaylistSummary) {
	slices.SortFunc(s, func(a, b models.PlaylistSummary) int {
		return strings.Compare(a.Name, b.Name)
	})
}
