package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"songgraph/internal/keys"
	"songgraph/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS playlists (
	key         TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	tracks      JSONB NOT NULL,
	track_count INTEGER NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	upsertPlaylist = `
INSERT INTO playlists (key, name, tracks, track_count, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (key) DO UPDATE
SET name = EXCLUDED.name, tracks = EXCLUDED.tracks,
    track_count = EXCLUDED.track_count, updated_at = EXCLUDED.updated_at`

	selectPlaylist  = `SELECT name, tracks, updated_at FROM playlists WHERE key = $1`
	selectSummaries = `SELECT key, name, track_count FROM playlists ORDER BY name`
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps playlists in a single table with the tracks as JSONB.
type PostgresStore struct {
	db     DB
	logger *zap.Logger
}

// NewPostgresPool opens a connection pool for databaseURL and verifies it.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func NewPostgresStore(db DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Migrate creates the playlists table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate playlists table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, name string, tracks []models.Track) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	key := keys.Playlist(name)
	data, err := json.Marshal(nonNil(tracks))
	if err != nil {
		return "", fmt.Errorf("encode playlist: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertPlaylist, key, keys.Name(key), data, len(tracks)); err != nil {
		return "", fmt.Errorf("store playlist: %w", err)
	}
	s.logger.Info("stored playlist", zap.String("key", key), zap.Int("tracks", len(tracks)))
	return key, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.PlaylistSummary, error) {
	rows, err := s.db.Query(ctx, selectSummaries)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PlaylistSummary, error) {
		var p models.PlaylistSummary
		err := row.Scan(&p.Key, &p.Name, &p.TrackCount)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Load(ctx context.Context, name string) (models.Playlist, error) {
	if err := validName(name); err != nil {
		return models.Playlist{}, err
	}
	var (
		p    models.Playlist
		data []byte
	)
	err := s.db.QueryRow(ctx, selectPlaylist, keys.Playlist(name)).Scan(&p.Name, &data, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Playlist{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return models.Playlist{}, fmt.Errorf("load playlist: %w", err)
	}
	if p.Tracks, err = decodeTracks(data); err != nil {
		return models.Playlist{}, err
	}
	return p, nil
}
