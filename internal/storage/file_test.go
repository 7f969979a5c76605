package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"

	"songgraph/internal/models"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "playlists")
	store := NewFileStore(dir, nil)

	t.Run("list before anything is stored", func(t *testing.T) {
		got, err := store.List(ctx)
		td.CmpNoError(t, err)
		td.CmpEmpty(t, got)
	})

	t.Run("save and load round trip", func(t *testing.T) {
		tracks := []models.Track{
			{ID: "a", Title: "One", Tempo: lo.ToPtr(120.0)},
			{ID: "b", Title: "Two", SentimentError: lo.ToPtr("no lyrics available")},
		}

		key, err := store.Save(ctx, "Road Trip: 2024?", tracks)
		td.Require(t).CmpNoError(err)
		td.Cmp(t, key, "Road_Trip_2024.json")

		got, err := store.Load(ctx, "Road Trip: 2024?")
		td.Require(t).CmpNoError(err)
		td.Cmp(t, got.Name, "Road Trip 2024")
		td.Cmp(t, got.Tracks, tracks)
		td.CmpFalse(t, got.UpdatedAt.IsZero())
	})

	t.Run("save overwrites", func(t *testing.T) {
		_, err := store.Save(ctx, "Road Trip: 2024?", []models.Track{{ID: "only"}})
		td.Require(t).CmpNoError(err)

		got, err := store.Load(ctx, "Road_Trip_2024")
		td.Require(t).CmpNoError(err)
		td.CmpLen(t, got.Tracks, 1)
	})

	t.Run("list skips foreign and broken files", func(t *testing.T) {
		_, err := store.Save(ctx, "Chill", nil)
		td.Require(t).CmpNoError(err)
		td.Require(t).CmpNoError(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
		td.Require(t).CmpNoError(os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

		got, err := store.List(ctx)

		td.CmpNoError(t, err)
		td.Cmp(t, got, []models.PlaylistSummary{
			{Name: "Chill", Key: "Chill.json", TrackCount: 0},
			{Name: "Road Trip 2024", Key: "Road_Trip_2024.json", TrackCount: 1},
		})
	})

	t.Run("missing playlist", func(t *testing.T) {
		_, err := store.Load(ctx, "Nope")
		td.CmpErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := store.Save(ctx, "  ", nil)
		td.CmpError(t, err)
	})

	t.Run("name with only reserved characters", func(t *testing.T) {
		_, err := store.Save(ctx, "???", nil)
		td.CmpError(t, err)
		_, statErr := os.Stat(filepath.Join(dir, ".json"))
		td.CmpTrue(t, errors.Is(statErr, fs.ErrNotExist))

		_, err = store.Load(ctx, "/*")
		td.CmpError(t, err)
	})
}

func TestParseBackend(t *testing.T) {
	for in, expected := range map[string]Backend{
		"":         BackendFile,
		"file":     BackendFile,
		"S3":       BackendS3,
		"postgres": BackendPostgres,
	} {
		got, err := ParseBackend(in)
		td.CmpNoError(t, err, in)
		td.Cmp(t, got, expected, in)
	}
	_, err := ParseBackend("sqlite")
	td.CmpString(t, err, `unknown storage backend "sqlite"`)
}

func TestS3StoreKeys(t *testing.T) {
	s := &S3Store{prefix: "enriched"}
	td.Cmp(t, s.objectKey("Mix.json"), "enriched/Mix.json")
	td.Cmp(t, (&S3Store{}).objectKey("Mix.json"), "Mix.json")
}
