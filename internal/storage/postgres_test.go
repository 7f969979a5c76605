package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maxatome/go-testdeep/td"

	"songgraph/internal/models"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	row      fakeRow
	rowArgs  []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.rowArgs = args
	return f.row
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	t.Run("migrate and save", func(t *testing.T) {
		db := &fakeDB{}
		store := NewPostgresStore(db, nil)

		td.CmpNoError(t, store.Migrate(ctx))
		key, err := store.Save(ctx, "Late Night", []models.Track{{ID: "a"}})

		td.CmpNoError(t, err)
		td.Cmp(t, key, "Late_Night.json")
		td.Cmp(t, db.execSQL, []string{schema, upsertPlaylist})
		td.Cmp(t, db.execArgs[1][:2], []any{"Late_Night.json", "Late Night"})
		td.Cmp(t, db.execArgs[1][3], 1)
	})

	t.Run("load", func(t *testing.T) {
		data, _ := json.Marshal([]models.Track{{ID: "a", Title: "x"}})
		when := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		db := &fakeDB{row: fakeRow{values: []any{"Late Night", data, when}}}

		got, err := NewPostgresStore(db, nil).Load(ctx, "Late Night")

		td.CmpNoError(t, err)
		td.Cmp(t, db.rowArgs, []any{"Late_Night.json"})
		td.Cmp(t, got, models.Playlist{Name: "Late Night", Tracks: []models.Track{{ID: "a", Title: "x"}}, UpdatedAt: when})
	})

	t.Run("load missing", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
		_, err := NewPostgresStore(db, nil).Load(ctx, "Gone")
		td.CmpErrorIs(t, err, ErrNotFound)
	})

	t.Run("list error", func(t *testing.T) {
		_, err := NewPostgresStore(&fakeDB{}, nil).List(ctx)
		td.CmpString(t, err, "list playlists: not supported")
	})
}
