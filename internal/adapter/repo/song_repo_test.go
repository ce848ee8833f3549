package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"studio/internal/domain"
)

type stubExecutor struct {
	execArgs []any
	execErr  error
	rows     pgx.Rows
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execArgs = args
	return pgconn.CommandTag{}, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return nil
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if s.rows == nil {
		return nil, errors.New("no rows configured")
	}
	return s.rows, nil
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

type songRows struct {
	testRowsBase
	songs []domain.Song
	idx   int
}

func (r *songRows) Next() bool {
	r.idx++
	return r.idx <= len(r.songs)
}

func (r *songRows) Scan(dest ...any) error {
	s := r.songs[r.idx-1]
	meta, _ := json.Marshal(s.Meta)
	*dest[0].(*string) = s.ID
	*dest[1].(*string) = s.UserID
	*dest[2].(*string) = s.Title
	*dest[3].(*string) = s.Prompt
	*dest[4].(*string) = s.Lyrics
	*dest[5].(*float64) = s.Duration
	*dest[6].(*int64) = s.Seed
	*dest[7].(*string) = s.LocalFilename
	*dest[8].(**string) = s.AudioURL
	*dest[9].(*string) = s.Status
	*dest[10].(*[]byte) = meta
	*dest[11].(*time.Time) = s.CreatedAt
	return nil
}

func (r *songRows) Err() error { return nil }

func (r *songRows) Close() {}

func TestSongRepositoryInsert(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewSongRepository(exec)
	url := "http://localhost:8080/static/user-1/track_001.wav"
	song := &domain.Song{
		UserID:        "user-1",
		Title:         "lofi beat",
		Prompt:        "lofi beat",
		Duration:      60,
		LocalFilename: "track_001.wav",
		AudioURL:      &url,
		Status:        domain.SongStatusCompleted,
		Meta:          map[string]any{"infer_steps": 60},
	}
	if err := repo.Insert(context.Background(), song); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if song.ID == "" {
		t.Fatalf("expected generated id")
	}
	if len(exec.execArgs) != 12 {
		t.Fatalf("expected 12 args, got %d", len(exec.execArgs))
	}
	if ts, ok := exec.execArgs[11].(*time.Time); !ok || ts != nil {
		t.Fatalf("expected nil created_at for zero time, got %#v", exec.execArgs[11])
	}
	if exec.execArgs[1] != "user-1" || exec.execArgs[7] != "track_001.wav" {
		t.Fatalf("unexpected args: %#v", exec.execArgs)
	}
	var meta map[string]any
	if err := json.Unmarshal(exec.execArgs[10].([]byte), &meta); err != nil {
		t.Fatalf("meta not json: %v", err)
	}
	if meta["infer_steps"] != float64(60) {
		t.Fatalf("meta mismatch: %#v", meta)
	}
}

func TestSongRepositoryInsertBindsCreatedAt(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewSongRepository(exec)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	if err := repo.Insert(context.Background(), &domain.Song{UserID: "u", CreatedAt: created}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	ts, ok := exec.execArgs[11].(*time.Time)
	if !ok || ts == nil {
		t.Fatalf("expected created_at argument, got %#v", exec.execArgs[11])
	}
	if !ts.Equal(created) || ts.Location() != time.UTC {
		t.Fatalf("created_at mismatch: %v", ts)
	}
}

func TestSongRepositoryInsertWrapsError(t *testing.T) {
	exec := &stubExecutor{execErr: errors.New("relation songs does not exist")}
	repo := NewSongRepository(exec)
	err := repo.Insert(context.Background(), &domain.Song{UserID: "u"})
	if err == nil || !errors.Is(err, exec.execErr) {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
}

func TestSongRepositoryListByUser(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	exec := &stubExecutor{rows: &songRows{songs: []domain.Song{
		{ID: "a", UserID: "u", Title: "one", LocalFilename: "one.wav", Status: "completed", Meta: map[string]any{"k": "v"}, CreatedAt: created},
		{ID: "b", UserID: "u", Title: "two", LocalFilename: "two.wav", Status: "completed", CreatedAt: created},
	}}}
	repo := NewSongRepository(exec)

	songs, err := repo.ListByUser(context.Background(), "u", 0)
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(songs) != 2 {
		t.Fatalf("expected 2 songs, got %d", len(songs))
	}
	if songs[0].Meta["k"] != "v" || !songs[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected first song: %+v", songs[0])
	}
	if songs[1].AudioURL != nil {
		t.Fatalf("expected nil audio url")
	}
}
