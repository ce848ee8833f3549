package cloudsync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/storage"
)

type fakeArtifacts struct {
	data []byte
	err  error
	got  string
}

func (f *fakeArtifacts) Download(ctx context.Context, filename string) ([]byte, string, error) {
	f.got = filename
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, "audio/wav", nil
}

type memorySongs struct {
	inserted []domain.Song
	err      error
}

func (m *memorySongs) Insert(ctx context.Context, song *domain.Song) error {
	if m.err != nil {
		return m.err
	}
	song.ID = "song-1"
	m.inserted = append(m.inserted, *song)
	return nil
}

func (m *memorySongs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Song, error) {
	return m.inserted, nil
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	return "", errors.New("bucket not found")
}

func (failingStore) PublicURL(key string) string { return "" }

func testHandle() domain.JobHandle {
	seed := int64(42)
	return domain.JobHandle{
		JobID: "job-1",
		Request: domain.GenerationRequest{
			Prompt:        "lofi piano",
			Lyrics:        "[Verse]\nla la",
			Duration:      60,
			InferSteps:    60,
			GuidanceScale: 15,
			Seed:          &seed,
			Format:        domain.OutputFormatWAV,
		},
	}
}

func fixedNow() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

func TestPersistUploadsAndInserts(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	require.NoError(t, err)
	artifacts := &fakeArtifacts{data: []byte("RIFF")}
	songs := &memorySongs{}

	s, err := New(Options{Artifacts: artifacts, Store: store, Songs: songs, UserID: "user-7", Now: fixedNow})
	require.NoError(t, err)

	require.NoError(t, s.Persist(context.Background(), testHandle(), "track_001.wav"))
	require.Len(t, songs.inserted, 1)

	song := songs.inserted[0]
	assert.Equal(t, "track_001.wav", artifacts.got)
	assert.Equal(t, "user-7", song.UserID)
	assert.Equal(t, "lofi piano", song.Title)
	assert.Equal(t, int64(42), song.Seed)
	assert.Equal(t, "track_001.wav", song.LocalFilename)
	assert.Equal(t, domain.SongStatusCompleted, song.Status)
	require.NotNil(t, song.AudioURL)
	assert.Equal(t, "http://localhost:8080/static/user-7/track_001.wav", *song.AudioURL)
	assert.Equal(t, "ok", song.Meta["upload"])
	assert.Equal(t, "job-1", song.Meta["job_id"])
	assert.Equal(t, fixedNow(), song.CreatedAt)
}

func TestPersistWithoutUserSkips(t *testing.T) {
	songs := &memorySongs{}
	s, err := New(Options{Songs: songs})
	require.NoError(t, err)

	require.NoError(t, s.Persist(context.Background(), testHandle(), "track.wav"))
	assert.Empty(t, songs.inserted)
}

func TestPersistWithoutRequestMetadataSkips(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	require.NoError(t, err)
	artifacts := &fakeArtifacts{data: []byte("RIFF")}
	songs := &memorySongs{}
	s, err := New(Options{Artifacts: artifacts, Store: store, Songs: songs, UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, s.Persist(context.Background(), domain.JobHandle{JobID: "x"}, "track.wav"))
	assert.Empty(t, songs.inserted)
	assert.Empty(t, artifacts.got)
}

func TestPersistDegradesOnUploadFailure(t *testing.T) {
	songs := &memorySongs{}
	s, err := New(Options{Artifacts: &fakeArtifacts{data: []byte("x")}, Store: failingStore{}, Songs: songs, UserID: "u"})
	require.NoError(t, err)

	require.NoError(t, s.Persist(context.Background(), testHandle(), "track.wav"))
	require.Len(t, songs.inserted, 1)
	assert.Nil(t, songs.inserted[0].AudioURL)
	assert.Equal(t, "skipped", songs.inserted[0].Meta["upload"])
}

func TestPersistRequireUploadFails(t *testing.T) {
	songs := &memorySongs{}
	s, err := New(Options{
		Artifacts:     &fakeArtifacts{err: errors.New("404 not found")},
		Store:         failingStore{},
		Songs:         songs,
		UserID:        "u",
		RequireUpload: true,
	})
	require.NoError(t, err)

	err = s.Persist(context.Background(), testHandle(), "track.wav")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "download", pErr.Stage)
	assert.Equal(t, "job-1", pErr.JobID)
	assert.Empty(t, songs.inserted)
}

func TestPersistInsertFailure(t *testing.T) {
	songs := &memorySongs{err: errors.New("connection refused")}
	s, err := New(Options{Songs: songs, UserID: "u"})
	require.NoError(t, err)

	err = s.Persist(context.Background(), testHandle(), "track.wav")
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestNewRequiresRepository(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"empty", "   ", "Untitled"},
		{"short", " ambient rain ", "ambient rain"},
		{"long", strings.Repeat("a", 80), strings.Repeat("a", 50)},
		{"multibyte", strings.Repeat("é", 60), strings.Repeat("é", 50)},
		{"decomposed", "cafe\u0301", "caf\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.prompt))
		})
	}
}

func TestSetupDisabledWithoutDatabase(t *testing.T) {
	cfg := &infra.Config{CloudSyncUserID: "u"}
	w, err := Setup(context.Background(), cfg, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, w)
}
