package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// SongRepositoryPG implements domain.SongRepository over the marker-tagged SQL runner.
type SongRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewSongRepository creates a song repository backed by PostgreSQL.
func NewSongRepository(sql infra.SQLExecutor) *SongRepositoryPG {
	return &SongRepositoryPG{sql: sql}
}

// Insert writes one metadata record. A missing ID is generated and a zero
// CreatedAt falls back to the database clock.
func (r *SongRepositoryPG) Insert(ctx context.Context, song *domain.Song) error {
	if song == nil {
		return errors.New("song is required")
	}
	if song.ID == "" {
		song.ID = uuid.NewString()
	}
	meta := song.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode song meta: %w", err)
	}
	var createdAt *time.Time
	if !song.CreatedAt.IsZero() {
		ts := song.CreatedAt.UTC()
		createdAt = &ts
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertSong,
		song.ID,
		song.UserID,
		song.Title,
		song.Prompt,
		song.Lyrics,
		song.Duration,
		song.Seed,
		song.LocalFilename,
		song.AudioURL,
		song.Status,
		rawMeta,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert song: %w", err)
	}
	return nil
}

// ListByUser returns the most recent songs for a user.
func (r *SongRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Song, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListSongsByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var songs []domain.Song
	for rows.Next() {
		var song domain.Song
		var rawMeta []byte
		if err := rows.Scan(
			&song.ID,
			&song.UserID,
			&song.Title,
			&song.Prompt,
			&song.Lyrics,
			&song.Duration,
			&song.Seed,
			&song.LocalFilename,
			&song.AudioURL,
			&song.Status,
			&rawMeta,
			&song.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &song.Meta); err != nil {
				return nil, fmt.Errorf("decode song meta: %w", err)
			}
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return songs, nil
}

var _ domain.SongRepository = (*SongRepositoryPG)(nil)
