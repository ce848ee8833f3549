// Package cloudsync copies a finished artifact into object storage and
// records its metadata so the track shows up in the user's library.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/storage"
)

const (
	titleMaxRunes = 50
	untitledTitle = "Untitled"
	uploadOK      = "ok"
	uploadSkipped = "skipped"
	stageDownload = "download"
	stageUpload   = "upload"
	stageMetadata = "metadata"
)

// ArtifactSource fetches the bytes of a generated file from the backend.
type ArtifactSource interface {
	Download(ctx context.Context, filename string) ([]byte, string, error)
}

// Options wires a Syncer.
type Options struct {
	Artifacts     ArtifactSource
	Store         domain.ObjectStore
	Songs         domain.SongRepository
	UserID        string
	RequireUpload bool
	Logger        *infra.Logger
	Now           func() time.Time
}

// Syncer implements the completion persister.
type Syncer struct {
	artifacts     ArtifactSource
	store         domain.ObjectStore
	songs         domain.SongRepository
	userID        string
	requireUpload bool
	logger        *infra.Logger
	now           func() time.Time
}

func New(opts Options) (*Syncer, error) {
	if opts.Songs == nil {
		return nil, errors.New("cloudsync: song repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		artifacts:     opts.Artifacts,
		store:         opts.Store,
		songs:         opts.Songs,
		userID:        strings.TrimSpace(opts.UserID),
		requireUpload: opts.RequireUpload,
		logger:        logger,
		now:           now,
	}, nil
}

// Persist uploads the artifact and inserts the song record. Without a
// configured user, or for a handle that carries no request metadata, it does
// nothing. Upload problems degrade to a record with no audio URL unless
// uploads are required.
func (s *Syncer) Persist(ctx context.Context, handle domain.JobHandle, filename string) error {
	if s.userID == "" {
		s.logger.Debug().Str("job_id", handle.JobID).Msg("cloudsync: no user configured, skipping")
		return nil
	}
	if strings.TrimSpace(handle.Request.Prompt) == "" {
		s.logger.Warn().Str("job_id", handle.JobID).Str("filename", filename).Msg("cloudsync: no metadata for job, skipping")
		return nil
	}

	logger := s.logger.With().Str("job_id", handle.JobID).Str("filename", filename).Logger()
	audioURL, contentType, err := s.upload(ctx, filename)
	if err != nil {
		err.JobID = handle.JobID
		if s.requireUpload {
			return err
		}
		logger.Warn().Err(err).Msg("cloudsync: upload skipped, saving metadata only")
	}

	req := handle.Request
	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	}
	meta := map[string]any{
		"job_id":         handle.JobID,
		"format":         string(req.Format),
		"infer_steps":    req.InferSteps,
		"guidance_scale": req.GuidanceScale,
		"upload":         uploadOK,
	}
	if req.CFGType != "" {
		meta["cfg_type"] = req.CFGType
	}
	if req.SchedulerType != "" {
		meta["scheduler_type"] = req.SchedulerType
	}
	if contentType != "" {
		meta["content_type"] = contentType
	}
	if audioURL == nil {
		meta["upload"] = uploadSkipped
	}

	song := &domain.Song{
		UserID:        s.userID,
		Title:         Title(req.Prompt),
		Prompt:        req.Prompt,
		Lyrics:        req.Lyrics,
		Duration:      req.Duration,
		Seed:          seed,
		LocalFilename: filename,
		AudioURL:      audioURL,
		Status:        domain.SongStatusCompleted,
		Meta:          meta,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.songs.Insert(ctx, song); err != nil {
		return &domain.PersistenceError{JobID: handle.JobID, Stage: stageMetadata, Err: err}
	}
	logger.Info().Str("song_id", song.ID).Bool("uploaded", audioURL != nil).Msg("cloudsync: song saved")
	return nil
}

func (s *Syncer) upload(ctx context.Context, filename string) (*string, string, *domain.PersistenceError) {
	if s.artifacts == nil || s.store == nil {
		return nil, "", &domain.PersistenceError{Stage: stageUpload, Err: errors.New("object storage not configured")}
	}
	data, contentType, err := s.artifacts.Download(ctx, filename)
	if err != nil {
		return nil, "", &domain.PersistenceError{Stage: stageDownload, Err: err}
	}
	key, err := s.store.Put(ctx, storage.ObjectKey(s.userID, filename), data)
	if err != nil {
		return nil, contentType, &domain.PersistenceError{Stage: stageUpload, Err: err}
	}
	publicURL := s.store.PublicURL(key)
	if publicURL == "" {
		return nil, contentType, &domain.PersistenceError{Stage: stageUpload, Err: fmt.Errorf("no public url for %q", key)}
	}
	return &publicURL, contentType, nil
}

// Title derives a display title from a prompt: NFC-normalized, trimmed and
// cut to 50 characters.
func Title(prompt string) string {
	prompt = strings.TrimSpace(norm.NFC.String(prompt))
	if prompt == "" {
		return untitledTitle
	}
	runes := []rune(prompt)
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}
	return strings.TrimSpace(string(runes))
}
