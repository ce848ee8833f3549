package cloudsync

import (
	"context"
	"fmt"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
	"studio/internal/infra"
)

// Wiring is the database-backed part of cloud sync.
type Wiring struct {
	Syncer *Syncer
	Songs  domain.SongRepository
	Close  func()
}

// Setup connects to the metadata database and builds a Syncer over it.
// It returns nil when cloud sync is not configured.
func Setup(ctx context.Context, cfg *infra.Config, artifacts ArtifactSource, store domain.ObjectStore, logger infra.Logger) (*Wiring, error) {
	if !cfg.CloudSyncEnabled() {
		logger.Info().Msg("cloudsync: disabled (DATABASE_URL or CLOUD_SYNC_USER_ID not set)")
		return nil, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("cloudsync: connect database: %w", err)
	}
	songs := repo.NewSongRepository(infra.NewSQLRunner(pool, logger))
	syncer, err := New(Options{
		Artifacts:     artifacts,
		Store:         store,
		Songs:         songs,
		UserID:        cfg.CloudSyncUserID,
		RequireUpload: cfg.CloudSyncRequireUpload,
		Logger:        &logger,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Wiring{Syncer: syncer, Songs: songs, Close: pool.Close}, nil
}
