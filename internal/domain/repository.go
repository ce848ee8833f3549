package domain

import "context"

// SongRepository persists cloud-synced track metadata.
type SongRepository interface {
	Insert(ctx context.Context, song *Song) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Song, error)
}

// ObjectStore is the durable blob storage that synced artifacts are uploaded to.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	PublicURL(key string) string
}
