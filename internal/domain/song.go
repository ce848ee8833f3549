package domain

import "time"

// SongStatusCompleted is the only status cloud sync writes.
const SongStatusCompleted = "completed"

// Song is the durable metadata record written after a job completes.
type Song struct {
	ID            string
	UserID        string
	Title         string
	Prompt        string
	Lyrics        string
	Duration      float64
	Seed          int64
	LocalFilename string
	AudioURL      *string
	Status        string
	Meta          map[string]any
	CreatedAt     time.Time
}
