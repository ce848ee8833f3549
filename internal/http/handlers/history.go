package handlers

import (
	"net/http"
	"strconv"
	"time"

	"studio/internal/domain"
)

const defaultLibraryLimit = 50

// ListHistory proxies the backend's list of generated files.
func (a *App) ListHistory(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "history not configured")
		return
	}
	files, err := a.History.History(r.Context())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("history fetch failed")
		a.error(w, http.StatusBadGateway, "backend", "failed to load history")
		return
	}
	if files == nil {
		files = []string{}
	}
	a.json(w, http.StatusOK, map[string]any{"files": files})
}

type songDTO struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Prompt        string         `json:"prompt"`
	Lyrics        string         `json:"lyrics,omitempty"`
	Duration      float64        `json:"duration"`
	Seed          int64          `json:"seed"`
	LocalFilename string         `json:"local_filename"`
	AudioURL      *string        `json:"audio_url"`
	Status        string         `json:"status"`
	Meta          map[string]any `json:"meta,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

// Library lists the songs cloud sync has saved for the configured user.
func (a *App) Library(w http.ResponseWriter, r *http.Request) {
	if a.Songs == nil || a.LibraryFor == "" {
		a.error(w, http.StatusNotFound, "not_found", "cloud sync is disabled")
		return
	}
	limit := defaultLibraryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 200 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 200")
			return
		}
		limit = v
	}
	songs, err := a.Songs.ListByUser(r.Context(), a.LibraryFor, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("library query failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load library")
		return
	}
	items := make([]songDTO, 0, len(songs))
	for _, s := range songs {
		items = append(items, toSongDTO(s))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func toSongDTO(s domain.Song) songDTO {
	return songDTO{
		ID:            s.ID,
		Title:         s.Title,
		Prompt:        s.Prompt,
		Lyrics:        s.Lyrics,
		Duration:      s.Duration,
		Seed:          s.Seed,
		LocalFilename: s.LocalFilename,
		AudioURL:      s.AudioURL,
		Status:        s.Status,
		Meta:          s.Meta,
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
	}
}
