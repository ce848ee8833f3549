package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"studio/internal/console"
	"studio/internal/domain"
	"studio/internal/infra"
)

// ConsoleService is the part of the console the HTTP view drives.
type ConsoleService interface {
	Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error)
	LogsSince(seq int64) console.State
	Toggle() bool
}

// HistorySource lists files the backend has produced.
type HistorySource interface {
	History(ctx context.Context) ([]string, error)
}

type App struct {
	Console ConsoleService
	History HistorySource
	// Songs is nil when cloud sync is disabled.
	Songs      domain.SongRepository
	LibraryFor string
	Logger     *infra.Logger
}

func NewApp(c ConsoleService, history HistorySource, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &App{Console: c, History: history, Logger: logger}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}
