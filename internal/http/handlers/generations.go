package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"studio/internal/console"
	"studio/internal/domain"
	"studio/internal/middleware"
)

const maxGenerationBody = 64 << 10

type generationResponse struct {
	JobID       string    `json:"job_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CreateGeneration submits a request and makes it the console's active job.
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerationBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	handle, err := a.Console.Submit(r.Context(), req)
	if err != nil {
		a.submitError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, generationResponse{JobID: handle.JobID, SubmittedAt: handle.SubmittedAt})
}

func (a *App) submitError(w http.ResponseWriter, r *http.Request, err error) {
	logger := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()

	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		a.json(w, http.StatusBadRequest, errorResponse{Error: "validation", Field: vErr.Field, Message: vErr.Reason})
	case errors.Is(err, domain.ErrSuperseded):
		a.error(w, http.StatusConflict, "superseded", "a newer generation took over the console")
	case errors.Is(err, domain.ErrSubmission):
		logger.Warn().Err(err).Msg("generation submission failed")
		a.error(w, http.StatusBadGateway, "submission", err.Error())
	case errors.Is(err, console.ErrClosed):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "console is shutting down")
	default:
		logger.Error().Err(err).Msg("generation submit")
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit generation")
	}
}
