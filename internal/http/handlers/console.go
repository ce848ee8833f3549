package handlers

import (
	"net/http"
	"strconv"

	"studio/internal/console"
	"studio/internal/domain"
)

type consoleResponse struct {
	Open    bool                   `json:"open"`
	Job     *domain.JobHandle      `json:"job"`
	Status  *domain.StatusSnapshot `json:"status"`
	Summary console.Summary        `json:"summary"`
	Logs    []domain.LogEntry      `json:"logs"`
	LastSeq int64                  `json:"last_seq"`
}

// ConsoleState returns the console view. With ?since=<seq> only newer log entries
// are included.
func (a *App) ConsoleState(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "since must be a non-negative integer")
			return
		}
		since = v
	}

	st := a.Console.LogsSince(since)
	logs := st.Logs
	if logs == nil {
		logs = []domain.LogEntry{}
	}
	last := since
	if n := len(logs); n > 0 {
		last = logs[n-1].Seq
	}
	a.json(w, http.StatusOK, consoleResponse{
		Open:    st.Open,
		Job:     st.Job,
		Status:  st.Status,
		Summary: console.Summarize(st),
		Logs:    logs,
		LastSeq: last,
	})
}

func (a *App) ToggleConsole(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]bool{"open": a.Console.Toggle()})
}
