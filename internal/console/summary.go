package console

import (
	"math"
	"strings"

	"studio/internal/domain"
	"studio/internal/translog"
)

// Banner titles shown once a job is terminal.
const (
	CompletedBanner = "Generation Complete"
	CompletedDetail = "Output saved. Check History sidebar."
	FailedBanner    = "Execution Failed"
)

// Summary is the derived view of a console state for presentation.
type Summary struct {
	Badge        string `json:"badge,omitempty"`
	Progress     int    `json:"progress"`
	ShowProgress bool   `json:"show_progress"`
	Banner       string `json:"banner,omitempty"`
	BannerDetail string `json:"banner_detail,omitempty"`
	Terminal     bool   `json:"terminal"`
}

// Summarize derives badge, progress percentage and banner from the status.
func Summarize(st State) Summary {
	if st.Status == nil {
		return Summary{}
	}
	s := st.Status
	out := Summary{
		Badge:        strings.ToUpper(string(s.Status)),
		Progress:     percent(s.Progress),
		ShowProgress: s.Status == domain.JobStatusProcessing,
		Terminal:     s.Status.Terminal(),
	}
	switch s.Status {
	case domain.JobStatusCompleted:
		out.Banner = CompletedBanner
		out.BannerDetail = CompletedDetail
	case domain.JobStatusFailed:
		out.Banner = FailedBanner
		out.BannerDetail = strings.TrimSpace(s.Error)
		if out.BannerDetail == "" {
			out.BannerDetail = translog.UnknownFailureText
		}
	}
	return out
}

func percent(progress float64) int {
	if math.IsNaN(progress) {
		return 0
	}
	p := math.Round(progress * 100)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}
