package domain

import "time"

// OutputFormat enumerates audio containers the backend can render.
type OutputFormat string

const (
	OutputFormatWAV  OutputFormat = "wav"
	OutputFormatMP3  OutputFormat = "mp3"
	OutputFormatFLAC OutputFormat = "flac"
	OutputFormatOGG  OutputFormat = "ogg"
)

// Valid reports whether the format is one the backend accepts.
func (f OutputFormat) Valid() bool {
	switch f {
	case OutputFormatWAV, OutputFormatMP3, OutputFormatFLAC, OutputFormatOGG:
		return true
	default:
		return false
	}
}

// JobStatus enumerates generation job lifecycle states as reported by the backend.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Valid reports whether the status is part of the job state machine.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions may follow.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// GenerationRequest carries the user-editable parameters of one music generation.
type GenerationRequest struct {
	Prompt        string       `json:"prompt" yaml:"prompt"`
	Lyrics        string       `json:"lyrics,omitempty" yaml:"lyrics"`
	Duration      float64      `json:"duration" yaml:"duration"`
	InferSteps    int          `json:"infer_steps" yaml:"infer_steps"`
	GuidanceScale float64      `json:"guidance_scale" yaml:"guidance_scale"`
	Seed          *int64       `json:"seed,omitempty" yaml:"seed"`
	Format        OutputFormat `json:"format" yaml:"format"`
	CFGType       string       `json:"cfg_type,omitempty" yaml:"cfg_type"`
	SchedulerType string       `json:"scheduler_type,omitempty" yaml:"scheduler_type"`
}

// JobHandle identifies one submitted unit of work.
type JobHandle struct {
	JobID       string            `json:"job_id"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Request     GenerationRequest `json:"request"`
}

// StatusSnapshot is one immutable observation of a job returned by a poll.
type StatusSnapshot struct {
	JobID      string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	Progress   float64   `json:"progress"`
	Message    string    `json:"message,omitempty"`
	Result     []string  `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// FirstResult returns the first artifact reference, if any.
func (s StatusSnapshot) FirstResult() (string, bool) {
	if len(s.Result) == 0 {
		return "", false
	}
	return s.Result[0], true
}

// LogEntry is one line of the console transition log.
type LogEntry struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}
