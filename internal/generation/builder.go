package generation

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/metrics"
)

const (
	DefaultDuration      = 60.0
	DefaultInferSteps    = 60
	DefaultGuidanceScale = 15.0
	DefaultFormat        = domain.OutputFormatWAV

	MinDuration      = 10.0
	MaxDuration      = 240.0
	MinInferSteps    = 10
	MaxInferSteps    = 200
	MinGuidanceScale = 1.0
	MaxGuidanceScale = 30.0
)

// Submitter issues the creation call against the generation backend.
type Submitter interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// Options configures a Builder.
type Options struct {
	Backend Submitter
	Logger  *infra.Logger
	Metrics *metrics.Collector
	Now     func() time.Time
}

// Builder validates generation requests and submits them, yielding job handles.
// It never starts polling; adopting the handle is the caller's job.
type Builder struct {
	backend Submitter
	logger  *infra.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewBuilder(opts Options) (*Builder, error) {
	if opts.Backend == nil {
		return nil, errors.New("generation: backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Builder{backend: opts.Backend, logger: logger, metrics: opts.Metrics, now: now}, nil
}

// Submit validates req and issues the creation call. It is safe for concurrent
// use; every call yields an independent handle.
func (b *Builder) Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error) {
	normalized, err := Validate(req)
	if err != nil {
		b.metrics.RecordSubmission(metrics.OutcomeInvalid)
		return domain.JobHandle{}, err
	}

	jobID, err := b.backend.Generate(ctx, normalized)
	if err != nil {
		b.metrics.RecordSubmission(metrics.OutcomeRejected)
		var subErr *domain.SubmissionError
		if !errors.As(err, &subErr) {
			err = &domain.SubmissionError{Err: err}
		}
		b.logger.Warn().Err(err).Msg("generation: submit failed")
		return domain.JobHandle{}, err
	}

	b.metrics.RecordSubmission(metrics.OutcomeAccepted)
	b.logger.Info().Str("job_id", jobID).Float64("duration", normalized.Duration).Msg("generation: job submitted")
	return domain.JobHandle{
		JobID:       jobID,
		SubmittedAt: b.now(),
		Request:     normalized,
	}, nil
}

// Validate applies defaults to zero-valued fields and checks bounds. The
// returned request shares no memory with req.
func Validate(req domain.GenerationRequest) (domain.GenerationRequest, error) {
	out := req
	out.Prompt = strings.TrimSpace(req.Prompt)
	if out.Prompt == "" {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "prompt", Reason: "is required"}
	}

	if out.Duration == 0 {
		out.Duration = DefaultDuration
	}
	if math.IsNaN(out.Duration) || out.Duration < MinDuration || out.Duration > MaxDuration {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "duration", Reason: "must be between 10 and 240 seconds"}
	}

	if out.InferSteps == 0 {
		out.InferSteps = DefaultInferSteps
	}
	if out.InferSteps < MinInferSteps || out.InferSteps > MaxInferSteps {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "infer_steps", Reason: "must be between 10 and 200"}
	}

	if out.GuidanceScale == 0 {
		out.GuidanceScale = DefaultGuidanceScale
	}
	if math.IsNaN(out.GuidanceScale) || out.GuidanceScale < MinGuidanceScale || out.GuidanceScale > MaxGuidanceScale {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "guidance_scale", Reason: "must be between 1.0 and 30.0"}
	}

	out.Format = domain.OutputFormat(strings.ToLower(strings.TrimSpace(string(req.Format))))
	if out.Format == "" {
		out.Format = DefaultFormat
	}
	if !out.Format.Valid() {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "format", Reason: "must be one of wav, mp3, flac, ogg"}
	}

	if req.Seed != nil {
		if *req.Seed < 0 {
			return domain.GenerationRequest{}, &domain.ValidationError{Field: "seed", Reason: "must be non-negative"}
		}
		seed := *req.Seed
		out.Seed = &seed
	}

	if strings.TrimSpace(req.Lyrics) != "" {
		lyrics, err := CanonicalLyrics(req.Lyrics)
		if err != nil {
			return domain.GenerationRequest{}, err
		}
		out.Lyrics = lyrics
	} else {
		out.Lyrics = ""
	}

	out.CFGType = strings.TrimSpace(req.CFGType)
	out.SchedulerType = strings.TrimSpace(req.SchedulerType)
	return out, nil
}
