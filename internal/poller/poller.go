// Package poller runs one status polling loop per job handle.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/metrics"
)

// DefaultInterval matches the console's one-second refresh.
const DefaultInterval = time.Second

// StatusSource answers status queries for a job.
type StatusSource interface {
	Status(ctx context.Context, jobID string) (domain.StatusSnapshot, error)
}

// Event is delivered for every completed query. Exactly one of Snapshot and
// Err is set; Err is always a *domain.PollingError.
type Event struct {
	JobID    string
	Snapshot *domain.StatusSnapshot
	Err      error
}

// Terminal reports whether the event ends the poll loop.
func (e Event) Terminal() bool {
	return e.Snapshot != nil && e.Snapshot.Status.Terminal()
}

// EventHandler receives events on the poll loop's goroutine. It must not call
// Stop on the handle it is being invoked for.
type EventHandler func(Event)

// Options configures a Poller.
type Options struct {
	Source   StatusSource
	Interval time.Duration
	Logger   *infra.Logger
	Metrics  *metrics.Collector
}

// Poller starts poll loops. It holds no per-job state itself.
type Poller struct {
	source   StatusSource
	interval time.Duration
	logger   *infra.Logger
	metrics  *metrics.Collector
}

func New(opts Options) (*Poller, error) {
	if opts.Source == nil {
		return nil, errors.New("poller: status source is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Poller{source: opts.Source, interval: interval, logger: logger, metrics: opts.Metrics}, nil
}

// Interval returns the tick period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start queries the job immediately and then once per interval until a
// terminal snapshot is delivered or the returned handle is stopped.
func (p *Poller) Start(handle domain.JobHandle, onEvent EventHandler) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		jobID:  handle.JobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.metrics.PollerStarted()
	go p.run(ctx, h, onEvent)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle, onEvent EventHandler) {
	defer close(h.done)
	defer p.metrics.PollerStopped()
	defer h.cancel()

	logger := p.logger.With().Str("job_id", h.jobID).Logger()
	logger.Debug().Dur("interval", p.interval).Msg("poller: started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		// One goroutine per handle: the next query is only issued after the
		// previous one returned. Ticks that fire meanwhile are coalesced by
		// the ticker rather than queued up.
		if terminal := p.pollOnce(ctx, h, onEvent, &logger); terminal {
			logger.Debug().Msg("poller: terminal snapshot, stopping")
			return
		}
		select {
		case <-ctx.Done():
			logger.Debug().Msg("poller: stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, h *Handle, onEvent EventHandler, logger *infra.Logger) bool {
	snap, err := p.source.Status(ctx, h.jobID)
	if ctx.Err() != nil {
		p.metrics.RecordPoll(metrics.OutcomeDiscarded)
		return true
	}

	var ev Event
	switch {
	case err != nil:
		p.metrics.RecordPoll(metrics.OutcomeError)
		logger.Warn().Err(err).Msg("poller: status query failed")
		ev = Event{JobID: h.jobID, Err: &domain.PollingError{JobID: h.jobID, Err: err}}
	case snap.JobID != "" && snap.JobID != h.jobID:
		p.metrics.RecordPoll(metrics.OutcomeDiscarded)
		logger.Warn().Str("got_job_id", snap.JobID).Msg("poller: snapshot for another job discarded")
		return false
	default:
		p.metrics.RecordPoll(metrics.OutcomeOK)
		snap.JobID = h.jobID
		ev = Event{JobID: h.jobID, Snapshot: &snap}
	}

	if !h.deliver(onEvent, ev) {
		p.metrics.RecordPoll(metrics.OutcomeDiscarded)
		return true
	}
	return ev.Terminal()
}

// Handle controls one running poll loop.
type Handle struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}

	// mu serializes delivery against Stop, so that once Stop returns no
	// further event reaches the handler.
	mu      sync.Mutex
	stopped bool
}

// JobID returns the job this loop polls.
func (h *Handle) JobID() string {
	if h == nil {
		return ""
	}
	return h.jobID
}

// Stop ends the loop. After Stop returns the handler is never invoked again,
// even if a query in flight resolves later. Calling Stop more than once, or
// after the loop ended on its own, is a no-op.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.cancel()
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// Done is closed once the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the loop goroutine has exited or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	if h == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) deliver(onEvent EventHandler, ev Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	if onEvent != nil {
		onEvent(ev)
	}
	if ev.Terminal() {
		h.stopped = true
	}
	return true
}
