// Package console owns the single active generation job: it submits, polls,
// records transitions and hands completions to the dispatcher.
package console

import (
	"context"
	"errors"
	"sync"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/metrics"
	"studio/internal/poller"
	"studio/internal/translog"
)

// ErrClosed is returned by Submit and Adopt after Close.
var ErrClosed = errors.New("console: closed")

// Submitter creates backend jobs.
type Submitter interface {
	Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error)
}

// Dispatcher observes terminal snapshots independently of status tracking.
type Dispatcher interface {
	OnTerminal(handle domain.JobHandle, snap domain.StatusSnapshot) bool
	Wait(ctx context.Context) error
}

// Options wires a Console.
type Options struct {
	Builder    Submitter
	Poller     *poller.Poller
	Dispatcher Dispatcher
	Logger     *infra.Logger
	Metrics    *metrics.Collector
	Now        func() time.Time
}

// State is a point-in-time copy of what the console shows.
type State struct {
	Open   bool
	Job    *domain.JobHandle
	Status *domain.StatusSnapshot
	Logs   []domain.LogEntry
}

// Console is the single-owner slot for the active job.
//
// Lock order: mu, then the poller handle's delivery lock, then stateMu, then
// the log's own lock. Poll events and dispatcher records only take stateMu.
type Console struct {
	builder    Submitter
	poller     *poller.Poller
	dispatcher Dispatcher
	logger     *infra.Logger
	metrics    *metrics.Collector
	now        func() time.Time
	log        *translog.Log

	mu      sync.Mutex
	issued  uint64
	adopted uint64
	polling *poller.Handle
	closed  bool

	stateMu  sync.RWMutex
	open     bool
	active   *domain.JobHandle
	status   *domain.StatusSnapshot
	terminal bool
}

func New(opts Options) (*Console, error) {
	if opts.Builder == nil {
		return nil, errors.New("console: builder is required")
	}
	if opts.Poller == nil {
		return nil, errors.New("console: poller is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Console{
		builder:    opts.Builder,
		poller:     opts.Poller,
		dispatcher: opts.Dispatcher,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
		log:        translog.New(now),
	}, nil
}

// Submit creates a job and makes it the active one. When a later Submit has
// already taken the slot by the time the backend answers, the new job is
// left untracked and ErrSuperseded is returned with its handle.
func (c *Console) Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.JobHandle{}, ErrClosed
	}
	c.issued++
	ticket := c.issued
	c.mu.Unlock()

	handle, err := c.builder.Submit(ctx, req)
	if err != nil {
		return domain.JobHandle{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return handle, ErrClosed
	}
	if ticket < c.adopted {
		c.logger.Warn().Str("job_id", handle.JobID).Msg("console: submission superseded before it became active")
		return handle, domain.ErrSuperseded
	}
	c.adoptLocked(handle, ticket)
	return handle, nil
}

// Adopt makes an existing job the active one, stopping whatever was polled
// before.
func (c *Console) Adopt(handle domain.JobHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.issued++
	c.adoptLocked(handle, c.issued)
	return nil
}

func (c *Console) adoptLocked(handle domain.JobHandle, ticket uint64) {
	// Stop returns only after any in-progress delivery for the old job has
	// finished, so nothing of it reaches the reset log.
	c.polling.Stop()

	c.stateMu.Lock()
	c.log.Reset(handle.JobID)
	active := handle
	c.active = &active
	c.status = nil
	c.terminal = false
	c.open = true
	c.stateMu.Unlock()

	c.adopted = ticket
	c.polling = c.poller.Start(handle, func(ev poller.Event) {
		c.onEvent(handle, ev)
	})
	c.logger.Info().Str("job_id", handle.JobID).Msg("console: job active")
}

func (c *Console) onEvent(handle domain.JobHandle, ev poller.Event) {
	c.stateMu.Lock()
	if c.active == nil || c.active.JobID != handle.JobID || c.terminal {
		c.stateMu.Unlock()
		return
	}
	if ev.Err != nil {
		c.log.Append(translog.PollingErrorText)
		c.stateMu.Unlock()
		return
	}
	if ev.Snapshot == nil {
		c.stateMu.Unlock()
		return
	}

	snap := *ev.Snapshot
	c.status = &snap
	c.log.Observe(snap)
	if snap.Status.Terminal() {
		c.terminal = true
		if snap.Status == domain.JobStatusFailed {
			c.log.Append(translog.FailureText(snap.Error))
		}
	}
	c.stateMu.Unlock()

	c.metrics.RecordSnapshot(string(snap.Status))
	if !snap.Status.Terminal() {
		return
	}
	if !handle.SubmittedAt.IsZero() {
		c.metrics.ObserveJobDuration(string(snap.Status), c.now().Sub(handle.SubmittedAt))
	}
	if snap.Status == domain.JobStatusFailed {
		failure := &domain.JobFailure{JobID: handle.JobID, Reason: snap.Error}
		c.logger.Warn().Err(failure).Str("job_id", handle.JobID).Msg("console: job failed")
		return
	}
	c.logger.Info().Str("job_id", handle.JobID).Strs("result", snap.Result).Msg("console: job completed")
	if c.dispatcher != nil {
		c.dispatcher.OnTerminal(handle, snap)
	}
}

// Record appends a line to the active job's log. Lines for any other job are
// dropped.
func (c *Console) Record(jobID, text string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.active == nil || c.active.JobID != jobID {
		c.logger.Debug().Str("job_id", jobID).Str("text", text).Msg("console: dropped line for inactive job")
		return
	}
	c.log.Append(text)
}

// State returns a copy of the console state including every log entry.
func (c *Console) State() State {
	return c.LogsSince(0)
}

// LogsSince returns the console state with only entries newer than seq.
func (c *Console) LogsSince(seq int64) State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	st := State{Open: c.open, Logs: c.log.Since(seq)}
	if c.active != nil {
		job := *c.active
		st.Job = &job
	}
	if c.status != nil {
		snap := *c.status
		st.Status = &snap
	}
	return st
}

// Toggle flips console visibility and returns the new value.
func (c *Console) Toggle() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.open = !c.open
	return c.open
}

// Wait blocks until the active job's poll loop has ended and any completion
// work it triggered has finished.
func (c *Console) Wait(ctx context.Context) error {
	c.mu.Lock()
	h := c.polling
	c.mu.Unlock()
	if err := h.Wait(ctx); err != nil {
		return err
	}
	if c.dispatcher == nil {
		return nil
	}
	return c.dispatcher.Wait(ctx)
}

// Close stops polling and drains in-flight completion work.
func (c *Console) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.polling.Stop()
	c.mu.Unlock()
	if c.dispatcher == nil {
		return nil
	}
	return c.dispatcher.Wait(ctx)
}
