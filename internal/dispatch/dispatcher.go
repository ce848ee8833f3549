// Package dispatch fires the post-completion side effect of a generation job.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/metrics"
	"studio/internal/translog"
)

const (
	// DefaultTimeout bounds a single persistence run.
	DefaultTimeout = time.Minute
	// DefaultFiredLimit bounds how many job ids are remembered for deduplication.
	DefaultFiredLimit = 4096
)

// Persister performs the durable persistence of a finished artifact.
type Persister interface {
	Persist(ctx context.Context, handle domain.JobHandle, filename string) error
}

// Recorder receives the dispatcher's own log lines, scoped to a job.
type Recorder interface {
	Record(jobID, text string)
}

// Options configures a Dispatcher.
type Options struct {
	Persister Persister
	Recorder  Recorder
	Logger    *infra.Logger
	Metrics   *metrics.Collector
	Timeout   time.Duration
	// FiredLimit caps the remembered job ids; the oldest are forgotten first.
	FiredLimit int
}

// Dispatcher runs the persister at most once per job handle when the job
// completes with at least one artifact. Persistence runs out of band and its
// outcome never changes the job's status.
//
// Without a persister the sync lines are still written and the run counts as
// skipped. Deduplication covers the most recent FiredLimit job ids.
type Dispatcher struct {
	persister Persister
	recorder  Recorder
	logger    *infra.Logger
	metrics   *metrics.Collector
	timeout   time.Duration
	limit     int

	mu    sync.Mutex
	fired map[string]struct{}
	order []string
	wg    sync.WaitGroup
}

func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := opts.FiredLimit
	if limit <= 0 {
		limit = DefaultFiredLimit
	}
	return &Dispatcher{
		persister: opts.Persister,
		recorder:  opts.Recorder,
		logger:    logger,
		metrics:   opts.Metrics,
		timeout:   timeout,
		limit:     limit,
		fired:     make(map[string]struct{}),
	}
}

// OnTerminal inspects a terminal snapshot and starts persistence when it
// applies. It reports whether a persistence run was started by this call.
func (d *Dispatcher) OnTerminal(handle domain.JobHandle, snap domain.StatusSnapshot) bool {
	if snap.Status != domain.JobStatusCompleted {
		return false
	}
	filename, ok := snap.FirstResult()
	if !ok {
		return false
	}
	d.mu.Lock()
	if _, done := d.fired[handle.JobID]; done {
		d.mu.Unlock()
		d.logger.Debug().Str("job_id", handle.JobID).Msg("dispatch: duplicate terminal snapshot ignored")
		return false
	}
	d.remember(handle.JobID)
	d.wg.Add(1)
	d.mu.Unlock()

	d.record(handle.JobID, translog.SyncStartedText)
	go d.run(handle, filename)
	return true
}

func (d *Dispatcher) run(handle domain.JobHandle, filename string) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	logger := d.logger.With().Str("job_id", handle.JobID).Str("filename", filename).Logger()
	if d.persister == nil {
		d.metrics.RecordCloudSync(metrics.OutcomeSkipped)
		logger.Debug().Msg("dispatch: cloud sync not configured")
		d.record(handle.JobID, translog.SyncSucceededText)
		return
	}
	start := time.Now()
	err := d.persister.Persist(ctx, handle, filename)
	if err != nil {
		var pErr *domain.PersistenceError
		if !errors.As(err, &pErr) {
			err = &domain.PersistenceError{JobID: handle.JobID, Stage: "persist", Err: err}
		}
		d.metrics.RecordCloudSync(metrics.OutcomeFailed)
		logger.Error().Err(err).Msg("dispatch: cloud sync failed")
		d.record(handle.JobID, translog.SyncFailedText)
		return
	}
	d.metrics.RecordCloudSync(metrics.OutcomeOK)
	logger.Info().Dur("elapsed", time.Since(start)).Msg("dispatch: cloud sync ok")
	d.record(handle.JobID, translog.SyncSucceededText)
}

// remember marks jobID as fired and evicts the oldest entry past the limit.
// Callers hold d.mu.
func (d *Dispatcher) remember(jobID string) {
	d.fired[jobID] = struct{}{}
	d.order = append(d.order, jobID)
	if len(d.order) > d.limit {
		delete(d.fired, d.order[0])
		d.order = d.order[1:]
	}
}

// Fired reports whether persistence was already started for jobID.
func (d *Dispatcher) Fired(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.fired[jobID]
	return ok
}

// Wait blocks until every started persistence run has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BindRecorder sets the recorder after construction, for owners that are
// themselves built with the dispatcher.
func (d *Dispatcher) BindRecorder(r Recorder) {
	d.mu.Lock()
	d.recorder = r
	d.mu.Unlock()
}

func (d *Dispatcher) record(jobID, text string) {
	d.mu.Lock()
	r := d.recorder
	d.mu.Unlock()
	if r != nil {
		r.Record(jobID, text)
	}
}
