package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/metrics"
	"studio/internal/translog"
)

type countingPersister struct {
	calls   int32
	err     error
	release chan struct{}
	mu      sync.Mutex
	files   []string
}

func (p *countingPersister) Persist(ctx context.Context, handle domain.JobHandle, filename string) error {
	atomic.AddInt32(&p.calls, 1)
	p.mu.Lock()
	p.files = append(p.files, filename)
	p.mu.Unlock()
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) Record(jobID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, jobID+": "+text)
}

func (r *lineRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func completed(jobID string, result ...string) domain.StatusSnapshot {
	return domain.StatusSnapshot{JobID: jobID, Status: domain.JobStatusCompleted, Result: result}
}

func waitIdle(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDispatcherPersistsFirstResult(t *testing.T) {
	persister := &countingPersister{}
	rec := &lineRecorder{}
	d := New(Options{Persister: persister, Recorder: rec})

	fired := d.OnTerminal(domain.JobHandle{JobID: "job-1"}, completed("job-1", "track_001.wav", "track_002.wav"))
	require.True(t, fired)
	waitIdle(t, d)

	assert.Equal(t, int32(1), atomic.LoadInt32(&persister.calls))
	assert.Equal(t, []string{"track_001.wav"}, persister.files)
	assert.Equal(t, []string{
		"job-1: " + translog.SyncStartedText,
		"job-1: " + translog.SyncSucceededText,
	}, rec.Lines())
	assert.True(t, d.Fired("job-1"))
}

func TestDispatcherAtMostOncePerHandle(t *testing.T) {
	persister := &countingPersister{}
	d := New(Options{Persister: persister})
	handle := domain.JobHandle{JobID: "job-2"}

	var wg sync.WaitGroup
	var started int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// distinct snapshot values for the same handle
			if d.OnTerminal(handle, completed("job-2", "a.wav")) {
				atomic.AddInt32(&started, 1)
			}
		}()
	}
	wg.Wait()
	waitIdle(t, d)

	assert.Equal(t, int32(1), atomic.LoadInt32(&started))
	assert.Equal(t, int32(1), atomic.LoadInt32(&persister.calls))
}

func TestDispatcherIgnoresNonCompletion(t *testing.T) {
	persister := &countingPersister{}
	d := New(Options{Persister: persister})

	assert.False(t, d.OnTerminal(domain.JobHandle{JobID: "f"}, domain.StatusSnapshot{JobID: "f", Status: domain.JobStatusFailed, Error: "OOM"}))
	assert.False(t, d.OnTerminal(domain.JobHandle{JobID: "e"}, completed("e")))
	assert.False(t, d.OnTerminal(domain.JobHandle{JobID: "p"}, domain.StatusSnapshot{JobID: "p", Status: domain.JobStatusProcessing, Result: []string{"x"}}))
	waitIdle(t, d)

	assert.Equal(t, int32(0), atomic.LoadInt32(&persister.calls))
	assert.False(t, d.Fired("f"))
}

func TestDispatcherFailureIsLoggedNotRaised(t *testing.T) {
	reg := prometheus.NewRegistry()
	persister := &countingPersister{err: errors.New("bucket not found")}
	rec := &lineRecorder{}
	d := New(Options{Persister: persister, Recorder: rec, Metrics: metrics.NewCollector(reg)})

	require.True(t, d.OnTerminal(domain.JobHandle{JobID: "job-3"}, completed("job-3", "t.wav")))
	waitIdle(t, d)

	assert.Equal(t, []string{
		"job-3: " + translog.SyncStartedText,
		"job-3: " + translog.SyncFailedText,
	}, rec.Lines())
	// a second delivery after a failure still does not retry
	assert.False(t, d.OnTerminal(domain.JobHandle{JobID: "job-3"}, completed("job-3", "t.wav")))
}

func TestDispatcherDoesNotBlockCaller(t *testing.T) {
	persister := &countingPersister{release: make(chan struct{})}
	d := New(Options{Persister: persister})

	done := make(chan struct{})
	go func() {
		d.OnTerminal(domain.JobHandle{JobID: "job-4"}, completed("job-4", "t.wav"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnTerminal blocked on persistence")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(persister.release)
	waitIdle(t, d)
}

func TestDispatcherWithoutPersisterStillWritesSyncLines(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	rec := &lineRecorder{}
	d := New(Options{Recorder: rec, Metrics: collector})

	require.True(t, d.OnTerminal(domain.JobHandle{JobID: "job-5"}, completed("job-5", "t.wav")))
	waitIdle(t, d)

	assert.Equal(t, []string{
		"job-5: " + translog.SyncStartedText,
		"job-5: " + translog.SyncSucceededText,
	}, rec.Lines())
	assert.False(t, d.OnTerminal(domain.JobHandle{JobID: "job-5"}, completed("job-5", "t.wav")))
}

func TestDispatcherForgetsOldestPastLimit(t *testing.T) {
	persister := &countingPersister{}
	d := New(Options{Persister: persister, FiredLimit: 2})

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, d.OnTerminal(domain.JobHandle{JobID: id}, completed(id, "t.wav")))
	}
	waitIdle(t, d)

	assert.False(t, d.Fired("a"))
	assert.True(t, d.Fired("b"))
	assert.True(t, d.Fired("c"))
	assert.False(t, d.OnTerminal(domain.JobHandle{JobID: "c"}, completed("c", "t.wav")))
	assert.Equal(t, int32(3), atomic.LoadInt32(&persister.calls))
}

func TestDispatcherBindRecorder(t *testing.T) {
	rec := &lineRecorder{}
	d := New(Options{Persister: &countingPersister{}})
	d.BindRecorder(rec)

	require.True(t, d.OnTerminal(domain.JobHandle{JobID: "job-6"}, completed("job-6", "t.wav")))
	waitIdle(t, d)
	assert.Len(t, rec.Lines(), 2)
}
