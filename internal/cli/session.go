package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"studio/internal/cloudsync"
	"studio/internal/console"
	"studio/internal/dispatch"
	"studio/internal/domain"
	"studio/internal/generation"
	"studio/internal/infra"
	"studio/internal/poller"
	"studio/internal/providers/acestep"
	"studio/internal/storage"
)

const followRefresh = 200 * time.Millisecond

// session is a console hosted in-process for one CLI invocation.
type session struct {
	console *console.Console
	cloud   *cloudsync.Wiring
	timeout time.Duration
}

func openSession(ctx context.Context, cfg *infra.Config, backend *acestep.Client, logger infra.Logger) (*session, error) {
	builder, err := generation.NewBuilder(generation.Options{Backend: backend, Logger: &logger})
	if err != nil {
		return nil, err
	}
	p, err := poller.New(poller.Options{Source: backend, Interval: cfg.PollInterval, Logger: &logger})
	if err != nil {
		return nil, err
	}

	s := &session{timeout: cfg.CloudSyncTimeout}
	dispatchOpts := dispatch.Options{Logger: &logger, Timeout: cfg.CloudSyncTimeout}
	if cfg.CloudSyncEnabled() {
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return nil, err
		}
		s.cloud, err = cloudsync.Setup(ctx, cfg, backend, store, logger)
		if err != nil {
			return nil, err
		}
		if s.cloud != nil {
			dispatchOpts.Persister = s.cloud.Syncer
		}
	}
	d := dispatch.New(dispatchOpts)

	s.console, err = console.New(console.Options{Builder: builder, Poller: p, Dispatcher: d, Logger: &logger})
	if err != nil {
		s.close()
		return nil, err
	}
	d.BindRecorder(s.console)
	return s, nil
}

func (s *session) close() {
	if s.console != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		_ = s.console.Close(ctx)
		cancel()
	}
	if s.cloud != nil {
		s.cloud.Close()
	}
}

// followConsole prints new log lines until the active job is finished and its
// completion work has drained. A failed job is returned as an error.
func followConsole(ctx context.Context, out io.Writer, c *console.Console) error {
	done := make(chan error, 1)
	go func() { done <- c.Wait(ctx) }()

	ticker := time.NewTicker(followRefresh)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case err := <-done:
			st := c.LogsSince(last)
			printEntries(out, st.Logs)
			if err != nil {
				return err
			}
			return finish(out, st)
		case <-ticker.C:
			st := c.LogsSince(last)
			if n := len(st.Logs); n > 0 {
				printEntries(out, st.Logs)
				last = st.Logs[n-1].Seq
			}
		}
	}
}

func finish(out io.Writer, st console.State) error {
	sum := console.Summarize(st)
	if sum.Banner != "" {
		fmt.Fprintf(out, "%s: %s\n", sum.Banner, sum.BannerDetail)
	}
	if st.Status != nil && st.Status.Status == domain.JobStatusFailed {
		return &domain.JobFailure{JobID: st.Status.JobID, Reason: st.Status.Error}
	}
	return nil
}

func printEntries(out io.Writer, entries []domain.LogEntry) {
	for _, e := range entries {
		fmt.Fprintf(out, "[%s] %s\n", e.Timestamp.Local().Format("15:04:05"), e.Text)
	}
}

func printSnapshot(out io.Writer, snap domain.StatusSnapshot) {
	sum := console.Summarize(console.State{Status: &snap})
	fmt.Fprintf(out, "%s %s %d%%", snap.JobID, sum.Badge, sum.Progress)
	if snap.Message != "" {
		fmt.Fprintf(out, " %s", snap.Message)
	}
	fmt.Fprintln(out)
	if first, ok := snap.FirstResult(); ok {
		fmt.Fprintf(out, "result: %s\n", first)
	}
	if sum.Banner != "" {
		fmt.Fprintf(out, "%s: %s\n", sum.Banner, sum.BannerDetail)
	}
}
