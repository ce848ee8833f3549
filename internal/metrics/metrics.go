// Package metrics exposes Prometheus instrumentation for the generation console.
//
// Counters:
//   - studio_submissions_total{outcome}: submit attempts (accepted, invalid, rejected)
//   - studio_polls_total{outcome}: status queries (ok, error, discarded)
//   - studio_snapshots_total{status}: snapshots delivered to the console
//   - studio_cloud_sync_total{result}: completion side effects (ok, failed, skipped)
//
// Gauges:
//   - studio_active_pollers: poll loops currently running
//
// Histograms:
//   - studio_job_duration_seconds: submit-to-terminal wall time, by terminal status
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeAccepted  = "accepted"
	OutcomeInvalid   = "invalid"
	OutcomeRejected  = "rejected"
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Collector holds the console metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	submissions   *prometheus.CounterVec
	polls         *prometheus.CounterVec
	snapshots     *prometheus.CounterVec
	cloudSync     *prometheus.CounterVec
	activePollers prometheus.Gauge
	jobDuration   *prometheus.HistogramVec
}

// NewCollector creates and registers the console metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_submissions_total",
			Help: "Generation submit attempts by outcome",
		}, []string{"outcome"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_polls_total",
			Help: "Status queries by outcome",
		}, []string{"outcome"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_snapshots_total",
			Help: "Status snapshots delivered to the console by job status",
		}, []string{"status"}),
		cloudSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_cloud_sync_total",
			Help: "Completion persistence side effects by result",
		}, []string{"result"}),
		activePollers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studio_active_pollers",
			Help: "Poll loops currently running",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studio_job_duration_seconds",
			Help:    "Wall time from submission to terminal status",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 900},
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(c.submissions, c.polls, c.snapshots, c.cloudSync, c.activePollers, c.jobDuration)
	}
	return c
}

func (c *Collector) RecordSubmission(outcome string) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordPoll(outcome string) {
	if c == nil {
		return
	}
	c.polls.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSnapshot(status string) {
	if c == nil {
		return
	}
	c.snapshots.WithLabelValues(status).Inc()
}

func (c *Collector) RecordCloudSync(result string) {
	if c == nil {
		return
	}
	c.cloudSync.WithLabelValues(result).Inc()
}

func (c *Collector) PollerStarted() {
	if c == nil {
		return
	}
	c.activePollers.Inc()
}

func (c *Collector) PollerStopped() {
	if c == nil {
		return
	}
	c.activePollers.Dec()
}

func (c *Collector) ObserveJobDuration(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobDuration.WithLabelValues(status).Observe(d.Seconds())
}
