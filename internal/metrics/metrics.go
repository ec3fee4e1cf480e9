// Package metrics exposes Prometheus collectors for batch runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds the collectors recorded by the batch runner and the job registry.
type Metrics struct {
	Runs          *prometheus.CounterVec
	Items         *prometheus.CounterVec
	Pages         *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	LastRunFailed *prometheus.GaugeVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "corebatch_job_runs_total",
			Help: "Total number of job runs by outcome.",
		}, []string{"job", "outcome"}),
		Items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "corebatch_job_items_total",
			Help: "Total number of accounts processed by outcome.",
		}, []string{"job", "outcome"}),
		Pages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "corebatch_job_pages_total",
			Help: "Total number of account pages fetched.",
		}, []string{"job"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corebatch_job_run_duration_seconds",
			Help:    "Duration of job runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		LastRunFailed: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corebatch_job_last_run_failed",
			Help: "1 when the most recent run of the job failed, 0 otherwise.",
		}, []string{"job"}),
	}
}

// Nop returns Metrics registered on a private registry, for callers that do not export them.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// RecordItem counts one processed account.
func (m *Metrics) RecordItem(job, outcome string) {
	m.Items.WithLabelValues(job, outcome).Inc()
}

// RecordPage counts one fetched page.
func (m *Metrics) RecordPage(job string) {
	m.Pages.WithLabelValues(job).Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(job string, success bool, elapsed time.Duration) {
	outcome, failed := OutcomeSuccess, 0.0
	if !success {
		outcome, failed = OutcomeFailed, 1
	}
	m.Runs.WithLabelValues(job, outcome).Inc()
	m.RunDuration.WithLabelValues(job).Observe(elapsed.Seconds())
	m.LastRunFailed.WithLabelValues(job).Set(failed)
}

// RecordSkipped counts a run that was skipped before it started. Duration and the
// last-run gauge keep describing the last run that did start.
func (m *Metrics) RecordSkipped(job string) {
	m.Runs.WithLabelValues(job, OutcomeSkipped).Inc()
}
