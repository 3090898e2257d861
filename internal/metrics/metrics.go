// Package metrics exposes the Prometheus instrumentation for the sync jobs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_job_runs_total",
		Help: "Completed job runs by job name and outcome.",
	}, []string{"job", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_job_duration_seconds",
		Help:    "Job run duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"job"})

	documentWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_document_writes_total",
		Help: "Document writes issued to the store by collection concern and outcome.",
	}, []string{"kind", "status"})
)

// ObserveJob records one finished job run.
func ObserveJob(job string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	jobRuns.WithLabelValues(job, status).Inc()
	jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// CountWrites records the outcome of a bulk write pass.
func CountWrites(kind string, succeeded, failed int) {
	if succeeded > 0 {
		documentWrites.WithLabelValues(kind, "ok").Add(float64(succeeded))
	}
	if failed > 0 {
		documentWrites.WithLabelValues(kind, "failed").Add(float64(failed))
	}
}
