// Package metrics exposes the Prometheus gauges and counters the admin
// HTTP surface publishes at /metrics.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// mergesInFlight tracks merge jobs currently running.
	mergesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chmerge_merges_in_flight",
		Help: "Number of merge jobs currently running",
	})

	// apiRequestsTotal tracks total admin API requests by method, path and status.
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chmerge_admin_api_requests_total",
		Help: "Total admin API requests by method, path and status",
	}, []string{"method", "path", "status"})

	// mergeJobsTotal tracks completed merge jobs by terminal state.
	mergeJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chmerge_merge_jobs_total",
		Help: "Total merge jobs by terminal state",
	}, []string{"state"})

	// segmentsEmittedTotal tracks diff segments emitted by label.
	segmentsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chmerge_segments_emitted_total",
		Help: "Total diff segments emitted by label",
	}, []string{"label"})

	// filesCopiedTotal tracks files copied during merge execution.
	filesCopiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chmerge_files_copied_total",
		Help: "Total files copied while applying merge decisions",
	})

	// mergeErrorsTotal tracks merge job failures.
	mergeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chmerge_merge_errors_total",
		Help: "Total merge job failures",
	})
)

// SetMergesInFlight sets the gauge of currently running merge jobs.
func SetMergesInFlight(count int) {
	mergesInFlight.Set(float64(count))
}

// IncrementAPIRequest increments the admin API request counter.
func IncrementAPIRequest(method, path, status string) {
	apiRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementMergeJob increments the completed-merge-job counter for a
// terminal state ("completed", "failed", "cancelled").
func IncrementMergeJob(state string) {
	mergeJobsTotal.WithLabelValues(state).Inc()
}

// IncrementSegmentsEmitted adds to the diff-segment counter for a label
// ("match", "retain", "add", "replace").
func IncrementSegmentsEmitted(label string, count int) {
	segmentsEmittedTotal.WithLabelValues(label).Add(float64(count))
}

// AddFilesCopied adds to the total files-copied counter.
func AddFilesCopied(count int) {
	filesCopiedTotal.Add(float64(count))
}

// IncrementMergeError increments the merge-error counter.
func IncrementMergeError() {
	mergeErrorsTotal.Inc()
}

// Handler returns the Prometheus metrics handler for Fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
