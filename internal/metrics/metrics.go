// Package metrics holds the Prometheus collectors for the onboarding service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onboarding"

// Submission outcomes.
const (
	OutcomeAdvanced   = "advanced"
	OutcomeCompleted  = "completed"
	OutcomeOutOfSync  = "out_of_sync"
	OutcomeInvalid    = "invalid_transition"
	OutcomeConflict   = "conflict"
	OutcomeBadRequest = "bad_request"
	OutcomeError      = "error"
)

var (
	// submissionsTotal counts answer submissions by step and outcome.
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of onboarding answer submissions",
		},
		[]string{"step", "outcome"},
	)

	// stepsSkippedTotal counts steps bypassed by the skip resolver.
	stepsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_skipped_total",
			Help:      "Total number of steps bypassed because they were redundant",
		},
		[]string{"step"},
	)

	detectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Duration of financial signal detection in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"provider", "status"}, // status: success, error, timeout, cached
	)

	answersRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_recorded_total",
			Help:      "Total number of answers written to the answer log",
		},
		[]string{"path", "status"}, // path: direct, queued, worker
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	allMetrics = []prometheus.Collector{
		submissionsTotal,
		stepsSkippedTotal,
		detectionDuration,
		answersRecordedTotal,
		httpRequestDuration,
	}
)

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
)

// Registry returns the process-wide registry holding every onboarding
// collector plus the Go runtime and process collectors.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		for _, c := range allMetrics {
			registry.MustRegister(c)
		}
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func RecordSubmission(step, outcome string) {
	submissionsTotal.WithLabelValues(step, outcome).Inc()
}

func RecordSkipped(step string) {
	stepsSkippedTotal.WithLabelValues(step).Inc()
}

func RecordDetection(provider, status string, d time.Duration) {
	detectionDuration.WithLabelValues(provider, status).Observe(d.Seconds())
}

func RecordAnswer(path, status string) {
	answersRecordedTotal.WithLabelValues(path, status).Inc()
}

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
