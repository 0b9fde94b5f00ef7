// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring codesmith.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for generation latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// ExecutionBuckets covers sandbox runs from 10ms up to the largest
// practical timeout.
var ExecutionBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesmith_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codesmith_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// InflightRequests tracks HTTP requests currently being served.
	InflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codesmith_inflight_requests",
			Help: "In-flight requests",
		},
	)

	// GenerationsTotal counts generation backend calls by outcome. The
	// status label is "success" or the error kind.
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesmith_generations_total",
			Help: "Generation backend calls",
		},
		[]string{"backend", "model", "status"},
	)

	// GenerationLatency records generation backend latency in seconds.
	GenerationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codesmith_generation_latency_seconds",
			Help:    "Generation backend latency",
			Buckets: LLMBuckets,
		},
		[]string{"backend", "model"},
	)

	// ExecutionsTotal counts sandbox runs by language and terminal state.
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesmith_executions_total",
			Help: "Sandbox executions",
		},
		[]string{"language", "state"},
	)

	// ExecutionDuration records sandbox wall-clock run time in seconds.
	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codesmith_execution_duration_seconds",
			Help:    "Sandbox execution duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"language"},
	)

	// SandboxInflight tracks sandbox runs currently holding a slot.
	SandboxInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codesmith_sandbox_inflight",
			Help: "Sandbox runs in progress",
		},
	)

	// ArtifactWritesTotal counts artifact persist attempts by store type and outcome.
	ArtifactWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesmith_artifact_writes_total",
			Help: "Artifact writes",
		},
		[]string{"store", "status"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesmith_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InflightRequests,
		GenerationsTotal,
		GenerationLatency,
		ExecutionsTotal,
		ExecutionDuration,
		SandboxInflight,
		ArtifactWritesTotal,
		RateLimitRejectedTotal,
	)
}

// RecordGeneration records one generation backend call.
func RecordGeneration(backend, model, status string, d time.Duration) {
	GenerationsTotal.WithLabelValues(backend, model, status).Inc()
	GenerationLatency.WithLabelValues(backend, model).Observe(d.Seconds())
}

// RecordExecution records one finished sandbox run.
func RecordExecution(language, state string, d time.Duration) {
	ExecutionsTotal.WithLabelValues(language, state).Inc()
	ExecutionDuration.WithLabelValues(language).Observe(d.Seconds())
}
