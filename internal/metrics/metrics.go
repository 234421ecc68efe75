// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pastportals"

var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Outbound calls to third-party APIs by upstream, operation and outcome.",
	}, []string{"upstream", "operation", "outcome"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of outbound calls to third-party APIs.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 120, 600},
	}, []string{"upstream", "operation"})

	YearSummaries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "year_summaries_total",
		Help:      "Year summaries served, by source (events, fallback, cache).",
	}, []string{"source"})

	JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "video_job_transitions_total",
		Help:      "Video job state transitions.",
	}, []string{"status"})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "video_jobs_in_flight",
		Help:      "Video jobs currently waiting for or running generation.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by method, route and status code.",
	}, []string{"method", "route", "code"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveUpstream records one outbound call.
func ObserveUpstream(upstream, operation, outcome string, started time.Time) {
	UpstreamRequests.WithLabelValues(upstream, operation, outcome).Inc()
	UpstreamLatency.WithLabelValues(upstream, operation).Observe(time.Since(started).Seconds())
}
