// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts inbound requests by route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credwatch_http_requests_total",
			Help: "Total number of HTTP requests served (by route and status).",
		},
		[]string{"route", "status"},
	)

	// GraphRequestsTotal counts outbound directory API calls by endpoint and result.
	GraphRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credwatch_graph_requests_total",
			Help: "Total number of Graph API requests (by endpoint and result).",
		},
		[]string{"endpoint", "result"}, // result = "ok" | "error"
	)

	// GraphRequestDuration measures outbound directory API latency.
	GraphRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credwatch_graph_request_duration_seconds",
			Help:    "Duration of Graph API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms → ~20s
		},
		[]string{"endpoint"},
	)

	// CredentialFetchFailures counts per-application credential fetches that
	// degraded to an empty list.
	CredentialFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credwatch_credential_fetch_failures_total",
			Help: "Per-application credential fetches that failed and were degraded to empty.",
		},
		[]string{"kind"}, // secret | certificate
	)

	TokenAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credwatch_token_acquisitions_total",
			Help: "Access token acquisitions by method and result.",
		},
		[]string{"method", "result"}, // method = silent | interactive
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "credwatch_refresh_duration_seconds",
			Help:    "Duration of a full application and credential aggregation.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LastRefreshTimestamp is the unix time of the last successful aggregation.
	LastRefreshTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credwatch_last_refresh_timestamp",
			Help: "Timestamp (unix seconds) of the last successful aggregation.",
		},
	)

	ApplicationsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credwatch_applications",
			Help: "Number of application registrations in the current snapshot.",
		},
	)

	CredentialsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credwatch_credentials",
			Help: "Number of credentials in the current snapshot by kind.",
		},
		[]string{"kind"},
	)
)

// ObserveDuration records the time elapsed since start on o.
func ObserveDuration(o prometheus.Observer, start time.Time) {
	o.Observe(time.Since(start).Seconds())
}

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
