// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route pattern and status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offers",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by route pattern
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "offers",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// OfferMutations counts orchestrator outcomes by operation and result
	OfferMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offers",
		Name:      "mutations_total",
		Help:      "Offer mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// OfferRetries counts transaction retries after transient storage errors
	OfferRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offers",
		Name:      "transaction_retries_total",
		Help:      "Transaction attempts retried after a transient storage error.",
	}, []string{"operation"})

	// StageTransitions counts committed stage changes
	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offers",
		Name:      "stage_transitions_total",
		Help:      "Committed offer stage transitions.",
	}, []string{"from", "to"})

	// ActivityLogs counts written activity log entries by action
	ActivityLogs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offers",
		Name:      "activity_logs_total",
		Help:      "Activity log entries written.",
	}, []string{"action"})

	// ReportCache counts report cache lookups by result
	ReportCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offers",
		Name:      "report_cache_total",
		Help:      "Report cache lookups by result (hit, miss).",
	}, []string{"report", "result"})

	// JobRuns counts scheduled job executions by job and outcome
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "offers",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and outcome.",
	}, []string{"job", "outcome"})
)
