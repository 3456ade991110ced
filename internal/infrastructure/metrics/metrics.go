// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chathistory",
			Subsystem: "history_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chathistory",
			Subsystem: "history_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Domain counters
	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chathistory",
			Subsystem: "history_api",
			Name:      "conversations_created_total",
			Help:      "Total conversations created",
		},
	)

	MessagesAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chathistory",
			Subsystem: "history_api",
			Name:      "messages_appended_total",
			Help:      "Total messages appended, by role",
		},
		[]string{"role"},
	)

	TokensAccumulatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chathistory",
			Subsystem: "history_api",
			Name:      "tokens_accumulated_total",
			Help:      "Total tokens accumulated onto conversations",
		},
	)

	// Auth requests
	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chathistory",
			Subsystem: "history_api",
			Name:      "auth_requests_total",
			Help:      "Total authentication attempts",
		},
		[]string{"status"},
	)

	// Token count reconciliation
	TokenRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chathistory",
			Subsystem: "history_api",
			Name:      "token_repairs_total",
			Help:      "Conversations whose token count was repaired by reconciliation",
		},
	)
)

// RecordRequest records an HTTP request outcome.
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordMessageAppended records a successful append with its token usage.
func RecordMessageAppended(role string, totalTokens int) {
	MessagesAppendedTotal.WithLabelValues(role).Inc()
	if totalTokens > 0 {
		TokensAccumulatedTotal.Add(float64(totalTokens))
	}
}
