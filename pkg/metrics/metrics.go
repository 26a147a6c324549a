// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ReplyDuration tracks assistant reply generation time.
	ReplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_reply_duration_seconds",
			Help:    "Assistant reply generation duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
		[]string{"platform"},
	)

	// MessagesTotal tracks total messages stored.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages stored",
		},
		[]string{"sender"},
	)

	// ClientRequestsTotal counts conversation client calls by outcome.
	ClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_requests_total",
			Help: "Conversation client calls by backend, operation and outcome",
		},
		[]string{"backend", "op", "outcome"},
	)

	// ClientRequestDuration tracks conversation client call latency.
	ClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatclient_request_duration_seconds",
			Help:    "Conversation client call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	// SessionSendsTotal counts send attempts accepted by a chat session.
	SessionSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_sends_total",
			Help: "Chat session sends by outcome",
		},
		[]string{"outcome"},
	)

	// RecentsLoadsTotal counts recents page loads.
	RecentsLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recents_loads_total",
			Help: "Recent conversation page loads by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordReply records metrics for an assistant reply.
func RecordReply(provider, status string, duration float64) {
	ReplyDuration.WithLabelValues(provider, status).Observe(duration)
}

// RecordClientCall records metrics for one conversation client call.
func RecordClientCall(backend, op, outcome string, duration float64) {
	ClientRequestsTotal.WithLabelValues(backend, op, outcome).Inc()
	ClientRequestDuration.WithLabelValues(backend, op).Observe(duration)
}
