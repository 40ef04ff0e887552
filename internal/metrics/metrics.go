// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purchasing_http_request_duration_seconds",
			Help:    "HTTP request duration distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// WorkflowTransitions counts purchase request state changes by target state.
	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_request_transitions_total",
			Help: "Total number of purchase request state transitions",
		},
		[]string{"to_status"},
	)

	ApprovalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_approval_decisions_total",
			Help: "Total number of approval decisions recorded",
		},
		[]string{"outcome"},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_notifications_delivered_total",
			Help: "Notification deliveries by sink and result",
		},
		[]string{"sink", "result"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchasing_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full or closed",
		},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "purchasing_notification_queue_depth",
			Help: "Notifications waiting in the dispatch queue",
		},
	)
)
