package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment state transitions",
		},
		[]string{"method", "status"},
	)

	ChallengeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_transitions_total",
			Help: "Challenge state machine transitions",
		},
		[]string{"from", "to"},
	)

	MT5RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mt5_requests_total",
			Help: "Outbound MT5 gateway calls",
		},
		[]string{"operation", "outcome"},
	)

	CommissionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commissions_created_total",
			Help: "Commissions derived from paid challenges",
		},
	)

	WorkerItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_items_total",
			Help: "Background worker items processed",
		},
		[]string{"worker", "outcome"},
	)
)
