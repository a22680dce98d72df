package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsabot_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks live sessions (active and not expired).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dsabot_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// ChatMessages counts persisted chat messages by author (user|bot).
	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsabot_chat_messages_total",
			Help: "Total number of chat messages stored",
		},
		[]string{"author"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dsabot_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
