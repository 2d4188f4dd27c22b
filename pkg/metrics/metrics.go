package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records session logins by method (token|passcode) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelize_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	// GateRejections counts requests refused by the session gate, by reason.
	GateRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelize_gate_rejections_total",
			Help: "Requests rejected by the session access gate",
		},
		[]string{"reason"},
	)

	// ReferralAttributions counts attribution outcomes (created|duplicate|unmatched|error).
	ReferralAttributions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelize_referral_attributions_total",
			Help: "Referral attribution outcomes",
		},
		[]string{"source", "outcome"},
	)

	// WebhookEvents counts booking webhook deliveries by trigger event.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelize_booking_webhook_events_total",
			Help: "Booking webhook events received",
		},
		[]string{"event"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feelize_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
