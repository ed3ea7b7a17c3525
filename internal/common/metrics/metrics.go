// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PushMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_messages_received_total",
			Help: "Total number of push messages received by delivery path",
		},
		[]string{"path"},
	)

	PushMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_messages_dropped_total",
			Help: "Total number of push messages dropped by reason",
		},
		[]string{"reason"},
	)

	DeviceRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_registrations_total",
			Help: "Total number of device registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Total number of notification feed fetches by outcome",
		},
		[]string{"outcome"},
	)

	FeedUnread = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_unread_count",
			Help: "Current unread notification count",
		},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "backend_call_duration_seconds",
			Help: "Duration of backend REST calls in seconds",
		},
		[]string{"endpoint"},
	)
)
