package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hexasync_outbox_published_total",
		Help: "Outbox records published and acknowledged by the broker",
	}, []string{"topic"})
	OutboxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hexasync_outbox_publish_retries_total",
		Help: "Failed publish attempts that were retried",
	}, []string{"topic"})
	OutboxFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hexasync_outbox_failed_total",
		Help: "Outbox records moved to failed after exhausting retries",
	}, []string{"topic"})

	ConsumerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hexasync_consumer_events_total",
		Help: "Deliveries handled by consumer groups, by outcome",
	}, []string{"consumer", "outcome"})
	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hexasync_handler_duration_seconds",
		Help:    "Duration of successful handler invocations",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer", "event_type"})

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hexasync_alerts_total",
		Help: "Operator-visible alerts raised by the synchronization layer",
	}, []string{"kind"})
)
