// Package metrics holds the process-wide Prometheus collectors. They
// register themselves on the default registry; main exposes them on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks live websocket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatd",
		Name:      "connections_active",
		Help:      "Number of live websocket connections.",
	})

	// MessagesDispatched counts content messages by destination kind.
	MessagesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatd",
		Name:      "messages_dispatched_total",
		Help:      "Content messages persisted and fanned out, by destination.",
	}, []string{"destination"})

	// ScheduledDelivered counts scheduled entries converted to messages.
	ScheduledDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Name:      "scheduled_delivered_total",
		Help:      "Scheduled entries delivered by the engine.",
	})

	// ScheduledFailures counts per-entry delivery failures; the engine
	// retries these on the next tick.
	ScheduledFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Name:      "scheduled_failures_total",
		Help:      "Scheduled entry deliveries that failed and will be retried.",
	})
)
