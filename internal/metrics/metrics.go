// Package metrics exposes Prometheus counters for the chat core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_messages_sent_total",
			Help: "Messages accepted and persisted",
		},
		[]string{"conversation_type"}, // "private" or "group"
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_events_delivered_total",
			Help: "Events pushed to individual connections",
		},
		[]string{"event"},
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatcore_delivery_failures_total",
			Help: "Pushes that failed or timed out and evicted the connection",
		},
	)

	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_presence_transitions_total",
			Help: "Users going online or offline",
		},
		[]string{"direction"}, // "online" or "offline"
	)

	ReadReceipts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatcore_read_receipts_total",
			Help: "Read flags flipped by recipients",
		},
	)
)
