package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	MessagesStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_staged_total",
			Help: "Total messages staged in the cache",
		},
	)

	MessagesDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_drained_total",
			Help: "Total staged messages persisted to durable storage",
		},
	)

	DrainFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_drain_failures_total",
			Help: "Total drain batches that failed to commit",
		},
	)

	// Hub metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_connections",
			Help: "Live websocket connections across all chats",
		},
	)

	MessagesBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_broadcast_total",
			Help: "Total events fanned out to chat groups",
		},
	)

	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_connections_rejected_total",
			Help: "Connections closed before joining a chat group",
		},
		[]string{"reason"}, // "unauthenticated", "not_found", "not_participant"
	)

	// Scheduler metrics
	DrainRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_drain_runs_total",
			Help: "Persistence job executions",
		},
		[]string{"trigger"}, // "delayed" or "sweep"
	)
)
