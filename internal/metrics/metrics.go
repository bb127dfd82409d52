package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "active_connections",
		Help:      "Live websocket connections currently registered.",
	})

	ActiveConversations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "active_conversations",
		Help:      "Conversations with at least one live connection.",
	})

	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "broadcasts_total",
		Help:      "Broadcast calls by event kind.",
	}, []string{"event"})

	DeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "deliveries_total",
		Help:      "Frames handed to connection write queues.",
	})

	SkippedDeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "skipped_deliveries_total",
		Help:      "Frames dropped because a connection was closed or its queue full.",
	})
)
