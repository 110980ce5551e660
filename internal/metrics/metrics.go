// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_active_connections",
		Help: "Number of active WebSocket sessions",
	})

	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snake_total_connections",
		Help: "Total number of WebSocket sessions established",
	})

	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snake_messages_received_total",
		Help: "Inbound messages by command type",
	}, []string{"type"})

	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snake_broadcasts_sent_total",
		Help: "Lobby broadcasts by message type",
	}, []string{"type"})

	ActiveLobbies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_active_lobbies",
		Help: "Number of lobbies currently registered",
	})

	ActiveGames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_active_games",
		Help: "Number of lobbies currently in the playing state",
	})

	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snake_messages_dropped_total",
		Help: "Outbound messages dropped because a session sink was full",
	})

	IdleEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snake_idle_evictions_total",
		Help: "Sessions evicted by the idle sweep",
	})

	TicksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snake_ticks_processed_total",
		Help: "Simulation ticks executed across all lobbies",
	})
)
