// Package metrics holds the gateway's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeUnknown   = "unknown"
	OutcomeDenied    = "denied"
	OutcomeExhausted = "exhausted"
)

var (
	// Sessions tracks current sessions per status.
	Sessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_sessions",
		Help: "Number of registered sessions by status.",
	}, []string{"status"})

	// InboundMessages counts every inbound message routed by the gateway.
	InboundMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_inbound_messages_total",
		Help: "Inbound messages received across all sessions.",
	})

	// Commands counts handler dispatches by command and outcome.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_commands_total",
		Help: "Command dispatches by command name and outcome.",
	}, []string{"command", "outcome"})

	// AIRequests counts AI model calls by model and outcome.
	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_ai_requests_total",
		Help: "AI model requests by model and outcome.",
	}, []string{"model", "outcome"})

	// Reconnects counts scheduled session restarts.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_reconnects_total",
		Help: "Session restarts scheduled after a non-terminal close.",
	})

	// MemorySwept counts conversation memories removed by retention.
	MemorySwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_memory_swept_total",
		Help: "Conversation memories deleted by the retention sweep.",
	})
)
