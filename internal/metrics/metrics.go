// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensReceivedTotal counts completion tokens received from TRBs.
	TokensReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dfo_tokens_received_total",
			Help: "Total number of trigger decision tokens received",
		},
	)

	// DecisionsSentTotal counts decisions forwarded to TRBs.
	DecisionsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dfo_decisions_sent_total",
			Help: "Total number of trigger decisions forwarded to TRB endpoints",
		},
	)

	// DecisionsReceivedTotal counts decisions received from the trigger.
	DecisionsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dfo_decisions_received_total",
			Help: "Total number of trigger decisions received from the trigger",
		},
	)

	// WaitingForDecisionSeconds accumulates idle time between decisions.
	WaitingForDecisionSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dfo_waiting_for_decision_seconds_total",
			Help: "Cumulative time spent waiting for the next trigger decision",
		},
	)

	// DecidingDestinationSeconds accumulates slot-selection time.
	DecidingDestinationSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dfo_deciding_destination_seconds_total",
			Help: "Cumulative time spent selecting a destination endpoint",
		},
	)

	// ForwardingDecisionSeconds accumulates dispatch time.
	ForwardingDecisionSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dfo_forwarding_decision_seconds_total",
			Help: "Cumulative time spent forwarding decisions to endpoints",
		},
	)

	// WaitingForTokenSeconds accumulates idle time between tokens.
	WaitingForTokenSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dfo_waiting_for_token_seconds_total",
			Help: "Cumulative time spent waiting for the next completion token",
		},
	)

	// ProcessingTokenSeconds accumulates token handling time.
	ProcessingTokenSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dfo_processing_token_seconds_total",
			Help: "Cumulative time spent processing completion tokens",
		},
	)

	// TriggerReceivedTotal counts received decisions per trigger type.
	TriggerReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dfo_trigger_received_total",
			Help: "Trigger decisions received, by trigger candidate type",
		},
		[]string{"type"},
	)

	// TriggerCompletedTotal counts completed decisions per trigger type.
	TriggerCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dfo_trigger_completed_total",
			Help: "Trigger decisions completed, by trigger candidate type",
		},
		[]string{"type"},
	)

	// EndpointOccupancy tracks outstanding assignments per endpoint.
	EndpointOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dfo_endpoint_occupancy",
			Help: "Outstanding trigger decisions assigned to the endpoint",
		},
		[]string{"connection"},
	)

	// EndpointInError tracks the endpoint error flag (1=in error).
	EndpointInError = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dfo_endpoint_in_error",
			Help: "Whether the endpoint is currently flagged in error",
		},
		[]string{"connection"},
	)

	// EndpointMinCompleteTime is the minimum completion time since the last
	// publication, in microseconds.
	EndpointMinCompleteTime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dfo_endpoint_min_complete_time_us",
			Help: "Minimum trigger record completion time since last publication",
		},
		[]string{"connection"},
	)

	// EndpointMaxCompleteTime is the maximum completion time since the last
	// publication, in microseconds.
	EndpointMaxCompleteTime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dfo_endpoint_max_complete_time_us",
			Help: "Maximum trigger record completion time since last publication",
		},
		[]string{"connection"},
	)

	// EndpointAverageCompleteTime is the average completion time since the
	// last publication, in microseconds.
	EndpointAverageCompleteTime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dfo_endpoint_average_complete_time_us",
			Help: "Average trigger record completion time since last publication",
		},
		[]string{"connection"},
	)
)
