package dispatcher

import (
	"daqflow.xyz/dfo/internal/core"
	"daqflow.xyz/dfo/internal/metrics"
)

// PublishMetrics snapshots and resets the delta counters and feeds them
// into the Prometheus vectors, together with the per-type trigger counters
// and one info block per registered endpoint. The daemon calls this on its
// collection interval.
func (d *Dispatcher) PublishMetrics() {
	metrics.TokensReceivedTotal.Add(float64(d.receivedTokens.Swap(0)))
	metrics.DecisionsSentTotal.Add(float64(d.sentDecisions.Swap(0)))
	metrics.DecisionsReceivedTotal.Add(float64(d.receivedDecisions.Swap(0)))
	metrics.WaitingForDecisionSeconds.Add(float64(d.waitingForDecision.Swap(0)) / 1e6)
	metrics.DecidingDestinationSeconds.Add(float64(d.decidingDest.Swap(0)) / 1e6)
	metrics.ForwardingDecisionSeconds.Add(float64(d.forwardingDecision.Swap(0)) / 1e6)
	metrics.WaitingForTokenSeconds.Add(float64(d.waitingForToken.Swap(0)) / 1e6)
	metrics.ProcessingTokenSeconds.Add(float64(d.processingToken.Swap(0)) / 1e6)

	d.counters.Publish(func(t core.TriggerCandidateType, received, completed uint64) {
		name := t.String()
		metrics.TriggerReceivedTotal.WithLabelValues(name).Add(float64(received))
		metrics.TriggerCompletedTotal.WithLabelValues(name).Add(float64(completed))
	})

	for _, ep := range d.registry.Ordered() {
		info := ep.CollectInfo()
		metrics.EndpointOccupancy.WithLabelValues(info.ConnectionName).Set(float64(info.Occupancy))
		metrics.EndpointMinCompleteTime.WithLabelValues(info.ConnectionName).Set(float64(info.MinCompleteTimeUS))
		metrics.EndpointMaxCompleteTime.WithLabelValues(info.ConnectionName).Set(float64(info.MaxCompleteTimeUS))
		metrics.EndpointAverageCompleteTime.WithLabelValues(info.ConnectionName).Set(info.AverageTimeUS)
		if info.InError {
			metrics.EndpointInError.WithLabelValues(info.ConnectionName).Set(1)
		} else {
			metrics.EndpointInError.WithLabelValues(info.ConnectionName).Set(0)
		}
	}
}
