// Package core defines the message types exchanged between the trigger,
// the data flow orchestrator and the trigger record builders.
package core

// RunNumber identifies a data-taking run.
type RunNumber uint32

// TriggerNumber identifies a trigger decision within a run.
// It is monotone within a run and used as the assignment key.
type TriggerNumber uint64

// Timestamp is a hardware clock timestamp in clock ticks.
type Timestamp uint64

// ReadoutType selects how the readout window of a decision is interpreted.
type ReadoutType uint16

const (
	ReadoutUnknown ReadoutType = iota
	ReadoutLocalized
	ReadoutExtended
)

// ComponentRequest asks one readout component for data in a time window.
type ComponentRequest struct {
	SourceID    uint32    `json:"source_id"`
	WindowBegin Timestamp `json:"window_begin"`
	WindowEnd   Timestamp `json:"window_end"`
}

// TriggerDecision instructs the dataflow to build a trigger record.
// Decisions are produced upstream and never mutated by the orchestrator.
type TriggerDecision struct {
	TriggerNumber    TriggerNumber      `json:"trigger_number"`
	RunNumber        RunNumber          `json:"run_number"`
	TriggerType      TriggerTypeBits    `json:"trigger_type"`
	TriggerTimestamp Timestamp          `json:"trigger_timestamp"`
	ReadoutType      ReadoutType        `json:"readout_type"`
	Components       []ComponentRequest `json:"components,omitempty"`
}

// TriggerDecisionToken is the completion receipt a trigger record builder
// returns once a previously assigned decision has been fully built.
//
// A token with RunNumber == 0 and TriggerNumber == 0 is the registration
// sentinel: it announces that the endpoint named in DecisionDestination
// exists (first contact) or has reconnected.
type TriggerDecisionToken struct {
	RunNumber           RunNumber     `json:"run_number"`
	TriggerNumber       TriggerNumber `json:"trigger_number"`
	DecisionDestination string        `json:"decision_destination"`
}

// IsRegistration reports whether the token is the registration sentinel.
func (t TriggerDecisionToken) IsRegistration() bool {
	return t.RunNumber == 0 && t.TriggerNumber == 0
}

// TriggerInhibit is the back-pressure signal sent to the upstream trigger.
// Busy == true asks the trigger to stop issuing decisions.
type TriggerInhibit struct {
	Busy      bool      `json:"busy"`
	RunNumber RunNumber `json:"run_number"`
}
