// Package trbsim implements a fake trigger record builder endpoint. It
// receives trigger decisions, waits a configured response delay in place of
// actually assembling a record, and returns a completion token. It backs
// the daemon's simulation mode and the end-to-end tests.
package trbsim

import (
	"fmt"
	"sync/atomic"
	"time"

	"daqflow.xyz/dfo/internal/core"
	"daqflow.xyz/dfo/internal/log"
	"daqflow.xyz/dfo/internal/transport"
)

// Config tunes one fake endpoint.
type Config struct {
	ConnectionName string
	ResponseDelay  time.Duration
	QueueTimeout   time.Duration
}

// FakeTRB is a simulated trigger record builder application.
type FakeTRB struct {
	cfg Config

	decisions transport.Receiver[core.TriggerDecision]
	tokens    transport.Sender[core.TriggerDecisionToken]

	running atomic.Bool

	receivedDecisions atomic.Uint64
	sentTokens        atomic.Uint64
}

// New creates a fake endpoint bound to its decision input and token output.
func New(cfg Config,
	decisions transport.Receiver[core.TriggerDecision],
	tokens transport.Sender[core.TriggerDecisionToken]) (*FakeTRB, error) {

	if decisions == nil {
		return nil, core.MissingConnection{DataType: "TriggerDecision", Direction: "input"}
	}
	if tokens == nil {
		return nil, core.MissingConnection{DataType: "TriggerDecisionToken", Direction: "output"}
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = 100 * time.Millisecond
	}
	return &FakeTRB{cfg: cfg, decisions: decisions, tokens: tokens}, nil
}

// Name returns the endpoint's connection name.
func (f *FakeTRB) Name() string { return f.cfg.ConnectionName }

// Start announces the endpoint with two registration sentinels and begins
// handling decisions.
func (f *FakeTRB) Start() error {
	f.receivedDecisions.Store(0)
	f.sentTokens.Store(0)
	f.running.Store(true)

	// The first sentinel creates the endpoint slot at the orchestrator;
	// the second runs the reconnect path and asserts readiness, since a
	// freshly created endpoint stays in error until proven live.
	sentinel := core.TriggerDecisionToken{DecisionDestination: f.cfg.ConnectionName}
	for i := 0; i < 2; i++ {
		if err := f.tokens.Send(sentinel, f.cfg.QueueTimeout); err != nil {
			return fmt.Errorf("registration token send failed: %w", err)
		}
	}

	f.decisions.AddCallback(f.handleDecision)
	log.GetLogger().WithField("connection", f.cfg.ConnectionName).Info("fake TRB started")
	return nil
}

// Stop stops handling decisions.
func (f *FakeTRB) Stop() {
	f.running.Store(false)
	f.decisions.RemoveCallback()
	log.GetLogger().WithFields(map[string]interface{}{
		"connection":         f.cfg.ConnectionName,
		"received_decisions": f.receivedDecisions.Load(),
		"sent_tokens":        f.sentTokens.Load(),
	}).Info("fake TRB stopped")
}

// ReceivedDecisions returns the number of decisions handled so far.
func (f *FakeTRB) ReceivedDecisions() uint64 { return f.receivedDecisions.Load() }

// SentTokens returns the number of completion tokens emitted so far.
func (f *FakeTRB) SentTokens() uint64 { return f.sentTokens.Load() }

func (f *FakeTRB) handleDecision(decision core.TriggerDecision) {
	f.receivedDecisions.Add(1)

	if f.cfg.ResponseDelay > 0 {
		time.Sleep(f.cfg.ResponseDelay)
	}

	token := core.TriggerDecisionToken{
		RunNumber:           decision.RunNumber,
		TriggerNumber:       decision.TriggerNumber,
		DecisionDestination: f.cfg.ConnectionName,
	}

	for f.running.Load() {
		if err := f.tokens.Send(token, f.cfg.QueueTimeout); err != nil {
			log.GetLogger().WithError(err).WithField("connection", f.cfg.ConnectionName).
				Warn("token send failed, retrying")
			continue
		}
		f.sentTokens.Add(1)
		return
	}
}
