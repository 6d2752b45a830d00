package trbsim

import (
	"testing"
	"time"

	"daqflow.xyz/dfo/internal/core"
	"daqflow.xyz/dfo/internal/dispatcher"
	"daqflow.xyz/dfo/internal/transport"
)

// waitFor polls cond until it is true or the deadline expires.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(d)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestFakeTRB_RegistersAndCompletes(t *testing.T) {
	decisions := transport.NewConnection[core.TriggerDecision]("trb-a", 10)
	tokens := transport.NewConnection[core.TriggerDecisionToken]("tokens", 10)

	sim, err := New(Config{
		ConnectionName: "trb-a",
		ResponseDelay:  time.Millisecond,
		QueueTimeout:   100 * time.Millisecond,
	}, decisions, tokens)
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Start(); err != nil {
		t.Fatal(err)
	}
	defer sim.Stop()

	// Two registration sentinels at start.
	waitFor(t, time.Second, func() bool { return tokens.Pending() >= 2 }, "sentinels not sent")

	err = decisions.Send(core.TriggerDecision{
		TriggerNumber: 7,
		RunNumber:     42,
		TriggerType:   core.TriggerTypeRandom.Bit(),
	}, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool { return sim.SentTokens() == 1 }, "completion token not sent")
	if sim.ReceivedDecisions() != 1 {
		t.Errorf("received decisions = %d", sim.ReceivedDecisions())
	}
}

// TestEndToEnd drives the full loop: dispatcher and two fake endpoints wired
// over in-memory connections, decisions in, tokens back, everything drains.
func TestEndToEnd(t *testing.T) {
	decisionConn := transport.NewConnection[core.TriggerDecision]("td_to_dfo", 100)
	tokenConn := transport.NewConnection[core.TriggerDecisionToken]("tokens_to_dfo", 100)
	inhibitConn := transport.NewConnection[core.TriggerInhibit]("inhibit_to_mlt", 100)

	trbNames := []string{"trb-a", "trb-b"}
	trbConns := make(map[string]*transport.Connection[core.TriggerDecision], len(trbNames))
	trbSenders := make(map[string]transport.Sender[core.TriggerDecision], len(trbNames))
	for _, name := range trbNames {
		c := transport.NewConnection[core.TriggerDecision](name, 100)
		trbConns[name] = c
		trbSenders[name] = c
	}

	d := dispatcher.New("dfo-e2e")
	if err := d.Init(dispatcher.Connections{
		DecisionReceiver: decisionConn,
		TokenReceiver:    tokenConn,
		InhibitSender:    inhibitConn,
		TRBSenders:       trbSenders,
	}); err != nil {
		t.Fatal(err)
	}
	if err := d.Configure(dispatcher.Config{
		QueueTimeout:  100 * time.Millisecond,
		StopTimeout:   2 * time.Second,
		BusyThreshold: 5,
		FreeThreshold: 3,
		TDSendRetries: 3,
	}); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(42); err != nil {
		t.Fatal(err)
	}

	for _, name := range trbNames {
		sim, err := New(Config{
			ConnectionName: name,
			ResponseDelay:  time.Millisecond,
			QueueTimeout:   100 * time.Millisecond,
		}, trbConns[name], tokenConn)
		if err != nil {
			t.Fatal(err)
		}
		if err := sim.Start(); err != nil {
			t.Fatal(err)
		}
		defer sim.Stop()
	}

	// Both endpoints register and prove readiness.
	waitFor(t, 2*time.Second, func() bool {
		reg := d.Registry()
		if reg.Len() != 2 {
			return false
		}
		for _, ep := range reg.Ordered() {
			if ep.IsInError() {
				return false
			}
		}
		return true
	}, "endpoints never became ready")

	const n = 20
	for tn := core.TriggerNumber(1); tn <= n; tn++ {
		err := decisionConn.Send(core.TriggerDecision{
			TriggerNumber: tn,
			RunNumber:     42,
			TriggerType:   core.TriggerTypeADCSimpleWindow.Bit(),
		}, time.Second)
		if err != nil {
			t.Fatalf("decision %d not accepted: %v", tn, err)
		}
	}

	// Every decision round-trips: assigned, built, completed.
	waitFor(t, 5*time.Second, func() bool {
		return d.Registry().IsEmpty() && decisionConn.Received() == n
	}, "decisions did not all complete")

	if err := d.DrainStop(); err != nil {
		t.Fatal(err)
	}
}
