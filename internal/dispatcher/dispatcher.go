package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"daqflow.xyz/dfo/internal/core"
	"daqflow.xyz/dfo/internal/transport"
)

// State is the lifecycle state of the dispatcher.
type State string

const (
	// StateUnconfigured indicates the dispatcher has no configuration.
	StateUnconfigured State = "unconfigured"
	// StateConfigured indicates the dispatcher is configured but idle.
	StateConfigured State = "configured"
	// StateRunning indicates a run is active and callbacks are installed.
	StateRunning State = "running"
)

// drainSteps is the number of equal sub-waits the stop timeout is divided
// into while waiting for outstanding decisions to complete.
const drainSteps = 20

// saturationBackoff is the sleep between assignment attempts when no
// endpoint can take a decision.
const saturationBackoff = 500 * time.Microsecond

// readyProbeTimeout bounds the observational sender probes at start.
const readyProbeTimeout = 100 * time.Millisecond

// Config carries the dispatch options captured at configure time.
type Config struct {
	QueueTimeout  time.Duration
	StopTimeout   time.Duration
	BusyThreshold uint64
	FreeThreshold uint64
	TDSendRetries int
}

// Connections are the resolved input and output capabilities the dispatcher
// drives. They are discovered from the module configuration by data type.
type Connections struct {
	DecisionReceiver transport.Receiver[core.TriggerDecision]
	TokenReceiver    transport.Receiver[core.TriggerDecisionToken]
	InhibitSender    transport.Sender[core.TriggerInhibit]
	TRBSenders       map[string]transport.Sender[core.TriggerDecision]
}

// IssueFunc receives every structured issue the dispatcher raises, with the
// severity it was raised at. The default handler logs through slog; tests
// install a recorder.
type IssueFunc func(level slog.Level, issue error)

// Dispatcher is the data flow orchestrator core. It ingests trigger
// decisions, assigns them round-robin across the registered endpoints,
// reconciles completion tokens, and keeps the upstream inhibit consistent
// with the aggregate busy state.
//
// The decision and token callbacks may run on different goroutines; all
// shared state is protected accordingly.
type Dispatcher struct {
	name string

	stateMu sync.Mutex
	state   State

	cfg   Config
	conns Connections

	registry *EndpointRegistry
	counters *TriggerCounters

	running          atomic.Bool
	runNumber        atomic.Uint32
	notifyMu         sync.Mutex
	lastNotifiedBusy atomic.Bool

	// metadataFn, when set, is invoked on every completed assignment.
	metadataFn func(map[string]any)

	issue IssueFunc

	// Opmon delta counters, snapshot-and-reset at publication.
	receivedTokens     atomic.Uint64
	sentDecisions      atomic.Uint64
	receivedDecisions  atomic.Uint64
	waitingForDecision atomic.Int64 // microseconds
	decidingDest       atomic.Int64
	forwardingDecision atomic.Int64
	waitingForToken    atomic.Int64
	processingToken    atomic.Int64

	lastTDReceived    atomic.Int64 // unix nanos
	lastTokenReceived atomic.Int64
}

// New creates an unconfigured dispatcher.
func New(name string) *Dispatcher {
	d := &Dispatcher{
		name:     name,
		state:    StateUnconfigured,
		registry: NewEndpointRegistry(),
		counters: NewTriggerCounters(),
	}
	d.issue = d.logIssue
	return d
}

// Name returns the module instance name.
func (d *Dispatcher) Name() string { return d.name }

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

// SetIssueHandler replaces the issue sink. Must be called before Start.
func (d *Dispatcher) SetIssueHandler(fn IssueFunc) {
	if fn != nil {
		d.issue = fn
	}
}

// SetMetadataFunc installs the completion metadata callback.
func (d *Dispatcher) SetMetadataFunc(fn func(map[string]any)) { d.metadataFn = fn }

func (d *Dispatcher) logIssue(level slog.Level, issue error) {
	slog.Log(context.Background(), level, issue.Error(), "module", d.name)
}

// Init resolves and validates the required connections. Missing any of the
// two inputs or the inhibit output is fatal.
func (d *Dispatcher) Init(conns Connections) error {
	if conns.TokenReceiver == nil {
		return core.MissingConnection{DataType: "TriggerDecisionToken", Direction: "input"}
	}
	if conns.DecisionReceiver == nil {
		return core.MissingConnection{DataType: "TriggerDecision", Direction: "input"}
	}
	if conns.InhibitSender == nil {
		return core.MissingConnection{DataType: "TriggerInhibit", Direction: "output"}
	}
	if conns.TRBSenders == nil {
		conns.TRBSenders = make(map[string]transport.Sender[core.TriggerDecision])
	}
	d.conns = conns
	return nil
}

// Configure captures the dispatch options. Valid from the unconfigured or
// configured state.
func (d *Dispatcher) Configure(cfg Config) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.state == StateRunning {
		return fmt.Errorf("cannot configure dispatcher in state %s", d.state)
	}
	if cfg.BusyThreshold < cfg.FreeThreshold {
		return core.DFOThresholdsNotConsistent{Busy: cfg.BusyThreshold, Free: cfg.FreeThreshold}
	}
	d.cfg = cfg
	d.state = StateConfigured
	slog.Info("dispatcher configured",
		"module", d.name,
		"queue_timeout", cfg.QueueTimeout,
		"stop_timeout", cfg.StopTimeout,
		"busy_threshold", cfg.BusyThreshold,
		"free_threshold", cfg.FreeThreshold,
		"td_send_retries", cfg.TDSendRetries,
		"endpoints", d.registry.Len())
	return nil
}

// Start begins a run: counters are zeroed, sender readiness is probed, and
// the token and decision callbacks are installed.
func (d *Dispatcher) Start(run core.RunNumber) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.state != StateConfigured {
		return fmt.Errorf("cannot start dispatcher in state %s", d.state)
	}

	d.receivedTokens.Store(0)
	d.sentDecisions.Store(0)
	d.receivedDecisions.Store(0)
	d.waitingForDecision.Store(0)
	d.decidingDest.Store(0)
	d.forwardingDecision.Store(0)
	d.waitingForToken.Store(0)
	d.processingToken.Store(0)

	d.runNumber.Store(uint32(run))
	d.running.Store(true)
	d.lastNotifiedBusy.Store(false)
	d.registry.ResetCursor()

	now := time.Now().UnixNano()
	d.lastTDReceived.Store(now)
	d.lastTokenReceived.Store(now)

	ready := d.conns.InhibitSender.Ready(readyProbeTimeout)
	slog.Debug("inhibit sender readiness probed", "module", d.name, "ready", ready)
	for name, sender := range d.conns.TRBSenders {
		ready := sender.Ready(readyProbeTimeout)
		slog.Debug("decision sender readiness probed", "module", d.name, "connection", name, "ready", ready)
	}

	d.conns.TokenReceiver.AddCallback(d.receiveTriggerCompleteToken)
	d.conns.DecisionReceiver.AddCallback(d.receiveTriggerDecision)

	d.state = StateRunning
	slog.Info("dispatcher started", "module", d.name, "run", run)
	return nil
}

// DrainStop stops accepting decisions, waits up to the stop timeout for
// outstanding assignments to complete, then flushes every endpoint and
// reports each residual as an incomplete trigger decision.
func (d *Dispatcher) DrainStop() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.state != StateRunning {
		return fmt.Errorf("cannot stop dispatcher in state %s", d.state)
	}

	d.running.Store(false)
	d.conns.DecisionReceiver.RemoveCallback()

	stepTimeout := d.cfg.StopTimeout / drainSteps
	for step := 0; step < drainSteps && !d.registry.IsEmpty(); step++ {
		slog.Info("stop delayed while waiting for outstanding trigger decisions",
			"module", d.name, "used_slots", d.registry.UsedSlots())
		time.Sleep(stepTimeout)
	}

	d.conns.TokenReceiver.RemoveCallback()

	run := core.RunNumber(d.runNumber.Load())
	for _, ep := range d.registry.Ordered() {
		for _, residual := range ep.Flush() {
			d.issue(slog.LevelError, core.IncompleteTriggerDecision{
				TriggerNumber: residual.Decision.TriggerNumber,
				RunNumber:     run,
			})
		}
	}

	d.counters.Clear()

	d.state = StateConfigured
	slog.Info("dispatcher stopped", "module", d.name, "run", run)
	return nil
}

// Scrap clears the endpoint registry. Valid only once the run is stopped.
func (d *Dispatcher) Scrap() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.state == StateRunning {
		return fmt.Errorf("cannot scrap dispatcher in state %s", d.state)
	}
	d.registry.Clear()
	d.state = StateUnconfigured
	slog.Info("dispatcher scrapped", "module", d.name)
	return nil
}

// RunNumber returns the current run number.
func (d *Dispatcher) RunNumber() core.RunNumber {
	return core.RunNumber(d.runNumber.Load())
}

// Registry exposes the endpoint registry for monitoring.
func (d *Dispatcher) Registry() *EndpointRegistry { return d.registry }

// receiveTriggerDecision ingests one trigger decision. It retries the
// assignment while the run is active: saturation backs off briefly and
// refreshes the inhibit, a dispatch failure marks the chosen endpoint
// errored and re-enters the policy, which may pick another endpoint.
func (d *Dispatcher) receiveTriggerDecision(decision core.TriggerDecision) {
	slog.Debug("trigger decision received",
		"module", d.name,
		"trigger_number", decision.TriggerNumber,
		"run", decision.RunNumber)

	run := core.RunNumber(d.runNumber.Load())
	if decision.RunNumber != run {
		d.issue(slog.LevelError, core.RunNumberMismatch{
			Received:      decision.RunNumber,
			Expected:      run,
			Source:        "MLT",
			TriggerNumber: decision.TriggerNumber,
		})
		return
	}

	received := time.Now()
	d.receivedDecisions.Add(1)
	for _, t := range decision.TriggerType.Unpack() {
		d.counters.Get(t).Received.Add(1)
	}

	var assigned time.Time
	for {
		assignment := d.findSlot(decision)

		if assignment == nil {
			// All endpoints errored (or none registered yet).
			d.issue(slog.LevelError, core.UnableToAssign{TriggerNumber: decision.TriggerNumber})
			time.Sleep(saturationBackoff)
			d.notifyTriggerIfNeeded()
			if !d.running.Load() {
				break
			}
			continue
		}

		assigned = time.Now()
		if d.dispatch(assignment) {
			d.registry.Lookup(assignment.ConnectionName).AddAssignment(assignment)
			slog.Debug("trigger decision assigned",
				"module", d.name,
				"trigger_number", decision.TriggerNumber,
				"connection", assignment.ConnectionName)
			break
		}

		d.issue(slog.LevelError, core.TRBModuleAppUpdate{
			ConnectionName: assignment.ConnectionName,
			Message:        "could not send trigger decision",
		})
		d.registry.Lookup(assignment.ConnectionName).SetInError(true)
		if !d.running.Load() {
			break
		}
	}

	d.notifyTriggerIfNeeded()

	if assigned.IsZero() {
		assigned = received
	}
	done := time.Now()
	d.waitingForDecision.Add(received.UnixNano()/1e3 - d.lastTDReceived.Load()/1e3)
	d.lastTDReceived.Store(done.UnixNano())
	d.decidingDest.Add(assigned.Sub(received).Microseconds())
	d.forwardingDecision.Add(done.Sub(assigned).Microseconds())
}

// findSlot selects the endpoint for a decision with a round-robin walk
// starting just after the cursor. Errored endpoints are skipped; among the
// rest the walk tracks the minimum occupancy. A non-busy endpoint takes the
// assignment directly; when all are busy the decision is force-assigned to
// the least occupied one with a warning. Returns nil when no non-errored
// endpoint exists.
//
// The cursor moves only when an assignment is actually made.
func (d *Dispatcher) findSlot(decision core.TriggerDecision) *AssignedTriggerDecision {
	endpoints := d.registry.Ordered()
	n := len(endpoints)
	if n == 0 {
		return nil
	}

	minIdx := -1
	minSlots := uint64(math.MaxUint64)

	idx := d.registry.Cursor()
	for probed := 0; probed < n; probed++ {
		idx = (idx + 1) % n
		ep := endpoints[idx]

		if ep.IsInError() {
			continue
		}

		slots := ep.UsedSlots()
		if slots < minSlots {
			minSlots = slots
			minIdx = idx
		}

		if ep.IsBusy() {
			continue
		}

		d.registry.SetCursor(idx)
		return ep.MakeAssignment(decision)
	}

	if minIdx < 0 {
		return nil
	}

	// Every non-errored endpoint is busy: force-assign to the least
	// occupied one encountered during the walk.
	ep := endpoints[minIdx]
	d.registry.SetCursor(minIdx)
	d.issue(slog.LevelWarn, core.AssignedToBusyApp{
		TriggerNumber:  decision.TriggerNumber,
		ConnectionName: ep.ConnectionName(),
		UsedSlots:      minSlots,
	})
	return ep.MakeAssignment(decision)
}

// dispatch forwards the decision to the assignment's endpoint, retrying up
// to the configured number of attempts. The decision is sent by value, so a
// failed transport leaves the caller free to re-route the same contents.
func (d *Dispatcher) dispatch(assignment *AssignedTriggerDecision) bool {
	sender, ok := d.conns.TRBSenders[assignment.ConnectionName]
	if !ok {
		d.issue(slog.LevelWarn, core.OperationFailed{
			Operation:      "dispatch",
			ConnectionName: assignment.ConnectionName,
			Err:            fmt.Errorf("no decision sender for connection"),
		})
		return false
	}

	retries := d.cfg.TDSendRetries
	for {
		err := sender.Send(assignment.Decision, d.cfg.QueueTimeout)
		if err == nil {
			d.sentDecisions.Add(1)
			slog.Debug("trigger decision forwarded",
				"module", d.name,
				"trigger_number", assignment.Decision.TriggerNumber,
				"connection", assignment.ConnectionName,
				"run", assignment.Decision.RunNumber)
			return true
		}

		d.issue(slog.LevelWarn, core.OperationFailed{
			Operation:      "send trigger decision",
			ConnectionName: assignment.ConnectionName,
			Timeout:        d.cfg.QueueTimeout,
			Err:            err,
		})

		retries--
		if retries <= 0 || !d.running.Load() {
			return false
		}
	}
}

// receiveTriggerCompleteToken ingests one completion token. Registration
// sentinels create or reconnect endpoints; real tokens complete the
// matching assignment and feed the completion counters.
func (d *Dispatcher) receiveTriggerCompleteToken(token core.TriggerDecisionToken) {
	if token.IsRegistration() {
		d.registerEndpoint(token.DecisionDestination)
		return
	}

	slog.Debug("completion token received",
		"module", d.name,
		"trigger_number", token.TriggerNumber,
		"run", token.RunNumber,
		"connection", token.DecisionDestination)

	run := core.RunNumber(d.runNumber.Load())
	if token.RunNumber != run {
		d.issue(slog.LevelError, core.RunNumberMismatch{
			Received:      token.RunNumber,
			Expected:      run,
			Source:        fmt.Sprintf("TRB at connection %s", token.DecisionDestination),
			TriggerNumber: token.TriggerNumber,
		})
		return
	}

	ep := d.registry.Lookup(token.DecisionDestination)
	if ep == nil {
		d.issue(slog.LevelError, core.UnknownTokenSource{ConnectionName: token.DecisionDestination})
		return
	}

	d.receivedTokens.Add(1)
	callbackStart := time.Now()

	completed, err := ep.CompleteAssignment(token.TriggerNumber, d.metadataFn)
	if err != nil {
		d.issue(slog.LevelError, err)
	} else {
		for _, t := range completed.Decision.TriggerType.Unpack() {
			d.counters.Get(t).Completed.Add(1)
		}
	}

	if ep.IsInError() {
		ep.SetInError(false)
		d.issue(slog.LevelInfo, core.TRBModuleAppUpdate{
			ConnectionName: token.DecisionDestination,
			Message:        "has reconnected",
		})
	}

	d.notifyTriggerIfNeeded()

	done := time.Now()
	d.waitingForToken.Add(callbackStart.UnixNano()/1e3 - d.lastTokenReceived.Load()/1e3)
	d.lastTokenReceived.Store(done.UnixNano())
	d.processingToken.Add(done.Sub(callbackStart).Microseconds())
}

// registerEndpoint handles a registration sentinel. An unknown name gets a
// fresh endpoint state that stays in error until its first real token; a
// known name is a reconnection and clears the error flag.
func (d *Dispatcher) registerEndpoint(name string) {
	if ep := d.registry.Lookup(name); ep != nil {
		ep.SetInError(false)
		d.issue(slog.LevelInfo, core.TRBModuleAppUpdate{
			ConnectionName: name,
			Message:        "has reconnected",
		})
		return
	}

	ep, err := NewEndpointState(name, d.cfg.BusyThreshold, d.cfg.FreeThreshold)
	if err != nil {
		d.issue(slog.LevelError, err)
		return
	}
	d.registry.Register(ep)
	slog.Info("endpoint registered", "module", d.name, "connection", name)
}

// notifyTriggerIfNeeded evaluates the aggregate busy state and, when it
// differs from the last transmitted value, sends an inhibit. Evaluation and
// transmission happen under one mutex so the sent value always matches the
// state it was computed from.
func (d *Dispatcher) notifyTriggerIfNeeded() {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	busy := d.registry.IsBusy()
	if busy == d.lastNotifiedBusy.Load() {
		return
	}

	run := core.RunNumber(d.runNumber.Load())
	for {
		err := d.conns.InhibitSender.Send(core.TriggerInhibit{Busy: busy, RunNumber: run}, d.cfg.QueueTimeout)
		if err == nil {
			slog.Debug("busy status sent to trigger", "module", d.name, "busy", busy, "run", run)
			break
		}
		d.issue(slog.LevelWarn, core.OperationFailed{
			Operation:      "send trigger inhibit",
			ConnectionName: d.conns.InhibitSender.Name(),
			Timeout:        d.cfg.QueueTimeout,
			Err:            err,
		})
		if !d.running.Load() {
			break
		}
	}

	d.lastNotifiedBusy.Store(busy)
}
