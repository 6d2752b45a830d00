// Package dispatcher implements the data flow orchestrator core: it assigns
// trigger decisions to trigger record builder endpoints, tracks per-endpoint
// occupancy, reconciles completion tokens and raises the busy inhibit
// towards the upstream trigger.
package dispatcher

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"daqflow.xyz/dfo/internal/core"
)

// maxLatencySamples bounds the per-endpoint latency history.
const maxLatencySamples = 1024

// AssignedTriggerDecision binds a decision to an endpoint together with the
// time the binding was made. It lives in the endpoint's assignment list from
// add until completion or flush.
type AssignedTriggerDecision struct {
	Decision       core.TriggerDecision
	ConnectionName string
	AssignedAt     time.Time
}

type latencySample struct {
	completedAt time.Time
	latency     time.Duration
}

// EndpointState tracks the current state of one trigger record builder
// endpoint: its outstanding assignments, busy hysteresis, error flag and
// completion latency history. All methods are safe for concurrent use.
//
// A freshly created endpoint is in error until it proves liveness with its
// first real completion token.
type EndpointState struct {
	connectionName string

	busyThreshold atomic.Uint64
	freeThreshold atomic.Uint64
	isBusyFlag    atomic.Bool
	inError       atomic.Bool

	mu       sync.Mutex
	assigned []*AssignedTriggerDecision

	latencyMu   sync.Mutex
	latency     []latencySample
	lastCollect time.Time
	lastAverage float64 // microseconds

	completeCounter atomic.Uint32
	minCompleteTime atomic.Uint64 // microseconds
	maxCompleteTime atomic.Uint64 // microseconds
}

// NewEndpointState creates the state for a newly observed endpoint.
// The busy threshold must be at least the free threshold.
func NewEndpointState(connectionName string, busyThreshold, freeThreshold uint64) (*EndpointState, error) {
	if busyThreshold < freeThreshold {
		return nil, core.DFOThresholdsNotConsistent{Busy: busyThreshold, Free: freeThreshold}
	}
	e := &EndpointState{
		connectionName: connectionName,
		lastCollect:    time.Now(),
	}
	e.busyThreshold.Store(busyThreshold)
	e.freeThreshold.Store(freeThreshold)
	e.minCompleteTime.Store(math.MaxUint64)
	e.inError.Store(true)
	return e, nil
}

// ConnectionName returns the stable endpoint identifier.
func (e *EndpointState) ConnectionName() string { return e.connectionName }

// BusyThreshold returns the occupancy at or above which the endpoint
// becomes busy.
func (e *EndpointState) BusyThreshold() uint64 { return e.busyThreshold.Load() }

// FreeThreshold returns the occupancy at or below which the endpoint
// becomes free again.
func (e *EndpointState) FreeThreshold() uint64 { return e.freeThreshold.Load() }

// SetThresholds reconfigures the hysteresis band.
func (e *EndpointState) SetThresholds(busy, free uint64) error {
	if busy < free {
		return core.DFOThresholdsNotConsistent{Busy: busy, Free: free}
	}
	e.busyThreshold.Store(busy)
	e.freeThreshold.Store(free)
	return nil
}

// IsBusy reports whether the endpoint should not receive new assignments:
// it is either in error or its busy flag is raised. The flag is raised when
// the occupancy reaches the busy threshold and cleared only when it drops
// to the free threshold.
func (e *EndpointState) IsBusy() bool {
	return e.inError.Load() || e.isBusyFlag.Load()
}

// IsInError reports whether the endpoint is flagged errored.
func (e *EndpointState) IsInError() bool { return e.inError.Load() }

// SetInError sets or clears the error flag.
func (e *EndpointState) SetInError(err bool) { e.inError.Store(err) }

// UsedSlots returns the number of outstanding assignments.
func (e *EndpointState) UsedSlots() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint64(len(e.assigned))
}

// MakeAssignment binds the decision to this endpoint, stamped with the
// current time. The assignment is not yet inserted; call AddAssignment once
// the decision has actually been forwarded.
func (e *EndpointState) MakeAssignment(decision core.TriggerDecision) *AssignedTriggerDecision {
	return &AssignedTriggerDecision{
		Decision:       decision,
		ConnectionName: e.connectionName,
		AssignedAt:     time.Now(),
	}
}

// AddAssignment inserts the assignment at the tail of the list and raises
// the busy flag when the occupancy reaches the busy threshold.
func (e *EndpointState) AddAssignment(a *AssignedTriggerDecision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assigned = append(e.assigned, a)
	if uint64(len(e.assigned)) >= e.busyThreshold.Load() {
		e.isBusyFlag.Store(true)
	}
}

// GetAssignment returns the assignment for the trigger number without
// removing it, or nil when absent.
func (e *EndpointState) GetAssignment(triggerNumber core.TriggerNumber) *AssignedTriggerDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.assigned {
		if a.Decision.TriggerNumber == triggerNumber {
			return a
		}
	}
	return nil
}

// ExtractAssignment removes and returns the assignment for the trigger
// number, clearing the busy flag when the occupancy drops to the free
// threshold. Returns nil when the trigger number is not assigned here.
func (e *EndpointState) ExtractAssignment(triggerNumber core.TriggerNumber) *AssignedTriggerDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, a := range e.assigned {
		if a.Decision.TriggerNumber == triggerNumber {
			e.assigned = append(e.assigned[:i], e.assigned[i+1:]...)
			if uint64(len(e.assigned)) <= e.freeThreshold.Load() {
				e.isBusyFlag.Store(false)
			}
			return a
		}
	}
	return nil
}

// CompleteAssignment extracts the assignment and records its completion
// latency. The optional metadata callback receives a mutable map that a
// caller can use to attach bookkeeping to the completion.
func (e *EndpointState) CompleteAssignment(triggerNumber core.TriggerNumber,
	metadata func(map[string]any)) (*AssignedTriggerDecision, error) {

	a := e.ExtractAssignment(triggerNumber)
	if a == nil {
		return nil, core.AssignedTriggerDecisionNotFound{
			TriggerNumber:  triggerNumber,
			ConnectionName: e.connectionName,
		}
	}

	now := time.Now()
	latency := now.Sub(a.AssignedAt)

	e.latencyMu.Lock()
	e.latency = append(e.latency, latencySample{completedAt: now, latency: latency})
	if len(e.latency) > maxLatencySamples {
		e.latency = e.latency[len(e.latency)-maxLatencySamples:]
	}
	e.latencyMu.Unlock()

	us := uint64(latency.Microseconds())
	for {
		min := e.minCompleteTime.Load()
		if us >= min || e.minCompleteTime.CompareAndSwap(min, us) {
			break
		}
	}
	for {
		max := e.maxCompleteTime.Load()
		if us <= max || e.maxCompleteTime.CompareAndSwap(max, us) {
			break
		}
	}
	e.completeCounter.Add(1)

	if metadata != nil {
		metadata(map[string]any{
			"connection_name": e.connectionName,
			"trigger_number":  uint64(triggerNumber),
			"latency_us":      us,
		})
	}
	return a, nil
}

// Flush removes and returns all outstanding assignments. The endpoint is
// no longer busy afterwards.
func (e *EndpointState) Flush() []*AssignedTriggerDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	remnants := e.assigned
	e.assigned = nil
	e.isBusyFlag.Store(false)
	return remnants
}

// AverageLatency returns the arithmetic mean of the completion latencies
// recorded at or after since, or zero when there are none.
func (e *EndpointState) AverageLatency(since time.Time) time.Duration {
	e.latencyMu.Lock()
	defer e.latencyMu.Unlock()
	var sum time.Duration
	var n int
	for _, s := range e.latency {
		if !s.completedAt.Before(since) {
			sum += s.latency
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / time.Duration(n)
}

// EndpointInfo is a published monitoring snapshot for one endpoint.
// Completion counters are deltas since the previous snapshot.
type EndpointInfo struct {
	ConnectionName    string
	Occupancy         uint64
	CompletedCount    uint32
	MinCompleteTimeUS uint64
	MaxCompleteTimeUS uint64
	AverageTimeUS     float64
	InError           bool
}

// CollectInfo snapshots and resets the completion counters for metric
// publication.
func (e *EndpointState) CollectInfo() EndpointInfo {
	completed := e.completeCounter.Swap(0)
	min := e.minCompleteTime.Swap(math.MaxUint64)
	max := e.maxCompleteTime.Swap(0)
	if min == math.MaxUint64 {
		min = 0
	}

	e.latencyMu.Lock()
	avg := 0.0
	var sum time.Duration
	var n int
	for _, s := range e.latency {
		if !s.completedAt.Before(e.lastCollect) {
			sum += s.latency
			n++
		}
	}
	if n > 0 {
		avg = float64(sum.Microseconds()) / float64(n)
		e.lastAverage = avg
	} else {
		avg = e.lastAverage
	}
	e.lastCollect = time.Now()
	e.latencyMu.Unlock()

	return EndpointInfo{
		ConnectionName:    e.connectionName,
		Occupancy:         e.UsedSlots(),
		CompletedCount:    completed,
		MinCompleteTimeUS: min,
		MaxCompleteTimeUS: max,
		AverageTimeUS:     avg,
		InError:           e.inError.Load(),
	}
}
