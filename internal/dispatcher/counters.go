package dispatcher

import (
	"sync"
	"sync/atomic"

	"daqflow.xyz/dfo/internal/core"
)

// TriggerCounts holds the received/completed counters for one trigger
// candidate type. Increments are atomic; the enclosing map is guarded by
// TriggerCounters for structural changes and publication.
type TriggerCounts struct {
	Received  atomic.Uint64
	Completed atomic.Uint64
}

// TriggerCounters tracks per-trigger-type counters. The mutex guards key
// insertion and the snapshot-and-reset performed at publication; plain
// increments on existing keys only take the lock to find the entry.
type TriggerCounters struct {
	mu     sync.Mutex
	counts map[core.TriggerCandidateType]*TriggerCounts
}

// NewTriggerCounters creates an empty counter set.
func NewTriggerCounters() *TriggerCounters {
	return &TriggerCounters{counts: make(map[core.TriggerCandidateType]*TriggerCounts)}
}

// Get returns the counters for the candidate type, creating them on first
// use.
func (c *TriggerCounters) Get(t core.TriggerCandidateType) *TriggerCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc, ok := c.counts[t]
	if !ok {
		tc = &TriggerCounts{}
		c.counts[t] = tc
	}
	return tc
}

// Publish snapshots and resets every counter pair, invoking fn once per
// candidate type that has been seen.
func (c *TriggerCounters) Publish(fn func(t core.TriggerCandidateType, received, completed uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for t, tc := range c.counts {
		fn(t, tc.Received.Swap(0), tc.Completed.Swap(0))
	}
}

// Clear drops all counters. Called when a run stops.
func (c *TriggerCounters) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[core.TriggerCandidateType]*TriggerCounts)
}
