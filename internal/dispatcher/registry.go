package dispatcher

import (
	"sync"
	"sync/atomic"
)

// EndpointRegistry is the insertion-ordered set of known endpoints plus the
// round-robin cursor of the assignment policy. Endpoints are added lazily on
// the first registration token carrying their name and removed only by a
// scrap, so readers see a stable ordering for the lifetime of a run.
type EndpointRegistry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*EndpointState

	// cursor is the index in order of the endpoint that most recently
	// received an assignment, or -1 when none has yet.
	cursor atomic.Int64
}

// NewEndpointRegistry creates an empty registry.
func NewEndpointRegistry() *EndpointRegistry {
	r := &EndpointRegistry{byName: make(map[string]*EndpointState)}
	r.cursor.Store(-1)
	return r
}

// Register adds the endpoint under its connection name. Registering a name
// twice is a no-op returning false.
func (r *EndpointRegistry) Register(e *EndpointState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := e.ConnectionName()
	if _, ok := r.byName[name]; ok {
		return false
	}
	r.byName[name] = e
	r.order = append(r.order, name)
	return true
}

// Lookup returns the endpoint for the connection name, or nil.
func (r *EndpointRegistry) Lookup(name string) *EndpointState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Len returns the number of registered endpoints.
func (r *EndpointRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Ordered returns the endpoints in insertion order. The returned slice is a
// snapshot and safe to iterate without holding the registry lock.
func (r *EndpointRegistry) Ordered() []*EndpointState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*EndpointState, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Cursor returns the index of the endpoint that most recently received an
// assignment, or -1.
func (r *EndpointRegistry) Cursor() int { return int(r.cursor.Load()) }

// SetCursor records the index of the endpoint that just received an
// assignment.
func (r *EndpointRegistry) SetCursor(idx int) { r.cursor.Store(int64(idx)) }

// ResetCursor forgets the last assignment position.
func (r *EndpointRegistry) ResetCursor() { r.cursor.Store(-1) }

// IsBusy reports the aggregate busy state: true iff every endpoint is busy.
// An empty registry is busy (no capacity at all).
func (r *EndpointRegistry) IsBusy() bool {
	for _, e := range r.Ordered() {
		if !e.IsBusy() {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no endpoint holds an outstanding assignment.
func (r *EndpointRegistry) IsEmpty() bool {
	for _, e := range r.Ordered() {
		if e.UsedSlots() != 0 {
			return false
		}
	}
	return true
}

// UsedSlots returns the total outstanding assignments across all endpoints.
func (r *EndpointRegistry) UsedSlots() uint64 {
	var total uint64
	for _, e := range r.Ordered() {
		total += e.UsedSlots()
	}
	return total
}

// Clear removes every endpoint and resets the cursor.
func (r *EndpointRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.byName = make(map[string]*EndpointState)
	r.cursor.Store(-1)
}
