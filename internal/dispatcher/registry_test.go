package dispatcher

import (
	"testing"
)

func mustEndpoint(t *testing.T, name string) *EndpointState {
	t.Helper()
	ep, err := NewEndpointState(name, 5, 3)
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func TestEndpointRegistry_InsertionOrder(t *testing.T) {
	r := NewEndpointRegistry()
	names := []string{"trb-03", "trb-01", "trb-02"}
	for _, n := range names {
		if !r.Register(mustEndpoint(t, n)) {
			t.Fatalf("register %s failed", n)
		}
	}

	ordered := r.Ordered()
	if len(ordered) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(ordered))
	}
	for i, ep := range ordered {
		if ep.ConnectionName() != names[i] {
			t.Errorf("position %d: %s, expected %s", i, ep.ConnectionName(), names[i])
		}
	}
}

func TestEndpointRegistry_DuplicateRegister(t *testing.T) {
	r := NewEndpointRegistry()
	r.Register(mustEndpoint(t, "trb-01"))
	if r.Register(mustEndpoint(t, "trb-01")) {
		t.Error("duplicate registration accepted")
	}
	if r.Len() != 1 {
		t.Errorf("registry length = %d", r.Len())
	}
}

func TestEndpointRegistry_Lookup(t *testing.T) {
	r := NewEndpointRegistry()
	ep := mustEndpoint(t, "trb-01")
	r.Register(ep)

	if got := r.Lookup("trb-01"); got != ep {
		t.Error("lookup returned a different endpoint")
	}
	if got := r.Lookup("trb-99"); got != nil {
		t.Error("lookup of unknown name returned an endpoint")
	}
}

func TestEndpointRegistry_EmptyIsBusy(t *testing.T) {
	r := NewEndpointRegistry()
	if !r.IsBusy() {
		t.Error("empty registry must be busy: no capacity at all")
	}
	if !r.IsEmpty() {
		t.Error("empty registry must have no used slots")
	}
}

func TestEndpointRegistry_AggregateBusy(t *testing.T) {
	r := NewEndpointRegistry()
	a := mustEndpoint(t, "trb-a")
	b := mustEndpoint(t, "trb-b")
	r.Register(a)
	r.Register(b)

	// Both in error -> both busy.
	if !r.IsBusy() {
		t.Error("all endpoints errored should aggregate busy")
	}

	a.SetInError(false)
	if r.IsBusy() {
		t.Error("one free endpoint should clear aggregate busy")
	}
}

func TestEndpointRegistry_UsedSlots(t *testing.T) {
	r := NewEndpointRegistry()
	a := mustEndpoint(t, "trb-a")
	b := mustEndpoint(t, "trb-b")
	r.Register(a)
	r.Register(b)

	a.AddAssignment(a.MakeAssignment(makeDecision(1, 42)))
	b.AddAssignment(b.MakeAssignment(makeDecision(2, 42)))
	b.AddAssignment(b.MakeAssignment(makeDecision(3, 42)))

	if got := r.UsedSlots(); got != 3 {
		t.Errorf("total used slots = %d, expected 3", got)
	}
	if r.IsEmpty() {
		t.Error("registry with assignments reported empty")
	}
}

func TestEndpointRegistry_CursorAndClear(t *testing.T) {
	r := NewEndpointRegistry()
	r.Register(mustEndpoint(t, "trb-a"))

	if r.Cursor() != -1 {
		t.Errorf("fresh cursor = %d", r.Cursor())
	}
	r.SetCursor(0)
	if r.Cursor() != 0 {
		t.Errorf("cursor after set = %d", r.Cursor())
	}

	r.Clear()
	if r.Len() != 0 {
		t.Error("registry not empty after clear")
	}
	if r.Cursor() != -1 {
		t.Errorf("cursor after clear = %d", r.Cursor())
	}
}
