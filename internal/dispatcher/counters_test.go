package dispatcher

import (
	"sync"
	"testing"

	"daqflow.xyz/dfo/internal/core"
)

func TestTriggerCounters_GetAndPublish(t *testing.T) {
	c := NewTriggerCounters()

	c.Get(core.TriggerTypeTiming).Received.Add(3)
	c.Get(core.TriggerTypeTiming).Completed.Add(2)
	c.Get(core.TriggerTypeRandom).Received.Add(1)

	seen := map[core.TriggerCandidateType][2]uint64{}
	c.Publish(func(tt core.TriggerCandidateType, received, completed uint64) {
		seen[tt] = [2]uint64{received, completed}
	})

	if got := seen[core.TriggerTypeTiming]; got != [2]uint64{3, 2} {
		t.Errorf("timing counters = %v", got)
	}
	if got := seen[core.TriggerTypeRandom]; got != [2]uint64{1, 0} {
		t.Errorf("random counters = %v", got)
	}

	// Publication resets the deltas.
	c.Publish(func(tt core.TriggerCandidateType, received, completed uint64) {
		if received != 0 || completed != 0 {
			t.Errorf("counters for %s not reset: %d/%d", tt, received, completed)
		}
	})
}

func TestTriggerCounters_Clear(t *testing.T) {
	c := NewTriggerCounters()
	c.Get(core.TriggerTypeTiming).Received.Add(1)
	c.Clear()

	calls := 0
	c.Publish(func(core.TriggerCandidateType, uint64, uint64) { calls++ })
	if calls != 0 {
		t.Errorf("cleared counter set published %d entries", calls)
	}
}

func TestTriggerCounters_ConcurrentIncrements(t *testing.T) {
	c := NewTriggerCounters()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Get(core.TriggerTypeSupernova).Received.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := c.Get(core.TriggerTypeSupernova).Received.Load(); got != 8000 {
		t.Errorf("concurrent increments lost: %d", got)
	}
}

func TestTriggerTypeBits_Unpack(t *testing.T) {
	bits := core.TriggerTypeTiming.Bit() | core.TriggerTypeSupernova.Bit()
	types := bits.Unpack()
	if len(types) != 2 {
		t.Fatalf("unpacked %d types, expected 2", len(types))
	}
	if types[0] != core.TriggerTypeTiming || types[1] != core.TriggerTypeSupernova {
		t.Errorf("unpacked wrong types: %v", types)
	}
	if !bits.Has(core.TriggerTypeTiming) || bits.Has(core.TriggerTypeRandom) {
		t.Error("Has reports wrong membership")
	}
}
