package transport

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConnection_SendAndReceive(t *testing.T) {
	c := NewConnection[int]("test", 10)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	c.AddCallback(func(v int) {
		mu.Lock()
		got = append(got, v)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})
	defer c.RemoveCallback()

	for i := 1; i <= 3; i++ {
		if err := c.Send(i, 100*time.Millisecond); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i+1 {
			t.Errorf("delivery order wrong: %v", got)
			break
		}
	}
}

func TestConnection_SendTimeout(t *testing.T) {
	c := NewConnection[int]("test", 1)
	if err := c.Send(1, 10*time.Millisecond); err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	// Buffer full, no consumer: the second send must time out.
	began := time.Now()
	err := c.Send(2, 20*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(began) < 20*time.Millisecond {
		t.Error("send returned before the timeout budget")
	}
}

func TestConnection_SendAfterClose(t *testing.T) {
	c := NewConnection[int]("test", 1)
	c.Close()
	if err := c.Send(1, time.Millisecond); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if c.Ready(time.Millisecond) {
		t.Error("closed connection reports ready")
	}
}

func TestConnection_RemoveCallbackWaitsForInflight(t *testing.T) {
	c := NewConnection[int]("test", 1)

	started := make(chan struct{})
	finished := make(chan struct{})
	c.AddCallback(func(int) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(finished)
	})

	if err := c.Send(1, time.Second); err != nil {
		t.Fatal(err)
	}
	<-started

	c.RemoveCallback()
	select {
	case <-finished:
	default:
		t.Error("RemoveCallback returned while a callback was in flight")
	}
}

func TestConnection_BufferedMessagesSurviveCallbackGap(t *testing.T) {
	c := NewConnection[int]("test", 10)

	// No callback installed: sends buffer up.
	for i := 0; i < 4; i++ {
		if err := c.Send(i, time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if c.Pending() != 4 {
		t.Fatalf("pending = %d, expected 4", c.Pending())
	}

	done := make(chan struct{})
	var count int
	c.AddCallback(func(int) {
		count++
		if count == 4 {
			close(done)
		}
	})
	defer c.RemoveCallback()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered messages not drained to late callback")
	}
	if c.Received() != 4 {
		t.Errorf("received counter = %d", c.Received())
	}
}

func TestConnection_ReplaceCallback(t *testing.T) {
	c := NewConnection[int]("test", 10)

	var first, second atomic.Int32
	c.AddCallback(func(int) { first.Add(1) })
	c.AddCallback(func(int) { second.Add(1) })
	defer c.RemoveCallback()

	if err := c.Send(1, time.Second); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for c.Received() == 0 {
		select {
		case <-deadline:
			t.Fatal("message never delivered")
		case <-time.After(time.Millisecond):
		}
	}
	if first.Load() != 0 {
		t.Error("replaced callback still receiving")
	}
	if second.Load() != 1 {
		t.Errorf("active callback received %d messages", second.Load())
	}
}
