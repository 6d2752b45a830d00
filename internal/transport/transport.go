// Package transport defines the minimal send/receive capabilities the
// orchestrator uses to talk to its peers, decoupling the dispatch logic
// from any concrete wire transport.
package transport

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Send when the peer did not accept the
	// message within the timeout budget.
	ErrTimeout = errors.New("transport: send timed out")
	// ErrClosed is returned when the connection has been closed.
	ErrClosed = errors.New("transport: connection closed")
)

// Sender transmits messages of type T with a per-send timeout budget.
type Sender[T any] interface {
	// Name returns the stable connection name.
	Name() string
	// Send blocks until the message is accepted or the timeout expires.
	Send(msg T, timeout time.Duration) error
	// Ready reports whether the connection can accept sends. The probe is
	// observational and must return within the given budget.
	Ready(timeout time.Duration) bool
}

// Receiver delivers inbound messages of type T to a registered callback.
// At most one callback is active at a time; messages are delivered one at
// a time and each invocation runs to completion before the next delivery.
type Receiver[T any] interface {
	// Name returns the stable connection name.
	Name() string
	// AddCallback installs fn as the message handler and starts delivery.
	// Any previously installed callback is removed first.
	AddCallback(fn func(T))
	// RemoveCallback stops delivery and waits for an in-flight callback
	// invocation to finish. Buffered messages are retained.
	RemoveCallback()
}
