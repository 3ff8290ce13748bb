// Package timer wraps time.AfterFunc with the Running/Reset/Stop surface
// the session FSM's connect-retry, hold, and keepalive timers need (RFC
// 4271 §8 "the timer expiration events ... Actual code should handle the
// state transitions that flow from these events").
package timer

import (
	"sync/atomic"
	"time"
)

// Timer drives one of the FSM's timers. Unlike a bare time.Timer, Running
// answers safely from a goroutine other than the one that created it - the
// reactor tick calls it from outside whatever goroutine the underlying
// callback fires on.
type Timer struct {
	timer    *time.Timer
	interval time.Duration
	running  atomic.Bool
}

// New creates a timer that calls f once, d from now.
func New(d time.Duration, f func()) *Timer {
	t := &Timer{interval: d}
	t.running.Store(true)
	t.timer = time.AfterFunc(d, t.preflight(f))
	return t
}

// preflight marks the timer no-longer-running before invoking the caller's
// callback, so a Running() check racing with the callback never reports a
// timer as running after its function has already started.
func (t *Timer) preflight(f func()) func() {
	return func() {
		t.running.Store(false)
		f()
	}
}

// Reset restarts the timer at its original interval. time.Timer built via
// AfterFunc never sends on its C channel (the runtime calls the function
// directly), so unlike a plain time.Timer, Stop never needs draining here.
func (t *Timer) Reset() {
	t.timer.Stop()
	t.running.Store(true)
	t.timer.Reset(t.interval)
}

// Stop cancels the timer. Safe to call on a timer that has already fired
// or already been stopped.
func (t *Timer) Stop() {
	t.timer.Stop()
	t.running.Store(false)
}

// Running reports whether the timer is still counting down.
func (t *Timer) Running() bool {
	return t.running.Load()
}
