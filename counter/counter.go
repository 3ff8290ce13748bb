// Package counter provides the running message/error counters a session
// reports through Session.Stats (spec.md §6.2 "show neighbor").
package counter

import (
	"fmt"
	"sync/atomic"
)

// Counter is a monotonically increasing 64-bit count, safe to increment
// from a readLoop goroutine while the reactor tick reads it concurrently.
type Counter struct {
	count uint64
}

// New creates a zeroed Counter.
func New() *Counter {
	return new(Counter)
}

// Reset zeroes the count, for a session re-entering Idle after a reset.
func (c *Counter) Reset() {
	atomic.StoreUint64(&c.count, 0)
}

// Increment adds one.
func (c *Counter) Increment() {
	atomic.AddUint64(&c.count, 1)
}

// Value reads the current count.
func (c *Counter) Value() uint64 {
	return atomic.LoadUint64(&c.count)
}

func (c *Counter) String() string {
	return fmt.Sprintf("%d", c.Value())
}
