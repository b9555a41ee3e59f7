// Package stats provides simple per-cycle counters for the engine: sent,
// received, decode failures, self-suppressions, and route
// replacements/deletions, reset and surfaced on the per-cycle log line.
package stats

import "sync/atomic"

// Counter is a 64-bit, concurrency-safe counter.
type Counter struct {
	count atomic.Uint64
}

// Increment adds one to the counter.
func (c *Counter) Increment() {
	c.count.Add(1)
}

// Add adds n to the counter.
func (c *Counter) Add(n uint64) {
	c.count.Add(n)
}

// Value returns the counter's current value.
func (c *Counter) Value() uint64 {
	return c.count.Load()
}

// Reset zeroes the counter and returns its value beforehand.
func (c *Counter) Reset() uint64 {
	return c.count.Swap(0)
}

// Cycle holds the counters for one protocol cycle.
type Cycle struct {
	Sent           Counter
	Received       Counter
	DecodeFailures Counter
	SelfSuppressed Counter
	RoutesReplaced Counter
	RoutesDeleted  Counter
}

// ResetAll zeroes every counter and returns a snapshot of the prior
// values, for logging at the end of a cycle.
func (c *Cycle) ResetAll() Snapshot {
	return Snapshot{
		Sent:           c.Sent.Reset(),
		Received:       c.Received.Reset(),
		DecodeFailures: c.DecodeFailures.Reset(),
		SelfSuppressed: c.SelfSuppressed.Reset(),
		RoutesReplaced: c.RoutesReplaced.Reset(),
		RoutesDeleted:  c.RoutesDeleted.Reset(),
	}
}

// Snapshot is an immutable view of a Cycle's counters at a point in time.
type Snapshot struct {
	Sent           uint64
	Received       uint64
	DecodeFailures uint64
	SelfSuppressed uint64
	RoutesReplaced uint64
	RoutesDeleted  uint64
}
