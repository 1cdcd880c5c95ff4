package testutil

import "sync"

// ManualClock is a thread-safe epoch-millisecond clock under test control.
//
// It satisfies the arena's Clock interface: every transition stamped from
// a ManualClock is reproducible, so two runs of the same scenario produce
// byte-identical snapshots.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu    sync.Mutex
	nowMs int64
}

// NewManualClock creates a clock frozen at the given epoch-ms instant.
func NewManualClock(startMs int64) *ManualClock {
	return &ManualClock{nowMs: startMs}
}

// NowMs returns the current instant without advancing it.
func (c *ManualClock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowMs
}

// Advance moves the clock forward by ms and returns the new instant.
// Negative deltas are ignored; the clock never moves backward.
func (c *ManualClock) Advance(ms int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ms > 0 {
		c.nowMs += ms
	}
	return c.nowMs
}

// Set jumps the clock to an absolute instant. Used for test reuse.
func (c *ManualClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowMs = ms
}
