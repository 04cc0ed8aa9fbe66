package testutil

import (
	"sync"
	"time"
)

// DefaultStart is the first instant a FixedClock created with a zero start reports.
var DefaultStart = time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)

// FixedClock is a deterministic replacement for time.Now.
//
// Each call to Now returns the previous instant plus step, starting at start.
// Results built with a FixedClock have reproducible timestamps, which keeps
// golden snapshots byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewFixedClock creates a clock whose first reading is start.
// A zero start means DefaultStart; a zero step means one second.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	if start.IsZero() {
		start = DefaultStart
	}
	if step == 0 {
		step = time.Second
	}
	return &FixedClock{start: start, step: step}
}

// Now returns the next instant. Monotonic: never returns an earlier time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Readings returns how many times Now has been called.
func (c *FixedClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset makes the next call to Now return start again.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
