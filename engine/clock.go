package engine

import "sync/atomic"

// Clock supplies the monotonically increasing timestamp the Engine
// assigns to each order at insertion, used only to break priority ties.
// Wall-clock generation is treated as an external concern; production
// callers may inject a Clock backed by whatever logical or wall-clock
// source fits their deployment, and tests can inject one that is fully
// deterministic.
type Clock interface {
	// Now returns a value strictly greater than every previous call's
	// result for the lifetime of the Clock.
	Now() uint64
}

// counterClock is the default Clock: a lock-free monotonically increasing
// counter, sufficient to break ties without depending on wall-clock
// resolution or monotonicity guarantees from the OS.
type counterClock struct {
	n atomic.Uint64
}

// NewCounterClock returns the engine's default Clock implementation.
func NewCounterClock() Clock {
	return &counterClock{}
}

func (c *counterClock) Now() uint64 {
	return c.n.Add(1)
}
