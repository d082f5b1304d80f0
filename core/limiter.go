package core

import (
	"fmt"
	"sync"
)

// CallLimiter enforces a maximum number of generation calls per run, guarding
// against runaway loops.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a limiter. If max == 0, unlimited calls are allowed.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Increment increases the call counter and returns an error once the limit is
// exceeded.
func (cl *CallLimiter) Increment() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.count++
	if cl.max > 0 && cl.count > cl.max {
		return fmt.Errorf("exceeded max generation calls: %d", cl.max)
	}
	return nil
}

// Count returns the number of calls made so far.
func (cl *CallLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (cl *CallLimiter) Remaining() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.max == 0 {
		return -1
	}
	return cl.max - cl.count
}
