package testutil

import "sync/atomic"

// StepClock hands out monotonically increasing step numbers so recorded
// events can be compared across runs.
//
// The first call to Tick returns 1. Safe for concurrent use.
type StepClock struct {
	step atomic.Int64
}

// NewStepClock creates a clock at step 0.
func NewStepClock() *StepClock {
	return &StepClock{}
}

// Tick advances the clock and returns the new step.
func (c *StepClock) Tick() int64 {
	return c.step.Add(1)
}

// Current returns the last step handed out.
func (c *StepClock) Current() int64 {
	return c.step.Load()
}

// Reset rewinds the clock so the next Tick returns 1 again.
func (c *StepClock) Reset() {
	c.step.Store(0)
}
