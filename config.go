package qsync

import "time"

// defaultSpinThreshold is the remaining time below which a timed wait
// spins rather than parks; parking on a timer cannot be that precise.
const defaultSpinThreshold = time.Microsecond

// Config defines the options a Synchronizer is initialised with.
type Config struct {
	// fair makes the blocking acquire entry points queue behind existing
	// waiters instead of trying the policy first.
	fair bool

	// spinThreshold is the remaining timeout under which timed acquires
	// and awaits stop parking and spin until the deadline.
	spinThreshold time.Duration
}

// WithFairness configures the Synchronizer to skip the fast path while
// other goroutines are queued, so that blocking acquires are granted in
// arrival order. Non-timed Try* calls still barge.
func WithFairness() func(*Config) {
	return func(c *Config) {
		c.fair = true
	}
}

// WithSpinThreshold sets the remaining time under which timed waits spin
// instead of parking. Non-positive values disable spinning.
func WithSpinThreshold(d time.Duration) func(*Config) {
	return func(c *Config) {
		c.spinThreshold = max(d, 0)
	}
}
