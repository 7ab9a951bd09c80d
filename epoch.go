package qsync

import (
	"context"
	"sync/atomic"
)

// Epoch represents a monotonically increasing counter that supports "wait for target" semantics.
// It is effective for coordinating phases, versions, or milestones.
//
// Features:
//   - Add(n): Advances the epoch by n.
//   - WaitAtLeast(n): Blocks until the epoch reaches at least n.
//
// Every waiter gets its own Condition on a shared Mutex, and Add signals
// only the conditions whose targets are met, so unrelated waiters stay
// parked.
//
// Example:
//
//	e := NewEpoch()
//	go func() { e.WaitAtLeast(5); print("Reached 5!") }()
//	e.Add(5) // Wakes the waiter
type Epoch struct {
	_     noCopy
	value atomic.Uint32
	mu    *Mutex
	// waiters is protected by mu.
	waiters []*epochWaiter
}

type epochWaiter struct {
	target uint32
	cond   *Condition
}

// NewEpoch returns an Epoch at zero.
func NewEpoch() *Epoch {
	return &Epoch{mu: NewMutex()}
}

// Current returns the current epoch value.
func (e *Epoch) Current() uint32 {
	return e.value.Load()
}

// Increment advances the epoch by one.
func (e *Epoch) Increment() uint32 {
	return e.Add(1)
}

// Add advances the epoch by delta and wakes waiters whose targets are met.
func (e *Epoch) Add(delta uint32) uint32 {
	if delta == 0 {
		return e.Current()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.value.Add(delta)
	kept := e.waiters[:0]
	for _, w := range e.waiters {
		if w.target <= v {
			w.cond.Signal()
		} else {
			kept = append(kept, w)
		}
	}
	clear(e.waiters[len(kept):])
	e.waiters = kept
	return v
}

// WaitAtLeast blocks until the epoch reaches at least the target value.
func (e *Epoch) WaitAtLeast(target uint32) {
	_ = e.wait(context.Background(), target)
}

// WaitAtLeastContext is like WaitAtLeast but gives up when ctx is done.
func (e *Epoch) WaitAtLeastContext(ctx context.Context, target uint32) error {
	if err := ctx.Err(); err != nil {
		return interruptErr(err)
	}
	return e.wait(ctx, target)
}

func (e *Epoch) wait(ctx context.Context, target uint32) error {
	if e.value.Load() >= target {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var w *epochWaiter
	for e.value.Load() < target {
		if w == nil {
			w = &epochWaiter{target: target, cond: e.mu.NewCondition()}
			e.waiters = append(e.waiters, w)
		}
		if err := w.cond.Await(ctx); err != nil {
			if e.value.Load() >= target {
				return nil
			}
			e.remove(w)
			return err
		}
		// Signalled, so Add already dropped w.
		w = nil
	}
	return nil
}

func (e *Epoch) remove(w *epochWaiter) {
	for i, x := range e.waiters {
		if x == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}
