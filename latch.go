package qsync

import (
	"context"
	"time"
)

// Latch is a synchronization primitive for "wait for completion" (One-Way Door).
// It supports multiple waiters.
//
// A Latch starts with a count. CountDown decrements it; once it reaches
// zero all current and future Wait calls return immediately. The count
// cannot be reset.
//
// The synchronizer state is the remaining count. Waiters acquire in shared
// mode, so the final CountDown wakes them all through propagation.
type Latch struct {
	_   noCopy
	aqs Synchronizer
}

type latchPolicy struct {
	UnsupportedPolicy
	s *Synchronizer
}

func (p latchPolicy) TryAcquireShared(int64) int64 {
	if p.s.State() == 0 {
		return 1
	}
	return -1
}

func (p latchPolicy) TryReleaseShared(int64) bool {
	for {
		c := p.s.State()
		if c == 0 {
			return false
		}
		if p.s.CompareAndSwapState(c, c-1) {
			return c == 1
		}
	}
}

// NewLatch returns a Latch that opens after count calls to CountDown.
func NewLatch(count int64) *Latch {
	if count < 0 {
		panic("qsync: negative latch count")
	}
	l := &Latch{}
	l.aqs.Init(latchPolicy{s: &l.aqs})
	l.aqs.SetState(count)
	return l
}

// CountDown decrements the count, waking every waiter when it reaches zero.
// Calling it on an open Latch has no effect.
func (l *Latch) CountDown() {
	l.aqs.ReleaseShared(1)
}

// Count returns the remaining count.
func (l *Latch) Count() int64 {
	return l.aqs.State()
}

// Wait blocks until the count reaches zero.
func (l *Latch) Wait() {
	l.aqs.AcquireShared(1)
}

// WaitContext blocks until the count reaches zero or ctx is done.
func (l *Latch) WaitContext(ctx context.Context) error {
	return l.aqs.AcquireSharedInterruptibly(ctx, 1)
}

// WaitTimeout blocks until the count reaches zero, timeout elapses, or ctx
// is done. It reports whether the Latch opened.
func (l *Latch) WaitTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return l.aqs.TryAcquireSharedTimeout(ctx, 1, timeout)
}
