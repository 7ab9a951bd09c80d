package qsync

import (
	"context"
	"time"
)

// Mutex is a mutual exclusion lock built on a Synchronizer.
//
// State 0 means unlocked and 1 means locked. Like sync.Mutex it has no
// owner and is not reentrant: any goroutine may Unlock it, and locking it
// twice from the same goroutine deadlocks.
//
// Unlike sync.Mutex it supports cancellable and timed acquisition and any
// number of Conditions. A Mutex created with NewFairMutex grants blocking
// Lock calls in arrival order; the default lets newcomers barge ahead of
// queued waiters for throughput.
//
// A Mutex must be created with NewMutex or NewFairMutex.
type Mutex struct {
	_   noCopy
	aqs Synchronizer
}

type mutexPolicy struct {
	UnsupportedPolicy
	s *Synchronizer
}

func (p mutexPolicy) TryAcquire(int64) bool {
	return p.s.CompareAndSwapState(0, 1)
}

func (p mutexPolicy) TryRelease(int64) bool {
	if p.s.State() == 0 {
		panic(ErrIllegalMonitorState)
	}
	p.s.SetState(0)
	return true
}

func (p mutexPolicy) IsHeldExclusively() bool {
	return p.s.State() == 1
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	m := &Mutex{}
	m.aqs.Init(mutexPolicy{s: &m.aqs})
	return m
}

// NewFairMutex returns an unlocked Mutex that grants Lock in FIFO order.
func NewFairMutex() *Mutex {
	m := &Mutex{}
	m.aqs.Init(mutexPolicy{s: &m.aqs}, WithFairness())
	return m
}

// Lock locks m, blocking until it is available.
func (m *Mutex) Lock() {
	m.aqs.Acquire(1)
}

// LockContext locks m unless ctx is done first.
func (m *Mutex) LockContext(ctx context.Context) error {
	return m.aqs.AcquireInterruptibly(ctx, 1)
}

// TryLock locks m only if it is free at the time of the call, even when
// other goroutines are queued.
func (m *Mutex) TryLock() bool {
	return m.aqs.hooks().TryAcquire(1)
}

// TryLockTimeout locks m if it becomes available within timeout.
func (m *Mutex) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return m.aqs.TryAcquireTimeout(ctx, 1, timeout)
}

// Unlock unlocks m. It panics with ErrIllegalMonitorState if m is not
// locked.
func (m *Mutex) Unlock() {
	m.aqs.Release(1)
}

// IsLocked reports whether m is currently locked.
func (m *Mutex) IsLocked() bool {
	return m.aqs.State() != 0
}

// NewCondition returns a Condition bound to m.
func (m *Mutex) NewCondition() *Condition {
	return m.aqs.NewCondition()
}

// QueueLength estimates the number of goroutines waiting in Lock.
func (m *Mutex) QueueLength() int {
	return m.aqs.QueueLength()
}

func (m *Mutex) String() string {
	return m.aqs.String()
}
