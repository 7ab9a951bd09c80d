package qsync

import (
	"context"
	"sync"
	"time"
)

// RWMutex is a reader/writer mutual exclusion lock built on a Synchronizer.
//
// Writers acquire in exclusive mode and readers in shared mode on the same
// queue. A reader arriving while a writer is first in the queue waits
// behind it, so a stream of readers cannot starve writers. Like
// sync.RWMutex it has no owner and is not reentrant.
//
// Conditions created by NewCondition belong to the write lock.
//
// State layout:
//   - Bit 0:  writer holds the lock
//   - Bit 1+: number of readers holding the lock
type RWMutex struct {
	_   noCopy
	aqs Synchronizer
}

const (
	rwWriteMask = 1
	rwReadShift = 1
	rwReadUnit  = 1 << rwReadShift
)

type rwPolicy struct {
	s *Synchronizer
}

func (p rwPolicy) TryAcquire(int64) bool {
	return p.s.CompareAndSwapState(0, rwWriteMask)
}

func (p rwPolicy) TryRelease(int64) bool {
	if p.s.State()&rwWriteMask == 0 {
		panic(ErrIllegalMonitorState)
	}
	p.s.SetState(0)
	return true
}

func (p rwPolicy) TryAcquireShared(int64) int64 {
	for {
		c := p.s.State()
		if c&rwWriteMask != 0 || p.s.FirstQueuedIsExclusive() {
			return -1
		}
		if p.s.CompareAndSwapState(c, c+rwReadUnit) {
			return 1
		}
	}
}

func (p rwPolicy) TryReleaseShared(int64) bool {
	for {
		c := p.s.State()
		if c < rwReadUnit {
			panic(ErrIllegalMonitorState)
		}
		next := c - rwReadUnit
		if p.s.CompareAndSwapState(c, next) {
			// Only the last reader out lets a writer in.
			return next == 0
		}
	}
}

func (p rwPolicy) IsHeldExclusively() bool {
	return p.s.State()&rwWriteMask != 0
}

// NewRWMutex returns an unlocked RWMutex.
func NewRWMutex() *RWMutex {
	rw := &RWMutex{}
	rw.aqs.Init(rwPolicy{s: &rw.aqs})
	return rw
}

// NewFairRWMutex returns an RWMutex whose blocking Lock and RLock calls
// never overtake queued goroutines.
func NewFairRWMutex() *RWMutex {
	rw := &RWMutex{}
	rw.aqs.Init(rwPolicy{s: &rw.aqs}, WithFairness())
	return rw
}

// Lock acquires the write lock.
func (rw *RWMutex) Lock() {
	rw.aqs.Acquire(1)
}

// LockContext acquires the write lock unless ctx is done first.
func (rw *RWMutex) LockContext(ctx context.Context) error {
	return rw.aqs.AcquireInterruptibly(ctx, 1)
}

// TryLock acquires the write lock if it is free, ignoring the queue.
func (rw *RWMutex) TryLock() bool {
	return rw.aqs.CompareAndSwapState(0, rwWriteMask)
}

// TryLockTimeout acquires the write lock if it becomes free within timeout.
func (rw *RWMutex) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return rw.aqs.TryAcquireTimeout(ctx, 1, timeout)
}

// Unlock releases the write lock.
func (rw *RWMutex) Unlock() {
	rw.aqs.Release(1)
}

// RLock acquires a read lock.
func (rw *RWMutex) RLock() {
	rw.aqs.AcquireShared(1)
}

// RLockContext acquires a read lock unless ctx is done first.
func (rw *RWMutex) RLockContext(ctx context.Context) error {
	return rw.aqs.AcquireSharedInterruptibly(ctx, 1)
}

// TryRLock acquires a read lock if no writer holds the lock, even when a
// writer is queued.
func (rw *RWMutex) TryRLock() bool {
	for {
		c := rw.aqs.State()
		if c&rwWriteMask != 0 {
			return false
		}
		if rw.aqs.CompareAndSwapState(c, c+rwReadUnit) {
			return true
		}
	}
}

// RUnlock releases a read lock.
func (rw *RWMutex) RUnlock() {
	rw.aqs.ReleaseShared(1)
}

// Readers returns the number of goroutines holding a read lock.
func (rw *RWMutex) Readers() int {
	return int(rw.aqs.State() >> rwReadShift)
}

// IsWriteLocked reports whether a writer holds the lock.
func (rw *RWMutex) IsWriteLocked() bool {
	return rw.aqs.State()&rwWriteMask != 0
}

// NewCondition returns a Condition bound to the write lock.
func (rw *RWMutex) NewCondition() *Condition {
	return rw.aqs.NewCondition()
}

// RLocker returns a sync.Locker that calls RLock and RUnlock.
func (rw *RWMutex) RLocker() sync.Locker {
	return (*rlocker)(rw)
}

type rlocker RWMutex

func (r *rlocker) Lock()   { (*RWMutex)(r).RLock() }
func (r *rlocker) Unlock() { (*RWMutex)(r).RUnlock() }
