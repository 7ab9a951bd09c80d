package qsync

import (
	"context"
	"math"
	"time"
)

// Semaphore is a counting semaphore synchronization primitive.
// It allows a fixed number of concurrent accesses to a resource.
//
// The synchronizer state is the number of available permits. Acquire(n)
// takes n permits or queues; Release(n) returns them and wakes as many
// queued acquirers as the released permits can satisfy, in arrival order.
//
// However, unlike sync.Mutex, it does not have an owner: permits can be
// released by a goroutine that never acquired them.
//
// A Semaphore created with NewFairSemaphore never lets a blocking Acquire
// overtake queued waiters. The default lets newcomers barge, which can
// starve a large request behind a stream of small ones.
type Semaphore struct {
	_   noCopy
	aqs Synchronizer
}

type semaphorePolicy struct {
	UnsupportedPolicy
	s *Synchronizer
}

func (p semaphorePolicy) TryAcquireShared(n int64) int64 {
	for {
		avail := p.s.State()
		remaining := avail - n
		if remaining < 0 || p.s.CompareAndSwapState(avail, remaining) {
			return remaining
		}
	}
}

func (p semaphorePolicy) TryReleaseShared(n int64) bool {
	for {
		cur := p.s.State()
		if cur > math.MaxInt64-n {
			panic("qsync: semaphore permit count overflow")
		}
		if p.s.CompareAndSwapState(cur, cur+n) {
			return true
		}
	}
}

// NewSemaphore creates a new Semaphore with a given number of initial
// permits. permits may be negative, in which case releases must happen
// before any acquire succeeds.
func NewSemaphore(permits int64) *Semaphore {
	s := &Semaphore{}
	s.aqs.Init(semaphorePolicy{s: &s.aqs})
	s.aqs.SetState(permits)
	return s
}

// NewFairSemaphore creates a Semaphore that grants blocking acquires in
// FIFO order.
func NewFairSemaphore(permits int64) *Semaphore {
	s := &Semaphore{}
	s.aqs.Init(semaphorePolicy{s: &s.aqs}, WithFairness())
	s.aqs.SetState(permits)
	return s
}

// Acquire acquires n permits.
// It blocks until n permits are available.
func (s *Semaphore) Acquire(n int64) {
	if n <= 0 {
		return
	}
	s.aqs.AcquireShared(n)
}

// AcquireContext acquires n permits unless ctx is done first.
func (s *Semaphore) AcquireContext(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	return s.aqs.AcquireSharedInterruptibly(ctx, n)
}

// TryAcquire attempts to acquire n permits without blocking.
// Returns true on success.
func (s *Semaphore) TryAcquire(n int64) bool {
	if n <= 0 {
		return true
	}
	return s.aqs.hooks().TryAcquireShared(n) >= 0
}

// TryAcquireTimeout acquires n permits if they become available within
// timeout.
func (s *Semaphore) TryAcquireTimeout(ctx context.Context, n int64, timeout time.Duration) (bool, error) {
	if n <= 0 {
		return true, nil
	}
	return s.aqs.TryAcquireSharedTimeout(ctx, n, timeout)
}

// Release releases n permits.
func (s *Semaphore) Release(n int64) {
	if n <= 0 {
		return
	}
	s.aqs.ReleaseShared(n)
}

// AvailablePermits returns the number of permits currently available.
func (s *Semaphore) AvailablePermits() int64 {
	return s.aqs.State()
}

// DrainPermits acquires and returns all permits that are immediately
// available.
func (s *Semaphore) DrainPermits() int64 {
	for {
		cur := s.aqs.State()
		if cur <= 0 || s.aqs.CompareAndSwapState(cur, 0) {
			return max(cur, 0)
		}
	}
}

// ReducePermits shrinks the number of available permits by n without
// blocking. The count may become negative.
func (s *Semaphore) ReducePermits(n int64) {
	if n < 0 {
		panic("qsync: negative permit reduction")
	}
	for {
		cur := s.aqs.State()
		if cur < math.MinInt64+n {
			panic("qsync: semaphore permit count underflow")
		}
		if s.aqs.CompareAndSwapState(cur, cur-n) {
			return
		}
	}
}

// QueueLength estimates the number of goroutines waiting in Acquire.
func (s *Semaphore) QueueLength() int {
	return s.aqs.QueueLength()
}
