package qsync

import (
	"context"
	"time"

	"github.com/llxisdsh/qsync/internal/park"
)

// ============================================================================
// Shared mode
// ============================================================================

// setHeadAndPropagate makes n the head and, if more shared acquires may
// succeed, wakes the next waiter. propagate is the TryAcquireShared result.
func (s *Synchronizer) setHeadAndPropagate(n *node, propagate int64) {
	h := s.head.Load()
	s.setHead(n)
	// Propagate when the policy says so, or when a previous release left a
	// PROPAGATE/SIGNAL mark on the old or the new head. This can cause a
	// spurious wake-up, never a missed one.
	if propagate > 0 || h == nil || h.status.Load() < 0 {
		s.propagateFrom(n)
		return
	}
	if h = s.head.Load(); h == nil || h.status.Load() < 0 {
		s.propagateFrom(n)
	}
}

func (s *Synchronizer) propagateFrom(n *node) {
	if next := n.next.Load(); next == nil || next.isShared() {
		s.doReleaseShared()
	}
}

// doReleaseShared signals the head's successor, or marks the head
// PROPAGATE so that the release is not lost while the head changes under
// it. It loops until the head stays put for a full pass.
func (s *Synchronizer) doReleaseShared() {
	for {
		h := s.head.Load()
		if h != nil && h != s.tail.Load() {
			ws := h.status.Load()
			if ws == statusSignal {
				if !h.status.CompareAndSwap(statusSignal, 0) {
					continue
				}
				s.unparkSuccessor(h)
			} else if ws == 0 && !h.status.CompareAndSwap(0, statusPropagate) {
				continue
			}
		}
		if h == s.head.Load() {
			return
		}
	}
}

// acquireSharedQueued runs the queued shared acquire loop. Cancellation of
// ctx is only observed, as in acquireQueued.
func (s *Synchronizer) acquireSharedQueued(ctx context.Context, arg int64) (interrupted bool) {
	n := s.addWaiter(park.New(), sharedMode)
	tok := n.waiter.Load()
	failed := true
	defer func() {
		if failed {
			s.cancelAcquire(n)
		}
	}()
	p := s.hooks()
	for {
		pred := n.predecessor()
		if pred == s.head.Load() {
			if r := p.TryAcquireShared(arg); r >= 0 {
				s.setHeadAndPropagate(n, r)
				pred.next.Store(nil)
				failed = false
				return interrupted
			}
		}
		if s.shouldParkAfterFailedAcquire(pred, n) && tok.ParkContext(ctx) != nil {
			interrupted = true
			ctx = context.Background()
		}
	}
}

func (s *Synchronizer) doAcquireSharedInterruptibly(ctx context.Context, arg int64) error {
	n := s.addWaiter(park.New(), sharedMode)
	tok := n.waiter.Load()
	failed := true
	defer func() {
		if failed {
			s.cancelAcquire(n)
		}
	}()
	p := s.hooks()
	for {
		pred := n.predecessor()
		if pred == s.head.Load() {
			if r := p.TryAcquireShared(arg); r >= 0 {
				s.setHeadAndPropagate(n, r)
				pred.next.Store(nil)
				failed = false
				return nil
			}
		}
		if s.shouldParkAfterFailedAcquire(pred, n) {
			if err := tok.ParkContext(ctx); err != nil {
				return interruptErr(err)
			}
		}
	}
}

func (s *Synchronizer) doAcquireSharedTimeout(ctx context.Context, arg int64, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return false, nil
	}
	deadline := time.Now().Add(timeout)
	n := s.addWaiter(park.New(), sharedMode)
	tok := n.waiter.Load()
	failed := true
	defer func() {
		if failed {
			s.cancelAcquire(n)
		}
	}()
	p := s.hooks()
	var spins int
	for {
		pred := n.predecessor()
		if pred == s.head.Load() {
			if r := p.TryAcquireShared(arg); r >= 0 {
				s.setHeadAndPropagate(n, r)
				pred.next.Store(nil)
				failed = false
				return true, nil
			}
		}
		if time.Until(deadline) <= 0 {
			return false, nil
		}
		if s.shouldParkAfterFailedAcquire(pred, n) {
			ok, err := s.waitUntil(tok, ctx, deadline, &spins)
			if err != nil {
				return false, interruptErr(err)
			}
			if !ok {
				return false, nil
			}
		}
	}
}

func (s *Synchronizer) tryFastShared(p Policy, arg int64) bool {
	if s.cfg.fair && s.HasQueuedPredecessors() {
		return false
	}
	return p.TryAcquireShared(arg) >= 0
}

// AcquireShared acquires in shared mode, blocking until the policy grants it.
func (s *Synchronizer) AcquireShared(arg int64) {
	if !s.tryFastShared(s.hooks(), arg) {
		s.acquireSharedQueued(context.Background(), arg)
	}
}

// AcquireSharedUninterruptibly is like AcquireShared, but reports whether
// ctx was done while the caller was waiting.
func (s *Synchronizer) AcquireSharedUninterruptibly(ctx context.Context, arg int64) (interrupted bool) {
	if s.tryFastShared(s.hooks(), arg) {
		return false
	}
	if ctx.Err() != nil {
		s.acquireSharedQueued(context.Background(), arg)
		return true
	}
	return s.acquireSharedQueued(ctx, arg)
}

// AcquireSharedInterruptibly acquires in shared mode, aborting if ctx is
// done first. The returned error matches both ErrInterrupted and ctx.Err().
func (s *Synchronizer) AcquireSharedInterruptibly(ctx context.Context, arg int64) error {
	if err := ctx.Err(); err != nil {
		return interruptErr(err)
	}
	if s.tryFastShared(s.hooks(), arg) {
		return nil
	}
	return s.doAcquireSharedInterruptibly(ctx, arg)
}

// TryAcquireSharedTimeout acquires in shared mode, giving up after
// timeout. Results follow TryAcquireTimeout.
func (s *Synchronizer) TryAcquireSharedTimeout(ctx context.Context, arg int64, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, interruptErr(err)
	}
	if s.tryFastShared(s.hooks(), arg) {
		return true, nil
	}
	return s.doAcquireSharedTimeout(ctx, arg, timeout)
}

// ReleaseShared releases in shared mode. When the policy reports that
// waiters may proceed, the wake-up propagates through the queue.
func (s *Synchronizer) ReleaseShared(arg int64) bool {
	if !s.hooks().TryReleaseShared(arg) {
		return false
	}
	s.doReleaseShared()
	return true
}
