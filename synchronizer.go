package qsync

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/llxisdsh/qsync/internal/opt"
	"github.com/llxisdsh/qsync/internal/park"
)

// Synchronizer is a queue-based building block for blocking primitives.
//
// It keeps a single int64 state whose meaning is owned by a Policy, and a
// lock-free FIFO of parked waiters. A caller first tries the policy; only
// when that fails is it queued, and it then re-checks the policy each time
// it reaches the front. Callers arriving on the fast path may barge ahead
// of queued waiters unless the Synchronizer is configured WithFairness.
//
// Exclusive mode (at most one holder) and shared mode (bounded concurrent
// holders) share the same queue. In shared mode a successful acquire wakes
// the next shared waiter so that one release can unblock a whole run of
// waiters.
//
// A Synchronizer must be bound to its policy with Init before use and must
// not be copied afterwards.
//
// Usage:
//
//	type mutexPolicy struct {
//		qsync.UnsupportedPolicy
//		s *qsync.Synchronizer
//	}
//
//	func (p mutexPolicy) TryAcquire(int64) bool { return p.s.CompareAndSwapState(0, 1) }
//	...
//
//	var s qsync.Synchronizer
//	s.Init(mutexPolicy{s: &s})
//	s.Acquire(1)
//	s.Release(1)
type Synchronizer struct {
	_     noCopy
	state atomic.Int64
	_     opt.Pad_

	// head and tail are created lazily on first contention. If head is
	// non-nil its status is never statusCancelled.
	head atomic.Pointer[node]
	tail atomic.Pointer[node]

	policy Policy
	cfg    Config
}

// Init binds the policy and applies options. It must be called once, before
// the Synchronizer is shared.
func (s *Synchronizer) Init(p Policy, options ...func(*Config)) {
	if p == nil {
		panic("qsync: nil policy")
	}
	cfg := Config{spinThreshold: defaultSpinThreshold}
	for _, o := range options {
		o(&cfg)
	}
	s.policy = p
	s.cfg = cfg
}

func (s *Synchronizer) hooks() Policy {
	p := s.policy
	if p == nil {
		panic("qsync: Synchronizer used before Init")
	}
	return p
}

// State returns the current state with acquire semantics.
func (s *Synchronizer) State() int64 {
	return s.state.Load()
}

// SetState stores the state with release semantics.
func (s *Synchronizer) SetState(v int64) {
	s.state.Store(v)
}

// CompareAndSwapState sets the state to new if it currently equals old.
func (s *Synchronizer) CompareAndSwapState(old, new int64) bool {
	return s.state.CompareAndSwap(old, new)
}

// Fair reports whether the Synchronizer was configured WithFairness.
func (s *Synchronizer) Fair() bool {
	return s.cfg.fair
}

// ============================================================================
// Queue
// ============================================================================

// enq appends n to the queue, creating the dummy head on first use, and
// returns n's predecessor.
func (s *Synchronizer) enq(n *node) *node {
	for {
		t := s.tail.Load()
		if t == nil {
			if s.head.CompareAndSwap(nil, &node{}) {
				s.tail.Store(s.head.Load())
			}
			continue
		}
		n.prev.Store(t)
		if s.tail.CompareAndSwap(t, n) {
			t.next.Store(n)
			return t
		}
	}
}

// addWaiter queues a node for the calling goroutine in the given mode.
func (s *Synchronizer) addWaiter(tok *park.Token, mode *node) *node {
	n := newNode(tok, mode)
	if pred := s.tail.Load(); pred != nil {
		n.prev.Store(pred)
		if s.tail.CompareAndSwap(pred, n) {
			pred.next.Store(n)
			return n
		}
	}
	s.enq(n)
	return n
}

// setHead makes n the head. Only the goroutine that just acquired through
// n calls it, so no CAS is needed.
func (s *Synchronizer) setHead(n *node) {
	s.head.Store(n)
	n.waiter.Store(nil)
	n.prev.Store(nil)
}

// unparkSuccessor wakes the first live node after n.
func (s *Synchronizer) unparkSuccessor(n *node) {
	if ws := n.status.Load(); ws < 0 {
		n.status.CompareAndSwap(ws, 0)
	}
	// next may not be visible yet for a node that is still enqueueing, or
	// may be cancelled; in both cases walk back from tail, where prev
	// links are always set.
	succ := n.next.Load()
	if succ == nil || succ.status.Load() > 0 {
		succ = nil
		for t := s.tail.Load(); t != nil && t != n; t = t.prev.Load() {
			if t.status.Load() <= 0 {
				succ = t
			}
		}
	}
	if succ != nil {
		if tok := succ.waiter.Load(); tok != nil {
			tok.Unpark()
		}
	}
}

// cancelAcquire abandons n: it is marked cancelled, spliced out past any
// cancelled predecessors and, if that could leave a successor without a
// signalling predecessor, the successor is woken here.
func (s *Synchronizer) cancelAcquire(n *node) {
	if n == nil {
		return
	}
	n.waiter.Store(nil)

	pred := n.prev.Load()
	for pred.status.Load() > 0 {
		pred = pred.prev.Load()
		n.prev.Store(pred)
	}
	predNext := pred.next.Load()

	// Other nodes skip past us from here on.
	n.status.Store(statusCancelled)

	if n == s.tail.Load() && s.tail.CompareAndSwap(n, pred) {
		pred.next.CompareAndSwap(predNext, nil)
		return
	}

	// If the successor needs a signal, try to give it a predecessor that
	// will signal it; otherwise wake it so that it re-links itself.
	ws := pred.status.Load()
	if pred != s.head.Load() &&
		(ws == statusSignal || (ws <= 0 && pred.status.CompareAndSwap(ws, statusSignal))) &&
		pred.waiter.Load() != nil {
		if next := n.next.Load(); next != nil && next.status.Load() <= 0 {
			pred.next.CompareAndSwap(predNext, next)
		}
	} else {
		s.unparkSuccessor(n)
	}
}

// shouldParkAfterFailedAcquire reports whether n may park. It parks only
// once pred has promised a signal; otherwise it skips cancelled
// predecessors or requests the signal and asks the caller to retry first.
func (s *Synchronizer) shouldParkAfterFailedAcquire(pred, n *node) bool {
	ws := pred.status.Load()
	if ws == statusSignal {
		return true
	}
	if ws > 0 {
		for {
			pred = pred.prev.Load()
			n.prev.Store(pred)
			if pred.status.Load() <= 0 {
				break
			}
		}
		pred.next.Store(n)
	} else {
		// 0 or statusPropagate. Retry once more before parking.
		pred.status.CompareAndSwap(ws, statusSignal)
	}
	return false
}

// waitUntil parks tok until deadline, spinning when the remaining time is
// below the configured threshold. ok is false once the deadline has passed.
func (s *Synchronizer) waitUntil(tok *park.Token, ctx context.Context, deadline time.Time, spins *int) (ok bool, err error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false, nil
	}
	if remaining > s.cfg.spinThreshold {
		return true, tok.ParkTimeout(ctx, remaining)
	}
	if !trySpin(spins) {
		runtime.Gosched()
	}
	return true, ctx.Err()
}

// ============================================================================
// Exclusive mode
// ============================================================================

// acquireQueued runs the queued exclusive acquire loop for n. ctx is only
// observed, never acted upon: once it is done the loop stops watching it
// and reports interrupted when it finally acquires.
func (s *Synchronizer) acquireQueued(n *node, arg int64, ctx context.Context) (interrupted bool) {
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
		if pred == s.head.Load() && p.TryAcquire(arg) {
			s.setHead(n)
			pred.next.Store(nil)
			failed = false
			return interrupted
		}
		if s.shouldParkAfterFailedAcquire(pred, n) && tok.ParkContext(ctx) != nil {
			interrupted = true
			ctx = context.Background()
		}
	}
}

func (s *Synchronizer) doAcquireInterruptibly(ctx context.Context, arg int64) error {
	n := s.addWaiter(park.New(), nil)
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
		if pred == s.head.Load() && p.TryAcquire(arg) {
			s.setHead(n)
			pred.next.Store(nil)
			failed = false
			return nil
		}
		if s.shouldParkAfterFailedAcquire(pred, n) {
			if err := tok.ParkContext(ctx); err != nil {
				return interruptErr(err)
			}
		}
	}
}

func (s *Synchronizer) doAcquireTimeout(ctx context.Context, arg int64, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return false, nil
	}
	deadline := time.Now().Add(timeout)
	n := s.addWaiter(park.New(), nil)
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
		if pred == s.head.Load() && p.TryAcquire(arg) {
			s.setHead(n)
			pred.next.Store(nil)
			failed = false
			return true, nil
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

// tryFast runs the exclusive fast path, honouring fairness.
func (s *Synchronizer) tryFast(p Policy, arg int64) bool {
	if s.cfg.fair && s.HasQueuedPredecessors() {
		return false
	}
	return p.TryAcquire(arg)
}

// Acquire acquires in exclusive mode, blocking until the policy grants it.
// Context cancellation plays no part; see AcquireInterruptibly.
func (s *Synchronizer) Acquire(arg int64) {
	p := s.hooks()
	if !s.tryFast(p, arg) {
		s.acquireQueued(s.addWaiter(park.New(), nil), arg, context.Background())
	}
}

// AcquireUninterruptibly is like Acquire, but reports whether ctx was done
// while the caller was waiting. The acquire always completes.
func (s *Synchronizer) AcquireUninterruptibly(ctx context.Context, arg int64) (interrupted bool) {
	p := s.hooks()
	if s.tryFast(p, arg) {
		return false
	}
	if ctx.Err() != nil {
		s.acquireQueued(s.addWaiter(park.New(), nil), arg, context.Background())
		return true
	}
	return s.acquireQueued(s.addWaiter(park.New(), nil), arg, ctx)
}

// AcquireInterruptibly acquires in exclusive mode, aborting if ctx is done
// first. The returned error matches both ErrInterrupted and ctx.Err().
func (s *Synchronizer) AcquireInterruptibly(ctx context.Context, arg int64) error {
	if err := ctx.Err(); err != nil {
		return interruptErr(err)
	}
	if s.tryFast(s.hooks(), arg) {
		return nil
	}
	return s.doAcquireInterruptibly(ctx, arg)
}

// TryAcquireTimeout acquires in exclusive mode, giving up after timeout. It
// returns false with a nil error on timeout and false with an interrupted
// error if ctx is done first.
func (s *Synchronizer) TryAcquireTimeout(ctx context.Context, arg int64, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, interruptErr(err)
	}
	if s.tryFast(s.hooks(), arg) {
		return true, nil
	}
	return s.doAcquireTimeout(ctx, arg, timeout)
}

// Release releases in exclusive mode and wakes the next waiter if the
// policy reports the state fully released. It returns the policy's result.
func (s *Synchronizer) Release(arg int64) bool {
	if !s.hooks().TryRelease(arg) {
		return false
	}
	if h := s.head.Load(); h != nil && h.status.Load() != 0 {
		s.unparkSuccessor(h)
	}
	return true
}

// ============================================================================
// Queue inspection
// ============================================================================

// HasQueuedThreads reports whether any goroutine may be waiting. Because
// cancellation can happen at any time the answer is only a hint.
func (s *Synchronizer) HasQueuedThreads() bool {
	return s.head.Load() != s.tail.Load()
}

// HasContended reports whether any goroutine has ever had to queue.
func (s *Synchronizer) HasContended() bool {
	return s.head.Load() != nil
}

// QueueLength estimates the number of goroutines waiting to acquire.
func (s *Synchronizer) QueueLength() int {
	n := 0
	for p := s.tail.Load(); p != nil; p = p.prev.Load() {
		if p.waiter.Load() != nil {
			n++
		}
	}
	return n
}

// HasQueuedPredecessors reports whether a caller that is not yet queued
// would have to wait behind another goroutine. Fair policies consult it
// before acquiring on the fast path.
func (s *Synchronizer) HasQueuedPredecessors() bool {
	// Read tail before head: head is always set before tail.
	t := s.tail.Load()
	h := s.head.Load()
	if h == t {
		return false
	}
	// A front node that already gave up is not a predecessor.
	first := h.next.Load()
	return first == nil || first.status.Load() <= 0
}

// FirstQueuedIsExclusive reports whether the goroutine at the front of the
// queue waits in exclusive mode. Read/write policies use it to keep
// readers from starving a queued writer.
func (s *Synchronizer) FirstQueuedIsExclusive() bool {
	h := s.head.Load()
	if h == nil {
		return false
	}
	first := h.next.Load()
	return first != nil && !first.isShared() && first.waiter.Load() != nil
}

// isOnSyncQueue reports whether a node that started on a Condition list
// has been transferred to the queue.
func (s *Synchronizer) isOnSyncQueue(n *node) bool {
	if n.status.Load() == statusCondition || n.prev.Load() == nil {
		return false
	}
	if n.next.Load() != nil {
		return true
	}
	// prev is set but the tail CAS may have failed; search from tail.
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t == n {
			return true
		}
	}
	return false
}

// String renders the state and whether the queue is empty.
func (s *Synchronizer) String() string {
	q := "empty"
	if s.HasQueuedThreads() {
		q = "nonempty"
	}
	return fmt.Sprintf("qsync.Synchronizer{state=%d, queue=%s}", s.State(), q)
}
