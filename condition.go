package qsync

import (
	"context"
	"time"

	"github.com/llxisdsh/qsync/internal/park"
)

// Condition is a list of goroutines waiting for a logical signal while not
// holding a Synchronizer that they otherwise hold exclusively.
//
// Await releases the Synchronizer completely, saving its state, and parks
// on the Condition list. Signal moves the longest waiter back to the
// Synchronizer queue, where it competes to reacquire with the saved state;
// the signaller keeps its own hold. Every method requires the caller to hold
// the Synchronizer exclusively, as reported by the policy's
// IsHeldExclusively, and panics with ErrIllegalMonitorState otherwise.
//
// Usage:
//
//	m.Lock()
//	for !ready {
//		cond.AwaitUninterruptibly()
//	}
//	m.Unlock()
type Condition struct {
	_ noCopy
	s *Synchronizer
	// The list is only touched while s is held exclusively.
	first *node
	last  *node
}

// NewCondition returns a Condition bound to s. It is only meaningful for
// policies that support exclusive mode and IsHeldExclusively.
func (s *Synchronizer) NewCondition() *Condition {
	return &Condition{s: s}
}

// Owns reports whether c was created by s.
func (s *Synchronizer) Owns(c *Condition) bool {
	return c != nil && c.s == s
}

// HasWaiters reports whether any goroutine is awaiting c. The caller must
// hold s exclusively.
func (s *Synchronizer) HasWaiters(c *Condition) bool {
	if !s.Owns(c) {
		panic("qsync: condition not owned by synchronizer")
	}
	return c.HasWaiters()
}

// WaitQueueLength estimates the number of goroutines awaiting c. The
// caller must hold s exclusively.
func (s *Synchronizer) WaitQueueLength(c *Condition) int {
	if !s.Owns(c) {
		panic("qsync: condition not owned by synchronizer")
	}
	return c.WaitQueueLength()
}

func (c *Condition) checkHeld() {
	if !c.s.hooks().IsHeldExclusively() {
		panic(ErrIllegalMonitorState)
	}
}

// addWaiter appends a new CONDITION node for the caller.
func (c *Condition) addWaiter() *node {
	c.checkHeld()
	t := c.last
	if t != nil && t.status.Load() != statusCondition {
		c.unlinkCancelled()
		t = c.last
	}
	n := newNode(park.New(), nil)
	n.status.Store(statusCondition)
	if t == nil {
		c.first = n
	} else {
		t.nextWaiter.Store(n)
	}
	c.last = n
	return n
}

// unlinkCancelled drops nodes that stopped waiting on the condition, either
// cancelled or already transferred after an interrupt.
func (c *Condition) unlinkCancelled() {
	var trail *node
	for t := c.first; t != nil; {
		next := t.nextWaiter.Load()
		if t.status.Load() != statusCondition {
			t.nextWaiter.Store(nil)
			if trail == nil {
				c.first = next
			} else {
				trail.nextWaiter.Store(next)
			}
			if next == nil {
				c.last = trail
			}
		} else {
			trail = t
		}
		t = next
	}
}

// transferForSignal moves n from a condition list to the queue. It returns
// false if n was cancelled before the signal.
func (s *Synchronizer) transferForSignal(n *node) bool {
	if !n.status.CompareAndSwap(statusCondition, 0) {
		return false
	}
	// Ask the new predecessor to signal n. If it is cancelled or the
	// request fails, wake n so that it resynchronises itself.
	p := s.enq(n)
	if ws := p.status.Load(); ws > 0 || !p.status.CompareAndSwap(ws, statusSignal) {
		if tok := n.waiter.Load(); tok != nil {
			tok.Unpark()
		}
	}
	return true
}

// transferAfterCancelledWait moves n to the queue after its wait ended
// without a signal. It returns true if the cancellation came first, false
// if a signal had already claimed the node.
func (s *Synchronizer) transferAfterCancelledWait(n *node) bool {
	if n.status.CompareAndSwap(statusCondition, 0) {
		s.enq(n)
		return true
	}
	// A signaller is mid-transfer; it will finish enq shortly.
	var spins int
	for !s.isOnSyncQueue(n) {
		delay(&spins)
	}
	return false
}

// fullyRelease releases the whole state held by the caller and returns it
// for reacquisition.
func (s *Synchronizer) fullyRelease(n *node) int64 {
	saved := s.State()
	ok := false
	defer func() {
		if !ok {
			n.status.Store(statusCancelled)
		}
	}()
	if !s.Release(saved) {
		panic(ErrIllegalMonitorState)
	}
	ok = true
	return saved
}

// Signal moves the longest waiting goroutine, if any, to the Synchronizer
// queue. The caller keeps its hold.
func (c *Condition) Signal() {
	c.checkHeld()
	for first := c.first; first != nil; first = c.first {
		c.first = first.nextWaiter.Load()
		if c.first == nil {
			c.last = nil
		}
		first.nextWaiter.Store(nil)
		if c.s.transferForSignal(first) {
			return
		}
	}
}

// SignalAll moves every waiting goroutine to the Synchronizer queue.
func (c *Condition) SignalAll() {
	c.checkHeld()
	first := c.first
	c.first, c.last = nil, nil
	for first != nil {
		next := first.nextWaiter.Load()
		first.nextWaiter.Store(nil)
		c.s.transferForSignal(first)
		first = next
	}
}

// afterWait reacquires with the saved state and tidies the list.
func (c *Condition) afterWait(n *node, saved int64) {
	c.s.acquireQueued(n, saved, context.Background())
	if n.nextWaiter.Load() != nil {
		c.unlinkCancelled()
	}
}

// AwaitUninterruptibly waits until signalled. It returns holding the
// Synchronizer with the state saved when it released.
func (c *Condition) AwaitUninterruptibly() {
	n := c.addWaiter()
	saved := c.s.fullyRelease(n)
	tok := n.waiter.Load()
	for !c.s.isOnSyncQueue(n) {
		tok.Park()
	}
	c.afterWait(n, saved)
}

// Await waits until signalled or until ctx is done. Either way it returns
// holding the Synchronizer with the saved state. It returns an error
// matching ErrInterrupted and ctx.Err() only when ctx ended the wait before
// a signal did; a signal that won the race is not lost.
func (c *Condition) Await(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return interruptErr(err)
	}
	n := c.addWaiter()
	saved := c.s.fullyRelease(n)
	tok := n.waiter.Load()
	var cause error
	for !c.s.isOnSyncQueue(n) {
		if err := tok.ParkContext(ctx); err != nil {
			if c.s.transferAfterCancelledWait(n) {
				cause = err
			}
			break
		}
	}
	c.afterWait(n, saved)
	if cause != nil {
		return interruptErr(cause)
	}
	return nil
}

// AwaitTimeout waits until signalled, until timeout elapses or until ctx
// is done, and then reacquires. signalled is false on timeout; err is set
// as in Await.
func (c *Condition) AwaitTimeout(ctx context.Context, timeout time.Duration) (signalled bool, err error) {
	return c.AwaitUntil(ctx, time.Now().Add(timeout))
}

// AwaitUntil is like AwaitTimeout with an absolute deadline.
func (c *Condition) AwaitUntil(ctx context.Context, deadline time.Time) (signalled bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, interruptErr(err)
	}
	n := c.addWaiter()
	saved := c.s.fullyRelease(n)
	tok := n.waiter.Load()
	signalled = true
	var cause error
	var spins int
	for !c.s.isOnSyncQueue(n) {
		ok, perr := c.s.waitUntil(tok, ctx, deadline, &spins)
		if !ok || perr != nil {
			if c.s.transferAfterCancelledWait(n) {
				signalled = false
				cause = perr
			}
			break
		}
	}
	c.afterWait(n, saved)
	if cause != nil {
		return false, interruptErr(cause)
	}
	return signalled, nil
}

// HasWaiters reports whether any goroutine is awaiting c.
func (c *Condition) HasWaiters() bool {
	c.checkHeld()
	for w := c.first; w != nil; w = w.nextWaiter.Load() {
		if w.status.Load() == statusCondition {
			return true
		}
	}
	return false
}

// WaitQueueLength estimates the number of goroutines awaiting c.
func (c *Condition) WaitQueueLength() int {
	c.checkHeld()
	n := 0
	for w := c.first; w != nil; w = w.nextWaiter.Load() {
		if w.status.Load() == statusCondition {
			n++
		}
	}
	return n
}
