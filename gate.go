package qsync

import "context"

// Gate is a synchronization primitive that can be manually opened and closed.
//
// State:
//   - Open: Wait returns immediately.
//   - Close: Wait blocks.
//
// A Gate starts closed. Open wakes every goroutine blocked in Wait; a later
// Close makes new Wait calls block again. Woken waiters re-check the gate,
// so one that has not run yet when the gate closes again keeps waiting.
type Gate struct {
	_   noCopy
	aqs Synchronizer
}

const (
	gateClosed = 0
	gateOpen   = 1
)

type gatePolicy struct {
	UnsupportedPolicy
	s *Synchronizer
}

func (p gatePolicy) TryAcquireShared(int64) int64 {
	if p.s.State() == gateOpen {
		return 1
	}
	return -1
}

func (p gatePolicy) TryReleaseShared(int64) bool {
	p.s.SetState(gateOpen)
	return true
}

// NewGate returns a closed Gate.
func NewGate() *Gate {
	g := &Gate{}
	g.aqs.Init(gatePolicy{s: &g.aqs})
	return g
}

// Open signals the gate (sets state to Open).
// All current waiters are woken up.
// Future calls to Wait() return immediately until Close() is called.
func (g *Gate) Open() {
	g.aqs.ReleaseShared(1)
}

// Close signals the gate (sets state to Close).
// Future calls to Wait() will block.
func (g *Gate) Close() {
	g.aqs.SetState(gateClosed)
}

// Wait blocks until the gate is opened (Open).
// If the gate is already opened, it returns immediately.
func (g *Gate) Wait() {
	g.aqs.AcquireShared(1)
}

// WaitContext is like Wait but gives up when ctx is done.
func (g *Gate) WaitContext(ctx context.Context) error {
	return g.aqs.AcquireSharedInterruptibly(ctx, 1)
}

// IsOpen returns true if the gate is currently opened.
func (g *Gate) IsOpen() bool {
	return g.aqs.State() == gateOpen
}
