package qsync

import (
	"sync/atomic"

	"github.com/llxisdsh/qsync/internal/park"
)

// Wait status values. Non-negative values mean the node does not need to
// be signalled, so most code only tests the sign.
const (
	// statusCancelled: the waiter timed out, was interrupted or panicked.
	// Cancelled nodes never leave this status and never block again.
	statusCancelled int32 = 1
	// statusSignal: the successor is (or will soon be) parked, so this
	// node must unpark it when it releases or cancels.
	statusSignal int32 = -1
	// statusCondition: the node sits on a Condition list, not the queue.
	statusCondition int32 = -2
	// statusPropagate: the next shared release must propagate to further
	// nodes. Only ever set on the head.
	statusPropagate int32 = -3
)

// node is a Synchronization Queue element.
//
// A node is in one of three places: new (unlinked), linked into the queue
// through prev/next, or linked into a Condition list through nextWaiter.
// The queue publishes a node by CAS on tail after prev is set, so prev is
// always reliable while next is only a hint and may lag behind.
type node struct {
	status atomic.Int32
	prev   atomic.Pointer[node]
	next   atomic.Pointer[node]
	// waiter is the parked goroutine's token, cleared once the node
	// becomes head or is cancelled.
	waiter atomic.Pointer[park.Token]
	// nextWaiter links Condition lists. On queue nodes it holds the mode:
	// sharedMode for shared waiters, nil for exclusive ones.
	nextWaiter atomic.Pointer[node]
}

// sharedMode marks a node waiting in shared mode. Exclusive mode is nil.
var sharedMode = &node{}

func newNode(tok *park.Token, mode *node) *node {
	n := &node{}
	n.waiter.Store(tok)
	n.nextWaiter.Store(mode)
	return n
}

func (n *node) isShared() bool {
	return n.nextWaiter.Load() == sharedMode
}

// predecessor returns prev. Queued nodes always have one.
func (n *node) predecessor() *node {
	p := n.prev.Load()
	if p == nil {
		panic("qsync: queued node without predecessor")
	}
	return p
}
