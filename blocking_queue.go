package qsync

import (
	"context"
	"time"

	"github.com/gammazero/deque"
)

// BlockingQueue is a bounded FIFO queue whose Put blocks while the queue is
// full and whose Take blocks while it is empty.
//
// One Mutex guards the buffer; producers wait on the notFull Condition and
// consumers on notEmpty, so each insertion wakes exactly one consumer and
// each removal exactly one producer.
//
// Usage:
//
//	q := NewBlockingQueue[int](16)
//	go func() { _ = q.Put(ctx, 42) }()
//	v, err := q.Take(ctx)
type BlockingQueue[T any] struct {
	_        noCopy
	mu       *Mutex
	notFull  *Condition
	notEmpty *Condition
	buf      deque.Deque[T]
	capacity int
}

// NewBlockingQueue returns an empty queue holding at most capacity items.
// It panics if capacity is not positive.
func NewBlockingQueue[T any](capacity int) *BlockingQueue[T] {
	if capacity <= 0 {
		panic("qsync: blocking queue capacity must be positive")
	}
	mu := NewMutex()
	return &BlockingQueue[T]{
		mu:       mu,
		notFull:  mu.NewCondition(),
		notEmpty: mu.NewCondition(),
		capacity: capacity,
	}
}

// push appends v and wakes one consumer. The caller holds mu.
func (q *BlockingQueue[T]) push(v T) {
	q.buf.PushBack(v)
	q.notEmpty.Signal()
}

// pop removes the head and wakes one producer. The caller holds mu.
func (q *BlockingQueue[T]) pop() T {
	v := q.buf.PopFront()
	q.notFull.Signal()
	return v
}

// Put appends v, waiting for space until ctx is done.
func (q *BlockingQueue[T]) Put(ctx context.Context, v T) error {
	if err := q.mu.LockContext(ctx); err != nil {
		return err
	}
	defer q.mu.Unlock()
	for q.buf.Len() == q.capacity {
		if err := q.notFull.Await(ctx); err != nil {
			return err
		}
	}
	q.push(v)
	return nil
}

// Take removes and returns the head, waiting for an item until ctx is done.
func (q *BlockingQueue[T]) Take(ctx context.Context) (T, error) {
	var zero T
	if err := q.mu.LockContext(ctx); err != nil {
		return zero, err
	}
	defer q.mu.Unlock()
	for q.buf.Len() == 0 {
		if err := q.notEmpty.Await(ctx); err != nil {
			return zero, err
		}
	}
	return q.pop(), nil
}

// Offer appends v if there is space and reports whether it did.
func (q *BlockingQueue[T]) Offer(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf.Len() == q.capacity {
		return false
	}
	q.push(v)
	return true
}

// Poll removes the head if there is one.
func (q *BlockingQueue[T]) Poll() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// OfferTimeout appends v, waiting up to timeout for space. It returns false
// with a nil error on timeout.
func (q *BlockingQueue[T]) OfferTimeout(ctx context.Context, v T, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	if err := q.mu.LockContext(ctx); err != nil {
		return false, err
	}
	defer q.mu.Unlock()
	for q.buf.Len() == q.capacity {
		ok, err := q.notFull.AwaitUntil(ctx, deadline)
		if err != nil {
			return false, err
		}
		if !ok && q.buf.Len() == q.capacity {
			return false, nil
		}
	}
	q.push(v)
	return true, nil
}

// PollTimeout removes the head, waiting up to timeout for an item.
func (q *BlockingQueue[T]) PollTimeout(ctx context.Context, timeout time.Duration) (T, bool, error) {
	var zero T
	deadline := time.Now().Add(timeout)
	if err := q.mu.LockContext(ctx); err != nil {
		return zero, false, err
	}
	defer q.mu.Unlock()
	for q.buf.Len() == 0 {
		ok, err := q.notEmpty.AwaitUntil(ctx, deadline)
		if err != nil {
			return zero, false, err
		}
		if !ok && q.buf.Len() == 0 {
			return zero, false, nil
		}
	}
	return q.pop(), true, nil
}

// Len returns the number of queued items.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Len()
}

// Cap returns the queue's capacity.
func (q *BlockingQueue[T]) Cap() int {
	return q.capacity
}

// Drain removes and returns every queued item without blocking.
func (q *BlockingQueue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.buf.Len())
	for q.buf.Len() > 0 {
		out = append(out, q.buf.PopFront())
	}
	q.notFull.SignalAll()
	return out
}
