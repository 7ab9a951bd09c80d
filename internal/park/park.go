// Package park provides the suspend/resume primitive the synchronizer
// queue parks its waiters on.
//
// A Token belongs to one waiting goroutine. Unpark deposits at most one
// pending permit; Park consumes it, returning immediately if it was already
// deposited. Parking can also end early (cancellation, deadline), so
// callers always re-check their wait condition in a loop.
package park

import (
	"context"
	"time"
)

// Token is the opaque per-waiter handle that Park and Unpark operate on.
//
// Size: 8 bytes (one channel pointer).
type Token struct {
	permit chan struct{}
}

// New returns a Token with no pending permit.
func New() *Token {
	return &Token{permit: make(chan struct{}, 1)}
}

// Unpark makes the permit available. If the owner is parked it resumes;
// otherwise its next Park returns immediately. Calling Unpark repeatedly
// before a Park still leaves a single permit.
func (t *Token) Unpark() {
	select {
	case t.permit <- struct{}{}:
	default:
	}
}

// Park blocks until the permit is available and consumes it.
func (t *Token) Park() {
	<-t.permit
}

// ParkContext is like Park but returns ctx.Err() once ctx is done.
// The permit is left untouched in that case.
func (t *Token) ParkContext(ctx context.Context) error {
	select {
	case <-t.permit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParkTimeout parks for at most d. It returns nil when the permit was
// consumed or the time elapsed, and ctx.Err() if ctx ended first.
// Callers tell timeout from wake-up by checking their own deadline.
func (t *Token) ParkTimeout(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.permit:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports whether a permit is waiting to be consumed.
func (t *Token) Pending() bool {
	return len(t.permit) > 0
}
