package qsync

import (
	"context"
	"time"
)

// Pulse is a reusable broadcast signal that separates waiters into
// generations.
//
// Behavior:
//   - Wait(): Blocks until the NEXT Beat() call.
//   - Beat(): Wakes up all currently waiting goroutines.
//     IMMEDIATELY closes the door for any new Wait() calls (they will wait for the NEXT Beat).
type Pulse struct {
	_    noCopy
	mu   *Mutex
	beat *Condition
	gen  uint64
}

// NewPulse returns a Pulse with no waiters.
func NewPulse() *Pulse {
	mu := NewMutex()
	return &Pulse{mu: mu, beat: mu.NewCondition()}
}

// Beat wakes every goroutine currently in Wait and starts a new generation.
func (p *Pulse) Beat() {
	p.mu.Lock()
	p.gen++
	p.beat.SignalAll()
	p.mu.Unlock()
}

// Wait blocks until the next Beat.
func (p *Pulse) Wait() {
	p.mu.Lock()
	for gen := p.gen; gen == p.gen; {
		p.beat.AwaitUninterruptibly()
	}
	p.mu.Unlock()
}

// WaitContext blocks until the next Beat or until ctx is done.
func (p *Pulse) WaitContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return interruptErr(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for gen := p.gen; gen == p.gen; {
		if err := p.beat.Await(ctx); err != nil {
			if gen != p.gen {
				return nil
			}
			return err
		}
	}
	return nil
}

// WaitTimeout blocks until the next Beat or until timeout elapses. It
// reports whether a Beat arrived.
func (p *Pulse) WaitTimeout(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	p.mu.Lock()
	defer p.mu.Unlock()
	for gen := p.gen; gen == p.gen; {
		if ok, _ := p.beat.AwaitUntil(context.Background(), deadline); !ok && gen == p.gen {
			return false
		}
	}
	return true
}
