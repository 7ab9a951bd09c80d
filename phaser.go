package qsync

import "context"

// Phaser is a reusable synchronization barrier, similar to java.util.concurrent.Phaser.
// It supports dynamic registration of parties and synchronization in phases.
//
// Concepts:
//   - Phase: An integer generation number.
//   - Parties: Number of registered participants.
//   - Arrive: A party signals it reached the barrier.
//   - Await: A party waits for others to arrive.
//
// Arrival bookkeeping is guarded by a Mutex; waiting for a phase is
// delegated to an Epoch that advances in step with the phase.
type Phaser struct {
	_       noCopy
	mu      *Mutex
	phase   int
	parties int
	arrived int
	epoch   *Epoch
}

// NewPhaser creates a new Phaser with 0 parties.
func NewPhaser() *Phaser {
	return &Phaser{mu: NewMutex(), epoch: NewEpoch()}
}

// Register adds a new party to the phaser.
// Returns the current phase number.
func (p *Phaser) Register() int {
	return p.BulkRegister(1)
}

// BulkRegister adds n parties and returns the current phase.
func (p *Phaser) BulkRegister(n int) int {
	if n < 0 {
		panic("qsync: negative party count")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parties += n
	return p.phase
}

// advance completes the current phase. The caller holds mu.
func (p *Phaser) advance() int {
	p.phase++
	p.arrived = 0
	p.epoch.Increment()
	return p.phase
}

// arrive records one arrival, optionally removing the party, and returns
// the phase arrived at and whether that arrival completed it.
func (p *Phaser) arrive(deregister bool) (phase int, advanced bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.parties == 0 {
		panic("qsync: arrive on phaser with no registered parties")
	}
	phase = p.phase
	if deregister {
		p.parties--
	} else {
		p.arrived++
	}
	if p.arrived >= p.parties {
		p.advance()
		return phase, true
	}
	return phase, false
}

// Arrive signals that the current party has reached the barrier and
// returns the phase it arrived at. It does NOT wait for others.
func (p *Phaser) Arrive() int {
	phase, _ := p.arrive(false)
	return phase
}

// ArriveAndDeregister signals arrival, removes the party and returns the
// phase it arrived at.
func (p *Phaser) ArriveAndDeregister() int {
	phase, _ := p.arrive(true)
	return phase
}

// AwaitAdvance waits for the phase to advance from the given 'phase'.
// If the current phase is already greater than 'phase', it returns immediately.
// Returns the new phase number.
func (p *Phaser) AwaitAdvance(phase int) int {
	p.epoch.WaitAtLeast(uint32(phase + 1))
	return int(p.epoch.Current())
}

// AwaitAdvanceContext is like AwaitAdvance but gives up when ctx is done.
func (p *Phaser) AwaitAdvanceContext(ctx context.Context, phase int) (int, error) {
	if err := p.epoch.WaitAtLeastContext(ctx, uint32(phase+1)); err != nil {
		return phase, err
	}
	return int(p.epoch.Current()), nil
}

// ArriveAndAwaitAdvance is equivalent to Arrive() then AwaitAdvance().
func (p *Phaser) ArriveAndAwaitAdvance() int {
	phase, _ := p.arrive(false)
	return p.AwaitAdvance(phase)
}

// Phase returns the current phase number.
func (p *Phaser) Phase() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Parties returns the number of registered parties.
func (p *Phaser) Parties() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parties
}

// Arrived returns the number of parties that arrived in the current phase.
func (p *Phaser) Arrived() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.arrived
}
