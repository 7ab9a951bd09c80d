package qsync

import "context"

// Rally is a reusable barrier: a fixed party of goroutines waits at Meet
// until all of them have arrived, then they all continue together and the
// barrier resets for the next generation.
//
// Rally is built on a Mutex and a single Condition. Each trip of the
// barrier starts a new generation, so a fast goroutine that re-enters Meet
// before slower ones have woken cannot be mistaken for part of the old
// generation.
type Rally struct {
	_    noCopy
	mu   *Mutex
	trip *Condition
	gen  uint64
	// arrived counts callers of the current generation.
	arrived int
}

// NewRally returns a Rally with no one waiting.
func NewRally() *Rally {
	mu := NewMutex()
	return &Rally{mu: mu, trip: mu.NewCondition()}
}

// Meet waits until parties callers have called Meet on this barrier.
//
// panic if parties <= 0.
//
// Returns the arrival index (0 to parties-1), where parties-1 indicates
// the caller was the last to arrive (the one who tripped the barrier).
func (r *Rally) Meet(parties int) int {
	idx, _ := r.meet(context.Background(), parties)
	return idx
}

// MeetContext is like Meet but gives up when ctx is done. A caller that
// gives up withdraws its arrival, so the generation still needs parties
// callers to trip.
func (r *Rally) MeetContext(ctx context.Context, parties int) (int, error) {
	return r.meet(ctx, parties)
}

func (r *Rally) meet(ctx context.Context, parties int) (int, error) {
	if parties <= 0 {
		panic("qsync: parties must be positive")
	}
	if err := ctx.Err(); err != nil {
		return -1, interruptErr(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	gen := r.gen
	idx := r.arrived
	r.arrived++
	if r.arrived >= parties {
		r.arrived = 0
		r.gen++
		r.trip.SignalAll()
		return idx, nil
	}
	for gen == r.gen {
		if err := r.trip.Await(ctx); err != nil {
			if gen != r.gen {
				// Tripped while we were giving up; count as arrived.
				return idx, nil
			}
			r.arrived--
			return -1, err
		}
	}
	return idx, nil
}

// Waiting returns the number of callers blocked in the current generation.
func (r *Rally) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arrived
}
