package qsync

import "context"

// Barter (Exchanger) is a synchronization point where two goroutines swap values.
//
// The first goroutine arriving at the exchange point waits for the second.
// When the second arrives, they exchange values and continue.
//
// Types:
//   - T: The type of value being exchanged.
//
// Usage:
//
//	b := NewBarter[string]()
//	// G1
//	v := b.Exchange("from G1")
//	// G2
//	v := b.Exchange("from G2")
//
// Implementation:
// A Mutex guards a single slot.
//   - nil: Empty.
//   - Non-nil: A waiter is parked on its own Condition with its value.
type Barter[T any] struct {
	_    noCopy
	mu   *Mutex
	slot *barterItem[T]
}

type barterItem[T any] struct {
	value   T
	match   T
	matched bool
	cond    *Condition
}

// NewBarter creates a new Barter exchanger.
func NewBarter[T any]() *Barter[T] {
	return &Barter[T]{mu: NewMutex()}
}

// Exchange waits for another goroutine to arrive, then swaps values.
// It returns the value provided by the other goroutine.
func (b *Barter[T]) Exchange(v T) T {
	r, _ := b.exchange(context.Background(), v)
	return r
}

// ExchangeContext is like Exchange but gives up when ctx is done. A caller
// that gives up leaves the slot empty and its value is never delivered.
func (b *Barter[T]) ExchangeContext(ctx context.Context, v T) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, interruptErr(err)
	}
	return b.exchange(ctx, v)
}

func (b *Barter[T]) exchange(ctx context.Context, v T) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if peer := b.slot; peer != nil {
		b.slot = nil
		peer.match = v
		peer.matched = true
		peer.cond.Signal()
		return peer.value, nil
	}

	me := &barterItem[T]{value: v, cond: b.mu.NewCondition()}
	b.slot = me
	for !me.matched {
		if err := me.cond.Await(ctx); err != nil && !me.matched {
			b.slot = nil
			var zero T
			return zero, err
		}
	}
	return me.match, nil
}
