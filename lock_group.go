package qsync

import (
	"context"

	"github.com/llxisdsh/pb"
)

// MutexGroup allows locking on arbitrary keys (string, int, struct, etc.).
// It dynamically manages a set of Mutexes associated with keys.
//
// Features:
//   - Infinite Keys: No need to pre-allocate locks.
//   - Auto-Cleanup: Locks are removed from memory when unlocked and no one else is waiting.
//   - Low Overhead: Uses a concurrent hash map internally.
//
// Usage:
//
//	var group MutexGroup[string]
//	group.Lock("user-123")
//	// Critical section for user-123
//	group.Unlock("user-123")
//
// Implementation Note:
// Every entry carries a reference count of goroutines that hold or wait for
// its lock. The map's per-key processing keeps count updates and deletion
// atomic.
type MutexGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *groupEntry[*Mutex]]
}

// RWMutexGroup allows shared Reader-Writer locking on arbitrary keys.
// It matches the interface of MutexGroup but supports RLock/RUnlock.
//
// Usage:
//
//	var group RWMutexGroup[string]
//
//	// Readers
//	group.RLock("config")
//	read(config)
//	group.RUnlock("config")
//
//	// Writer
//	group.Lock("config")
//	write(config)
//	group.Unlock("config")
type RWMutexGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *groupEntry[*RWMutex]]
}

type groupEntry[L any] struct {
	mu  L
	ref int32
}

// retain returns the entry for k, creating it with newLock if absent, and
// counts the caller as a user.
func retain[K comparable, L any](m *pb.MapOf[K, *groupEntry[L]], k K, newLock func() L) *groupEntry[L] {
	v, _ := m.ProcessEntry(
		k,
		func(e *pb.EntryOf[K, *groupEntry[L]]) (*pb.EntryOf[K, *groupEntry[L]], *groupEntry[L], bool) {
			if e != nil {
				e.Value.ref++
				return e, e.Value, true
			}
			v := &groupEntry[L]{mu: newLock(), ref: 1}
			return &pb.EntryOf[K, *groupEntry[L]]{Value: v}, v, false
		},
	)
	return v
}

// release drops one user of k's entry and deletes the entry with the last.
func release[K comparable, L any](m *pb.MapOf[K, *groupEntry[L]], k K) {
	_, _ = m.ProcessEntry(
		k,
		func(e *pb.EntryOf[K, *groupEntry[L]]) (*pb.EntryOf[K, *groupEntry[L]], *groupEntry[L], bool) {
			if e == nil {
				return nil, nil, false
			}
			e.Value.ref--
			if e.Value.ref <= 0 {
				return nil, nil, true
			}
			return e, e.Value, true
		},
	)
}

// Lock locks the Mutex for k.
func (g *MutexGroup[K]) Lock(k K) {
	retain(&g.m, k, NewMutex).mu.Lock()
}

// LockContext locks the Mutex for k unless ctx is done first.
func (g *MutexGroup[K]) LockContext(ctx context.Context, k K) error {
	if err := retain(&g.m, k, NewMutex).mu.LockContext(ctx); err != nil {
		release(&g.m, k)
		return err
	}
	return nil
}

// TryLock locks the Mutex for k if it is free.
func (g *MutexGroup[K]) TryLock(k K) bool {
	if retain(&g.m, k, NewMutex).mu.TryLock() {
		return true
	}
	release(&g.m, k)
	return false
}

// Unlock unlocks the Mutex for k. Unlocking a key that is not locked is a
// no-op.
func (g *MutexGroup[K]) Unlock(k K) {
	v, ok := g.m.Load(k)
	if !ok {
		return
	}
	v.mu.Unlock()
	release(&g.m, k)
}

// Len returns the number of keys currently held or waited for.
func (g *MutexGroup[K]) Len() int {
	return g.m.Size()
}

// Lock acquires the write lock for k.
func (g *RWMutexGroup[K]) Lock(k K) {
	retain(&g.m, k, NewRWMutex).mu.Lock()
}

// LockContext acquires the write lock for k unless ctx is done first.
func (g *RWMutexGroup[K]) LockContext(ctx context.Context, k K) error {
	if err := retain(&g.m, k, NewRWMutex).mu.LockContext(ctx); err != nil {
		release(&g.m, k)
		return err
	}
	return nil
}

// Unlock releases the write lock for k.
func (g *RWMutexGroup[K]) Unlock(k K) {
	v, ok := g.m.Load(k)
	if !ok {
		return
	}
	v.mu.Unlock()
	release(&g.m, k)
}

// RLock acquires a read lock for k.
func (g *RWMutexGroup[K]) RLock(k K) {
	retain(&g.m, k, NewRWMutex).mu.RLock()
}

// RLockContext acquires a read lock for k unless ctx is done first.
func (g *RWMutexGroup[K]) RLockContext(ctx context.Context, k K) error {
	if err := retain(&g.m, k, NewRWMutex).mu.RLockContext(ctx); err != nil {
		release(&g.m, k)
		return err
	}
	return nil
}

// RUnlock releases a read lock for k.
func (g *RWMutexGroup[K]) RUnlock(k K) {
	v, ok := g.m.Load(k)
	if !ok {
		return
	}
	v.mu.RUnlock()
	release(&g.m, k)
}

// Len returns the number of keys currently held or waited for.
func (g *RWMutexGroup[K]) Len() int {
	return g.m.Size()
}
