package qsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMutexGroupBasic(t *testing.T) {
	var g MutexGroup[string]
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	counter := 0
	for range n {
		go func() {
			defer wg.Done()
			g.Lock("k")
			counter++
			g.Unlock("k")
		}()
	}
	wg.Wait()
	if counter != n {
		t.Fatalf("counter = %d, want %d", counter, n)
	}
	if got := g.Len(); got != 0 {
		t.Fatalf("Len after all unlocks = %d, want 0", got)
	}
}

func TestMutexGroupKeysIndependent(t *testing.T) {
	var g MutexGroup[int]
	g.Lock(1)
	done := make(chan struct{})
	go func() {
		g.Lock(2)
		g.Unlock(2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on key 2 blocked by key 1")
	}
	if g.TryLock(1) {
		t.Fatal("TryLock succeeded on a held key")
	}
	g.Unlock(1)
	if got := g.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}
}

func TestMutexGroupLockContext(t *testing.T) {
	var g MutexGroup[string]
	g.Lock("k")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.LockContext(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("LockContext err = %v, want deadline exceeded", err)
	}
	g.Unlock("k")
	// The failed waiter released its reference.
	if _, ok := g.m.Load("k"); ok {
		t.Fatal("entry should be deleted once the last user is gone")
	}
}

func TestRWMutexGroup_Basic(t *testing.T) {
	var g RWMutexGroup[string]
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)

	// Test Concurrent Readers
	for range n {
		go func() {
			defer wg.Done()
			g.RLock("key")
			time.Sleep(time.Microsecond)
			g.RUnlock("key")
		}()
	}
	wg.Wait()

	// Test Writer Exclusion
	g.Lock("key")
	done := make(chan struct{})
	go func() {
		g.RLock("key") // Should block
		close(done)
		g.RUnlock("key")
	}()

	select {
	case <-done:
		t.Fatal("RLock acquired while Lock held")
	case <-time.After(10 * time.Millisecond):
	}
	g.Unlock("key")

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("RLock not acquired after Unlock")
	}
}

func TestRWMutexGroup_RefCounting(t *testing.T) {
	var g RWMutexGroup[int]

	g.RLock(1)
	if _, ok := g.m.Load(1); !ok {
		t.Fatal("Entry should exist after RLock")
	}
	g.RLock(1)
	g.RUnlock(1)
	if _, ok := g.m.Load(1); !ok {
		t.Fatal("Entry should survive while a reader remains")
	}

	g.RUnlock(1)
	if _, ok := g.m.Load(1); ok {
		t.Fatal("Entry should be auto-deleted after RUnlock (ref=0)")
	}
}
