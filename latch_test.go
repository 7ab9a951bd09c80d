package qsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLatchBasic(t *testing.T) {
	e := NewLatch(1)

	start := time.Now()
	time.AfterFunc(100*time.Millisecond, func() {
		e.CountDown()
	})

	e.Wait()
	dur := time.Since(start)
	if dur < 100*time.Millisecond {
		t.Errorf("Wait returned too early: %v", dur)
	}
}

func TestLatchBroadcast(t *testing.T) {
	e := NewLatch(3)
	var count int32
	var wg sync.WaitGroup
	n := 10

	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			e.Wait()
			atomic.AddInt32(&count, 1)
		}()
	}

	// Ensure they are waiting
	time.Sleep(50 * time.Millisecond)
	e.CountDown()
	e.CountDown()
	time.Sleep(10 * time.Millisecond)
	if c := atomic.LoadInt32(&count); c != 0 {
		t.Errorf("Waiters passed early: %d", c)
	}
	if got := e.Count(); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}

	e.CountDown()
	wg.Wait()

	if c := atomic.LoadInt32(&count); c != int32(n) {
		t.Errorf("Not all waiters woke up: %d / %d", c, n)
	}
}

func TestLatchZeroCount(t *testing.T) {
	e := NewLatch(0)

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()

	select {
	case <-done:
		// success
	case <-time.After(100 * time.Millisecond):
		t.Errorf("Wait blocked on a latch created open")
	}
}

func TestLatchExtraCountDown(t *testing.T) {
	e := NewLatch(1)
	e.CountDown()
	e.CountDown() // Should be safe
	if got := e.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
	e.Wait() // Should pass
}

func TestLatchWaitTimeout(t *testing.T) {
	e := NewLatch(1)
	ok, err := e.WaitTimeout(context.Background(), 20*time.Millisecond)
	if ok || err != nil {
		t.Fatalf("WaitTimeout = %v, %v; want false, nil", ok, err)
	}
	e.CountDown()
	ok, err = e.WaitTimeout(context.Background(), 20*time.Millisecond)
	if !ok || err != nil {
		t.Fatalf("WaitTimeout after open = %v, %v; want true, nil", ok, err)
	}
}

func TestLatchWaitContext(t *testing.T) {
	e := NewLatch(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitContext err = %v, want deadline exceeded", err)
	}
}

func TestLatchNegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for negative count")
		}
	}()
	NewLatch(-1)
}
