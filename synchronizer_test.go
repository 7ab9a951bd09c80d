package qsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/llxisdsh/qsync/internal/opt"
)

// holdPolicy is an exclusive policy whose state is the amount held, so a
// holder can acquire more than one unit at a time.
type holdPolicy struct {
	UnsupportedPolicy
	s *Synchronizer
}

func (p holdPolicy) TryAcquire(n int64) bool {
	return p.s.CompareAndSwapState(0, n)
}

func (p holdPolicy) TryRelease(n int64) bool {
	c := p.s.State()
	if c < n || c == 0 {
		panic(ErrIllegalMonitorState)
	}
	p.s.SetState(c - n)
	return c == n
}

func (p holdPolicy) IsHeldExclusively() bool {
	return p.s.State() != 0
}

func newHoldSync(options ...func(*Config)) *Synchronizer {
	s := &Synchronizer{}
	s.Init(holdPolicy{s: s}, options...)
	return s
}

func waitQueued(t *testing.T, s *Synchronizer, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for s.QueueLength() != n {
		if time.Now().After(deadline) {
			t.Fatalf("QueueLength = %d, want %d", s.QueueLength(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSynchronizer_MutualExclusion(t *testing.T) {
	s := newHoldSync()
	const goroutines = 3
	iters := 100
	if opt.Race_ {
		iters = 50
	}
	var inside atomic.Int32
	var overlap atomic.Bool
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iters {
				s.Acquire(1)
				if inside.Add(1) != 1 {
					overlap.Store(true)
				}
				inside.Add(-1)
				s.Release(1)
			}
		}()
	}
	wg.Wait()
	if overlap.Load() {
		t.Fatal("two goroutines held the synchronizer at once")
	}
	if s.State() != 0 {
		t.Fatalf("state = %d, want 0", s.State())
	}
}

func TestSynchronizer_ReleaseWakesQueued(t *testing.T) {
	s := newHoldSync()
	s.Acquire(1)
	done := make(chan struct{})
	go func() {
		s.Acquire(1)
		close(done)
	}()
	waitQueued(t, s, 1)
	if !s.HasQueuedThreads() || !s.HasContended() {
		t.Fatal("queue should be non-empty")
	}
	s.Release(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued acquirer never woke")
	}
	if s.QueueLength() != 0 {
		t.Fatalf("QueueLength = %d, want 0", s.QueueLength())
	}
	s.Release(1)
}

func TestSynchronizer_TryAcquireTimeout(t *testing.T) {
	s := newHoldSync()
	s.Acquire(1)

	start := time.Now()
	ok, err := s.TryAcquireTimeout(context.Background(), 1, 30*time.Millisecond)
	if ok || err != nil {
		t.Fatalf("TryAcquireTimeout = %v, %v; want false, nil", ok, err)
	}
	if d := time.Since(start); d < 30*time.Millisecond {
		t.Fatalf("timed out early after %v", d)
	}
	if s.QueueLength() != 0 {
		t.Fatalf("cancelled node still counted: %d", s.QueueLength())
	}

	ok, err = s.TryAcquireTimeout(context.Background(), 1, 0)
	if ok || err != nil {
		t.Fatalf("zero timeout = %v, %v; want false, nil", ok, err)
	}
	s.Release(1)
	ok, err = s.TryAcquireTimeout(context.Background(), 1, 0)
	if !ok || err != nil {
		t.Fatalf("zero timeout on free = %v, %v; want true, nil", ok, err)
	}
}

func TestSynchronizer_CancelledMiddleNode(t *testing.T) {
	s := newHoldSync()
	s.Acquire(1)

	first := make(chan struct{})
	go func() {
		s.Acquire(1)
		close(first)
		s.Release(1)
	}()
	waitQueued(t, s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.AcquireInterruptibly(ctx, 1) }()
	waitQueued(t, s, 2)

	last := make(chan struct{})
	go func() {
		s.Acquire(1)
		close(last)
		s.Release(1)
	}()
	waitQueued(t, s, 3)

	cancel()
	if err := <-errc; !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want ErrInterrupted and context.Canceled", err)
	}
	waitQueued(t, s, 2)

	s.Release(1)
	for _, ch := range []chan struct{}{first, last} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("waiters behind a cancelled node were not released")
		}
	}
}

func TestSynchronizer_AcquireInterruptiblyDoneContext(t *testing.T) {
	s := newHoldSync()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.AcquireInterruptibly(ctx, 1); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if s.State() != 0 {
		t.Fatal("acquired despite a done context")
	}
}

func TestSynchronizer_AcquireUninterruptiblyReports(t *testing.T) {
	s := newHoldSync()
	if s.AcquireUninterruptibly(context.Background(), 1) {
		t.Fatal("uncontended acquire reported an interrupt")
	}

	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan bool, 1)
	go func() { res <- s.AcquireUninterruptibly(ctx, 1) }()
	waitQueued(t, s, 1)
	cancel()

	select {
	case <-res:
		t.Fatal("AcquireUninterruptibly returned without acquiring")
	case <-time.After(20 * time.Millisecond):
	}
	s.Release(1)
	select {
	case interrupted := <-res:
		if !interrupted {
			t.Fatal("interrupt while waiting was not reported")
		}
	case <-time.After(time.Second):
		t.Fatal("AcquireUninterruptibly never acquired")
	}
	s.Release(1)
}

func TestSynchronizer_ReleaseUnheldPanics(t *testing.T) {
	m := NewMutex()
	defer func() {
		if r := recover(); r != ErrIllegalMonitorState {
			t.Fatalf("recovered %v, want ErrIllegalMonitorState", r)
		}
	}()
	m.Unlock()
}

func TestSynchronizer_UnsupportedPolicy(t *testing.T) {
	m := NewMutex()
	defer func() {
		if r := recover(); r != ErrUnsupported {
			t.Fatalf("recovered %v, want ErrUnsupported", r)
		}
	}()
	// Mutex has no shared mode.
	m.aqs.AcquireShared(1)
}

func TestSynchronizer_UseBeforeInit(t *testing.T) {
	var s Synchronizer
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic before Init")
		}
	}()
	s.Acquire(1)
}

// flakyPolicy fails the fast path and panics once queued.
type flakyPolicy struct {
	UnsupportedPolicy
	s     *Synchronizer
	calls *atomic.Int32
}

func (p flakyPolicy) TryAcquire(int64) bool {
	if p.calls.Add(1) == 2 {
		panic("policy failure")
	}
	return p.s.CompareAndSwapState(0, 1)
}

func (p flakyPolicy) TryRelease(int64) bool {
	p.s.SetState(0)
	return true
}

func TestSynchronizer_PanicInPolicyCancelsNode(t *testing.T) {
	s := &Synchronizer{}
	var calls atomic.Int32
	s.Init(flakyPolicy{s: s, calls: &calls})
	s.SetState(1) // held, so the first acquire queues

	func() {
		defer func() {
			if r := recover(); r != "policy failure" {
				t.Fatalf("recovered %v, want policy failure", r)
			}
		}()
		s.Acquire(1)
	}()
	if got := s.QueueLength(); got != 0 {
		t.Fatalf("QueueLength after panic = %d, want 0", got)
	}

	s.Release(1)
	done := make(chan struct{})
	go func() {
		s.Acquire(1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("synchronizer unusable after a policy panic")
	}
}

func TestSynchronizer_FairnessBlocksBarging(t *testing.T) {
	s := newHoldSync(WithFairness())
	if !s.Fair() {
		t.Fatal("Fair() = false")
	}
	s.Acquire(1)
	go func() {
		s.Acquire(1)
		s.Release(1)
	}()
	waitQueued(t, s, 1)
	if !s.HasQueuedPredecessors() {
		t.Fatal("HasQueuedPredecessors = false with a waiter queued")
	}
	if !s.FirstQueuedIsExclusive() {
		t.Fatal("FirstQueuedIsExclusive = false for an exclusive waiter")
	}

	s.Release(1)
	// Whoever comes next must queue behind anyone still waiting.
	ok, err := s.TryAcquireTimeout(context.Background(), 1, time.Second)
	if !ok || err != nil {
		t.Fatalf("TryAcquireTimeout = %v, %v", ok, err)
	}
	s.Release(1)
}

func TestSynchronizer_SpinThreshold(t *testing.T) {
	s := newHoldSync(WithSpinThreshold(time.Hour))
	s.Acquire(1)
	ok, err := s.TryAcquireTimeout(context.Background(), 1, 5*time.Millisecond)
	if ok || err != nil {
		t.Fatalf("spinning acquire = %v, %v; want false, nil", ok, err)
	}
	s.Release(1)
}

func TestSynchronizer_String(t *testing.T) {
	s := newHoldSync()
	s.Acquire(2)
	str := s.String()
	if !strings.Contains(str, "state=2") || !strings.Contains(str, "queue=empty") {
		t.Fatalf("String() = %q", str)
	}
	s.Release(2)
}

func TestSynchronizer_SharedPropagation(t *testing.T) {
	l := NewLatch(1)
	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			l.Wait()
		}()
	}
	waitQueued(t, &l.aqs, n)
	l.CountDown()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("one release did not propagate: %d still queued", l.aqs.QueueLength())
	}
}
