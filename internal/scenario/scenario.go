// Package scenario runs stress checks against the qsync primitives: mutual
// exclusion under contention, bounded semaphore holders and lossless
// producer/consumer hand-off.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/qsync"
)

var (
	// ErrOverlap means two workers were inside a critical section at once.
	ErrOverlap = errors.New("critical sections overlapped")
	// ErrPermitsExceeded means more holders than permits were observed.
	ErrPermitsExceeded = errors.New("semaphore holders exceeded permits")
	// ErrLostItem means a produced item was never consumed.
	ErrLostItem = errors.New("item lost")
	// ErrDuplicateItem means an item was consumed more than once.
	ErrDuplicateItem = errors.New("item consumed more than once")
)

// Report summarises a finished scenario.
type Report struct {
	Name         string
	Acquisitions int64
	// MaxHolders is the largest number of concurrent holders observed.
	MaxHolders int64
	Samples    int
	Elapsed    time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %d acquisitions, max %d holders, %d samples in %s",
		r.Name, r.Acquisitions, r.MaxHolders, r.Samples, r.Elapsed)
}

// holders tracks the current and peak number of goroutines inside a section.
type holders struct {
	cur  atomic.Int64
	peak atomic.Int64
}

func (h *holders) enter() int64 {
	n := h.cur.Add(1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			return n
		}
	}
}

func (h *holders) exit() {
	h.cur.Add(-1)
}

func hold(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// RunMutex has cfg.Workers goroutines each lock a shared Mutex
// cfg.Iterations times and fails if two of them ever hold it together.
func RunMutex(ctx context.Context, cfg MutexConfig) (Report, error) {
	r := Report{Name: "mutex"}
	if err := cfg.Validate(); err != nil {
		return r, err
	}
	m := qsync.NewMutex()
	if cfg.Fair {
		m = qsync.NewFairMutex()
	}

	slog.InfoContext(ctx, "starting scenario",
		slog.String("scenario", r.Name),
		slog.Int("workers", cfg.Workers),
		slog.Int("iterations", cfg.Iterations),
		slog.Bool("fair", cfg.Fair),
	)

	var h holders
	var acquisitions atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for range cfg.Workers {
		g.Go(func() error {
			for range cfg.Iterations {
				if err := m.LockContext(gctx); err != nil {
					return err
				}
				n := h.enter()
				acquisitions.Add(1)
				hold(gctx, cfg.Hold)
				h.exit()
				m.Unlock()
				if n > 1 {
					slog.ErrorContext(gctx, "overlap detected", slog.Int64("holders", n))
					return fmt.Errorf("%w: %d holders", ErrOverlap, n)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	r.Elapsed = time.Since(start)
	r.Acquisitions = acquisitions.Load()
	r.MaxHolders = h.peak.Load()
	if err != nil {
		return r, fmt.Errorf("mutex scenario: %w", err)
	}

	slog.InfoContext(ctx, "scenario finished", slog.String("report", r.String()))
	return r, nil
}

// RunSemaphore has cfg.Workers goroutines contend for cfg.Permits permits
// while a sampler records the number of holders every cfg.SampleInterval.
// It fails if any sample or the observed peak exceeds the permits.
func RunSemaphore(ctx context.Context, cfg SemaphoreConfig) (Report, error) {
	r := Report{Name: "semaphore"}
	if err := cfg.Validate(); err != nil {
		return r, err
	}
	s := qsync.NewSemaphore(cfg.Permits)
	if cfg.Fair {
		s = qsync.NewFairSemaphore(cfg.Permits)
	}

	slog.InfoContext(ctx, "starting scenario",
		slog.String("scenario", r.Name),
		slog.Int64("permits", cfg.Permits),
		slog.Int("workers", cfg.Workers),
		slog.Bool("fair", cfg.Fair),
	)

	var h holders
	var acquisitions atomic.Int64
	var violations atomic.Int64
	start := time.Now()

	workers, wctx := errgroup.WithContext(ctx)
	for range cfg.Workers {
		workers.Go(func() error {
			for range cfg.Iterations {
				if err := s.AcquireContext(wctx, 1); err != nil {
					return err
				}
				h.enter()
				acquisitions.Add(1)
				hold(wctx, cfg.Hold)
				h.exit()
				s.Release(1)
			}
			return nil
		})
	}

	done := make(chan struct{})
	sampled := make(chan int, 1)
	go func() {
		ticker := time.NewTicker(cfg.SampleInterval)
		defer ticker.Stop()
		n := 0
		for {
			select {
			case <-ticker.C:
				n++
				if cur := h.cur.Load(); cur > cfg.Permits {
					violations.Add(1)
					slog.ErrorContext(ctx, "too many holders",
						slog.Int64("holders", cur),
						slog.Int64("permits", cfg.Permits),
					)
				}
			case <-done:
				sampled <- n
				return
			}
		}
	}()

	err := workers.Wait()
	close(done)
	r.Samples = <-sampled
	r.Elapsed = time.Since(start)
	r.Acquisitions = acquisitions.Load()
	r.MaxHolders = h.peak.Load()

	var merr error
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	if v := violations.Load(); v > 0 {
		merr = multierror.Append(merr, fmt.Errorf("%w: %d samples", ErrPermitsExceeded, v))
	}
	if r.MaxHolders > cfg.Permits {
		merr = multierror.Append(merr, fmt.Errorf("%w: peak %d > %d", ErrPermitsExceeded, r.MaxHolders, cfg.Permits))
	}
	if merr != nil {
		return r, fmt.Errorf("semaphore scenario: %w", merr)
	}

	slog.InfoContext(ctx, "scenario finished", slog.String("report", r.String()))
	return r, nil
}

// RunProducerConsumer moves cfg.Producers*cfg.Items distinct items through
// a BlockingQueue of cfg.Capacity and checks that each is consumed exactly
// once.
func RunProducerConsumer(ctx context.Context, cfg QueueConfig) (Report, error) {
	r := Report{Name: "prodcons"}
	if err := cfg.Validate(); err != nil {
		return r, err
	}
	q := qsync.NewBlockingQueue[int](cfg.Capacity)
	total := cfg.Producers * cfg.Items
	seen := make([]atomic.Int32, total)

	slog.InfoContext(ctx, "starting scenario",
		slog.String("scenario", r.Name),
		slog.Int("producers", cfg.Producers),
		slog.Int("consumers", cfg.Consumers),
		slog.Int("capacity", cfg.Capacity),
	)

	start := time.Now()
	var remaining atomic.Int64
	remaining.Store(int64(total))
	var h holders
	g, gctx := errgroup.WithContext(ctx)
	for p := range cfg.Producers {
		g.Go(func() error {
			for i := range cfg.Items {
				if err := q.Put(gctx, p*cfg.Items+i); err != nil {
					return fmt.Errorf("producer %d: %w", p, err)
				}
			}
			return nil
		})
	}
	for c := range cfg.Consumers {
		g.Go(func() error {
			for remaining.Add(-1) >= 0 {
				v, err := q.Take(gctx)
				if err != nil {
					return fmt.Errorf("consumer %d: %w", c, err)
				}
				h.enter()
				seen[v].Add(1)
				h.exit()
			}
			return nil
		})
	}
	err := g.Wait()
	r.Elapsed = time.Since(start)
	r.Acquisitions = int64(total)
	r.MaxHolders = h.peak.Load()
	if err != nil {
		return r, fmt.Errorf("prodcons scenario: %w", err)
	}

	var merr error
	for i := range seen {
		switch n := seen[i].Load(); {
		case n == 0:
			merr = multierror.Append(merr, fmt.Errorf("%w: %d", ErrLostItem, i))
		case n > 1:
			merr = multierror.Append(merr, fmt.Errorf("%w: %d taken %d times", ErrDuplicateItem, i, n))
		}
	}
	if merr != nil {
		return r, fmt.Errorf("prodcons scenario: %w", merr)
	}

	slog.InfoContext(ctx, "scenario finished", slog.String("report", r.String()))
	return r, nil
}
