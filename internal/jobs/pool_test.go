package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func startPool(t *testing.T, cfg PoolConfig) *Pool {
	t.Helper()
	p := NewPool(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func TestPool_Run(t *testing.T) {
	t.Run("returns the work result", func(t *testing.T) {
		p := startPool(t, PoolConfig{WorkerCount: 2})

		var got int
		err := p.Run(context.Background(), "sum", func(ctx context.Context) error {
			got = 10 + 8 + 12
			return nil
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got != 30 {
			t.Errorf("expected 30, got %d", got)
		}

		boom := errors.New("boom")
		if err := p.Run(context.Background(), "fail", func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}

		status := p.Status()
		if status.Completed != 1 || status.Failed != 1 {
			t.Errorf("unexpected counters: %+v", status)
		}
	})

	t.Run("recovers panics", func(t *testing.T) {
		p := startPool(t, PoolConfig{WorkerCount: 1})
		err := p.Run(context.Background(), "panic", func(ctx context.Context) error {
			panic("bad input")
		})
		if err == nil {
			t.Fatal("expected error from panicking work")
		}
		if err := p.Run(context.Background(), "after", func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("pool should keep working after a panic: %v", err)
		}
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		p := startPool(t, PoolConfig{WorkerCount: 2, QueueSize: 20})

		var running, peak atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = p.Run(context.Background(), "work", func(ctx context.Context) error {
					n := running.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					running.Add(-1)
					return nil
				})
			}()
		}
		wg.Wait()
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent units, saw %d", peak.Load())
		}
	})

	t.Run("caller cancellation", func(t *testing.T) {
		p := startPool(t, PoolConfig{WorkerCount: 1})

		release := make(chan struct{})
		blocker, err := p.Submit(context.Background(), "blocker", func(ctx context.Context) error {
			<-release
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err = p.Run(ctx, "waits", func(ctx context.Context) error { return nil })
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		close(release)
		<-blocker
	})
}

func TestPool_QueueFull(t *testing.T) {
	// Not started: nothing drains the queue.
	p := NewPool(PoolConfig{Name: "merge", WorkerCount: 1, QueueSize: 1})
	noop := func(ctx context.Context) error { return nil }

	if _, err := p.Submit(context.Background(), "first", noop); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	_, err := p.Submit(context.Background(), "second", noop)
	if !errors.Is(err, ErrWorkerQueueFull) {
		t.Fatalf("expected ErrWorkerQueueFull, got %v", err)
	}
	if status := p.Status(); status.QueueDepth != 1 || status.Name != "merge" {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestPool_Stopped(t *testing.T) {
	p := NewPool(PoolConfig{WorkerCount: 1, QueueSize: 4})
	noop := func(ctx context.Context) error { return nil }

	queued, err := p.Submit(context.Background(), "queued", noop)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Start(ctx)

	// Workers may or may not pick the unit up before noticing shutdown.
	if err := <-queued; err != nil && !errors.Is(err, ErrPoolStopped) {
		t.Errorf("unexpected result for queued work: %v", err)
	}
	if _, err := p.Submit(context.Background(), "late", noop); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
}
