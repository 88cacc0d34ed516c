package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Pool runs CPU-bound work (audio merges, splits, probes) on a fixed
// number of workers. All workers share a single queue.
type Pool struct {
	name        string
	logger      *slog.Logger
	workerCount int
	queueSize   int

	queue   chan *workUnit
	stopped chan struct{}
	once    sync.Once

	inFlight  atomic.Int32
	completed atomic.Int64
	failed    atomic.Int64
}

// PoolConfig configures a new Pool.
type PoolConfig struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // Number of worker goroutines (default: 4)
	QueueSize   int // Queue size (default: 100)
}

// NewPool creates a pool. Work can be queued immediately but only runs
// once Start is called.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "cpu"
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}

	return &Pool{
		name:        name,
		logger:      logger.With("pool", name, "type", PoolTypeCPU, "workers", workerCount),
		workerCount: workerCount,
		queueSize:   queueSize,
		queue:       make(chan *workUnit, queueSize),
		stopped:     make(chan struct{}),
	}
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Start runs the workers. Blocks until ctx is cancelled, after which
// queued and future work fails with ErrPoolStopped.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("pool starting", "queue_size", p.queueSize)

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}

	<-ctx.Done()
	p.once.Do(func() { close(p.stopped) })
	wg.Wait()
	p.drain()
	p.logger.Info("pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	p.logger.Debug("worker started", "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return
		case unit := <-p.queue:
			p.inFlight.Add(1)
			err := p.process(unit)
			p.inFlight.Add(-1)
			if err != nil {
				p.failed.Add(1)
				p.logger.Debug("work failed", "worker_id", id, "work", unit.name, "error", err)
			} else {
				p.completed.Add(1)
			}
			unit.result <- err
		}
	}
}

// drain fails whatever is still queued after shutdown.
func (p *Pool) drain() {
	for {
		select {
		case unit := <-p.queue:
			unit.result <- ErrPoolStopped
		default:
			return
		}
	}
}

func (p *Pool) process(unit *workUnit) (err error) {
	if err := unit.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("work panicked", "work", unit.name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%s panicked: %v", unit.name, r)
		}
	}()
	return unit.fn(unit.ctx)
}

// Submit queues fn without waiting. The returned channel receives the
// result exactly once.
func (p *Pool) Submit(ctx context.Context, name string, fn WorkFunc) (<-chan error, error) {
	select {
	case <-p.stopped:
		return nil, fmt.Errorf("%w: %s", ErrPoolStopped, p.name)
	default:
	}

	unit := &workUnit{name: name, ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case p.queue <- unit:
		p.logger.Debug("pool accepted work", "work", name, "queue_len", len(p.queue))
		return unit.result, nil
	default:
		p.logger.Warn("pool queue full", "work", name)
		return nil, fmt.Errorf("%w: %s", ErrWorkerQueueFull, p.name)
	}
}

// Run submits fn and waits for it to finish.
func (p *Pool) Run(ctx context.Context, name string, fn WorkFunc) error {
	result, err := p.Submit(ctx, name, fn)
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns current pool status.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Name:       p.name,
		Type:       string(PoolTypeCPU),
		Workers:    p.workerCount,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
		QueueSize:  p.queueSize,
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
	}
}
