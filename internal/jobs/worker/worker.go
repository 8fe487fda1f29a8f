package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

var (
	ErrQueueFull  = errors.New("worker queue is full")
	ErrPoolClosed = errors.New("worker pool is closed")
)

const (
	DefaultConcurrency = 2
	MaxConcurrency     = 5
	DefaultQueueSize   = 100
)

// Task is one unit of background work. Run gets the pool's context, which is
// canceled only when the pool is stopped without draining.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Config struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

func (c Config) normalized() Config {
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Concurrency > MaxConcurrency {
		c.Concurrency = MaxConcurrency
	}
	if c.QueueSize < 1 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// Pool runs tasks on a fixed number of goroutines behind a bounded backlog.
// Submit never blocks.
type Pool struct {
	log   *logger.Logger
	cfg   Config
	queue chan Task

	mu      sync.RWMutex
	closed  bool
	started bool

	inFlight atomic.Int64
	wg       sync.WaitGroup
	gauge    metric.Registration
}

func NewPool(baseLog *logger.Logger, cfg Config) *Pool {
	cfg = cfg.normalized()
	p := &Pool{
		log:   baseLog.With("component", "WorkerPool"),
		cfg:   cfg,
		queue: make(chan Task, cfg.QueueSize),
	}
	p.registerGauges()
	return p
}

func (p *Pool) Concurrency() int { return p.cfg.Concurrency }

func (p *Pool) QueueDepth() int { return len(p.queue) }

func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Start launches the workers. They exit when ctx is canceled or the pool is closed.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.log.Info("Starting worker pool", "concurrency", p.cfg.Concurrency, "queue_size", p.cfg.QueueSize)
	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := i + 1
		p.wg.Add(1)
		go p.runLoop(ctx, workerID)
	}
}

func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task %q has no run func", task.Name)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		return nil
	default:
		p.log.Warn("Worker queue full; rejecting task", "task", task.Name, "queue_depth", len(p.queue))
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued and running tasks to finish or ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if p.gauge != nil {
			_ = p.gauge.Unregister()
		}
		p.log.Info("Worker pool drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) runLoop(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(ctx, workerID, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, workerID int, task Task) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Task panic",
				"worker_id", workerID,
				"task", task.Name,
				"panic", r,
			)
		}
	}()

	if err := task.Run(ctx); err != nil {
		p.log.Warn("Task failed",
			"worker_id", workerID,
			"task", task.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return
	}
	p.log.Debug("Task done", "worker_id", workerID, "task", task.Name, "duration_ms", time.Since(start).Milliseconds())
}

func (p *Pool) registerGauges() {
	meter := otel.Meter("mockly/worker")
	depth, err := meter.Int64ObservableGauge("mockly.worker.queue_depth",
		metric.WithDescription("Tasks waiting in the worker backlog"))
	if err != nil {
		p.log.Warn("queue depth gauge unavailable", "error", err)
		return
	}
	busy, err := meter.Int64ObservableGauge("mockly.worker.in_flight",
		metric.WithDescription("Tasks currently running"))
	if err != nil {
		p.log.Warn("in-flight gauge unavailable", "error", err)
		return
	}
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(depth, int64(p.QueueDepth()))
		o.ObserveInt64(busy, int64(p.InFlight()))
		return nil
	}, depth, busy)
	if err != nil {
		p.log.Warn("worker gauge callback failed", "error", err)
		return
	}
	p.gauge = reg
}

// Recover converts a panic inside fn into an error so callers can record it.
func Recover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Val: r}
		}
	}()
	return fn()
}

type PanicError struct{ Val any }

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
