package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPoolStopped is returned by Submit once the pool has been shut down.
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is one unit of work for the pool. Run receives only values captured at
// submission time and reports the controller status of the operation.
type Task struct {
	Agent string
	Kind  domain.OperationKind
	Run   func(ctx context.Context) domain.Status

	// Notify, when set, receives a non-blocking signal after the task finishes.
	Notify chan<- struct{}
}

// Handle tracks one submitted task.
type Handle struct {
	ID          string
	Agent       string
	Kind        domain.OperationKind
	SubmittedAt time.Time

	done     chan struct{}
	status   domain.Status
	duration time.Duration
}

// Done is closed once the task has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Poll returns the task status without blocking; ok is false while the task
// is still running.
func (h *Handle) Poll() (status domain.Status, ok bool) {
	select {
	case <-h.done:
		return h.status, true
	default:
		return 0, false
	}
}

// Wait blocks until the task finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (domain.Status, error) {
	select {
	case <-h.done:
		return h.status, nil
	case <-ctx.Done():
		return domain.StatusCanceled, ctx.Err()
	}
}

// Duration is the run time of a finished task.
func (h *Handle) Duration() time.Duration {
	<-h.done
	return h.duration
}

type job struct {
	task   Task
	handle *Handle
}

// Pool manages a fixed number of worker goroutines
type Pool struct {
	size    int
	queue   chan *job
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	started bool
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	queueSize int,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		queue:   make(chan *job, queueSize),
		metrics: metrics,
		logger:  logger,
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}
	p.started = true

	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit queues a task and returns its handle. It blocks only while the
// queue is full.
func (p *Pool) Submit(ctx context.Context, task Task) (*Handle, error) {
	if task.Run == nil {
		return nil, fmt.Errorf("task for agent %s has no run function", task.Agent)
	}
	if p.ctx.Err() != nil {
		return nil, ErrPoolStopped
	}

	h := &Handle{
		ID:          uuid.New().String(),
		Agent:       task.Agent,
		Kind:        task.Kind,
		SubmittedAt: time.Now(),
		done:        make(chan struct{}),
	}

	select {
	case p.queue <- &job{task: task, handle: h}:
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrPoolStopped
	}
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()

	// Cancel context to signal workers to stop
	p.cancel()

	// Wait for all workers to finish with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// QueueDepth returns the number of tasks waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case j := <-w.pool.queue:
			w.execute(ctx, j)
		}
	}
}

// execute runs one task and publishes its result on the handle
func (w *worker) execute(ctx context.Context, j *job) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer w.setStatus(WorkerStatusIdle)

	start := time.Now()
	status := w.runTask(ctx, j)
	duration := time.Since(start)

	j.handle.status = status
	j.handle.duration = duration
	close(j.handle.done)

	w.pool.metrics.RecordOperation(j.task.Kind, status, duration)

	w.pool.logger.Debug("operation finished",
		zap.String("worker_id", w.id),
		zap.String("operation_id", j.handle.ID),
		zap.String("agent", j.task.Agent),
		zap.String("kind", string(j.task.Kind)),
		zap.Stringer("status", status),
		zap.Duration("duration", duration))

	if j.task.Notify != nil {
		select {
		case j.task.Notify <- struct{}{}:
		default:
		}
	}
}

// runTask turns a panicking task into a failed operation
func (w *worker) runTask(ctx context.Context, j *job) (status domain.Status) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("operation panicked",
				zap.String("worker_id", w.id),
				zap.String("agent", j.task.Agent),
				zap.Any("panic", r))
			status = domain.StatusFailure
		}
	}()
	return j.task.Run(ctx)
}

func (w *worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}
