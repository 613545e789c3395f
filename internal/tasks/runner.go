// Package tasks is a small bounded worker pool for running delivery work
// off the request path. Jobs carry a name for logging and a bounded
// requeue count; the pool drains cleanly on shutdown.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when the job queue cannot accept more work.
var ErrQueueFull = errors.New("task queue full")

// ErrStopped is returned when the runner is shutting down.
var ErrStopped = errors.New("task runner stopped")

// Job is one unit of background work. The context is cancelled when the
// runner shuts down; jobs should abort cleanly at that point.
type Job func(ctx context.Context) error

type task struct {
	name     string
	fn       Job
	attempts int
}

// Runner executes queued jobs on a fixed pool of workers.
type Runner struct {
	queue      chan task
	workers    int
	maxRetries int
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewRunner creates a Runner with the given worker count, queue size and
// per-job retry cap. Zero values fall back to 4 workers, 256 queued
// jobs, 1 retry.
func NewRunner(workers, queueSize, maxRetries int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if maxRetries < 0 {
		maxRetries = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		queue:      make(chan task, queueSize),
		workers:    workers,
		maxRetries: maxRetries,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Enqueue queues a job for execution. Non-blocking: when the queue is
// full the caller gets ErrQueueFull instead of stalling the request path.
func (r *Runner) Enqueue(name string, fn Job) error {
	return r.push(task{name: name, fn: fn})
}

// push performs a non-blocking send under the mutex so it cannot race
// with Shutdown closing the queue.
func (r *Runner) push(t task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	select {
	case r.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting new jobs, lets in-flight jobs finish their
// current attempt, and waits for the workers to drain up to the given
// context's deadline.
func (r *Runner) Shutdown(ctx context.Context) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.queue)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Deadline hit: cancel in-flight jobs and let them abort.
		r.cancel()
		<-done
	}
	r.cancel()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for t := range r.queue {
		r.run(t)
	}
}

func (r *Runner) run(t task) {
	start := time.Now()
	err := t.fn(r.ctx)
	if err == nil {
		r.logger.Debug("task done",
			zap.String("task", t.name),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}

	r.logger.Warn("task failed",
		zap.String("task", t.name),
		zap.Int("attempt", t.attempts+1),
		zap.Error(err),
	)

	if t.attempts >= r.maxRetries {
		return
	}
	t.attempts++

	// Requeue without blocking the worker; a full or closing queue drops
	// the retry.
	if err := r.push(t); err != nil {
		r.logger.Warn("task retry dropped", zap.String("task", t.name), zap.Error(err))
	}
}
