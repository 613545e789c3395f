package tasks_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stayhq/stayhq/internal/tasks"
	"go.uber.org/zap"
)

func TestRunner_executesJobs(t *testing.T) {
	r := tasks.NewRunner(2, 16, 0, zap.NewNop())
	r.Start()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := r.Enqueue("job", func(ctx context.Context) error {
			defer wg.Done()
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
	}
	wg.Wait()

	if got := count.Load(); got != 10 {
		t.Errorf("jobs run: got %d, want 10", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)
}

func TestRunner_retriesFailedJob(t *testing.T) {
	r := tasks.NewRunner(1, 16, 1, zap.NewNop())
	r.Start()

	var attempts atomic.Int32
	done := make(chan struct{})
	err := r.Enqueue("flaky", func(ctx context.Context) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts: got %d, want 2", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)
}

func TestRunner_retryCap(t *testing.T) {
	r := tasks.NewRunner(1, 16, 2, zap.NewNop())
	r.Start()

	var attempts atomic.Int32
	if err := r.Enqueue("always-fails", func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("permanent")
	}); err != nil {
		t.Fatal(err)
	}

	// Initial run plus two retries, then the job is abandoned.
	deadline := time.After(2 * time.Second)
	for attempts.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("attempts: got %d, want 3", attempts.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Give a would-be fourth attempt a chance to show up.
	time.Sleep(50 * time.Millisecond)
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts: got %d, want exactly 3", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)
}

func TestRunner_queueFull(t *testing.T) {
	r := tasks.NewRunner(1, 1, 0, zap.NewNop())
	// Not started: nothing drains the queue.

	block := func(ctx context.Context) error { return nil }
	if err := r.Enqueue("first", block); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	err := r.Enqueue("second", block)
	if !errors.Is(err, tasks.ErrQueueFull) {
		t.Errorf("got %v, want ErrQueueFull", err)
	}
}

func TestRunner_enqueueAfterShutdown(t *testing.T) {
	r := tasks.NewRunner(1, 16, 0, zap.NewNop())
	r.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)

	err := r.Enqueue("late", func(ctx context.Context) error { return nil })
	if !errors.Is(err, tasks.ErrStopped) {
		t.Errorf("got %v, want ErrStopped", err)
	}
}

func TestRunner_shutdownDrainsQueue(t *testing.T) {
	r := tasks.NewRunner(2, 32, 0, zap.NewNop())
	r.Start()

	var count atomic.Int32
	for i := 0; i < 20; i++ {
		if err := r.Enqueue("work", func(ctx context.Context) error {
			count.Add(1)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.Shutdown(ctx)

	if got := count.Load(); got != 20 {
		t.Errorf("jobs run before shutdown returned: got %d, want 20", got)
	}
}

func TestRunner_shutdownCancelsSlowJobs(t *testing.T) {
	r := tasks.NewRunner(1, 4, 0, zap.NewNop())
	r.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	if err := r.Enqueue("slow", func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			close(cancelled)
			return ctx.Err()
		case <-time.After(10 * time.Second):
			return nil
		}
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	// Deadline shorter than the job: Shutdown must cancel it and return.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Shutdown(ctx)

	select {
	case <-cancelled:
	default:
		t.Error("slow job should have observed cancellation")
	}
}
