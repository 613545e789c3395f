package notifications_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stayhq/stayhq/internal/notifications"
	"go.uber.org/zap"
)

type stubPurgeStore struct {
	sweeps atomic.Int32
}

func (s *stubPurgeStore) PurgeExpired(_ context.Context) (int64, error) {
	s.sweeps.Add(1)
	return 1, nil
}

func TestPurger_sweepsOnTick(t *testing.T) {
	store := &stubPurgeStore{}
	purger := notifications.NewPurger(store, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		purger.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.sweeps.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("purger never swept")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPurger_stopsBeforeFirstTick(t *testing.T) {
	store := &stubPurgeStore{}
	purger := notifications.NewPurger(store, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		purger.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if store.sweeps.Load() != 0 {
		t.Errorf("sweeps before first tick: got %d, want 0", store.sweeps.Load())
	}
}
