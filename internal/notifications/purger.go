package notifications

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PurgeStore is the sweep surface the purger needs. Satisfied by
// *Repository.
type PurgeStore interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Purger periodically deletes notifications past their expiry. Expired
// rows are already invisible to reads; the sweep just keeps the table
// from growing without bound.
type Purger struct {
	store    PurgeStore
	interval time.Duration
	logger   *zap.Logger
}

// NewPurger creates a Purger. interval <= 0 falls back to one hour.
func NewPurger(store PurgeStore, interval time.Duration, logger *zap.Logger) *Purger {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Purger{store: store, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (p *Purger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := p.store.PurgeExpired(sweepCtx)
			cancel()
			if err != nil {
				p.logger.Warn("notifications: purge expired", zap.Error(err))
			} else if n > 0 {
				p.logger.Info("notifications: purged expired", zap.Int64("count", n))
			}
		}
	}
}
