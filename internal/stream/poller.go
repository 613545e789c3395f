package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stayhq/stayhq/internal/bookings"
	"github.com/stayhq/stayhq/internal/notifications"
	"go.uber.org/zap"
)

// NotificationSource is the read-only notification surface the poll loop
// needs. The channel never mutates rows; marking read is a separate,
// explicit user action.
type NotificationSource interface {
	CreatedSince(ctx context.Context, hostID uuid.UUID, since time.Time) ([]*notifications.Notification, error)
}

// BookingSource is the read-only booking change feed.
type BookingSource interface {
	ChangesSince(ctx context.Context, hostID uuid.UUID, since time.Time) ([]bookings.Change, error)
}

// Sink receives events produced by a poll loop.
type Sink interface {
	Send(evt Event)
}

// Poller drives one connection's poll cycle: on every tick it queries
// for new notifications and booking changes since the previous tick and
// emits a heartbeat regardless.
type Poller struct {
	notes    NotificationSource
	feed     BookingSource
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller creates a Poller. interval <= 0 falls back to 5 seconds.
func NewPoller(notes NotificationSource, feed BookingSource, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{notes: notes, feed: feed, interval: interval, logger: logger}
}

// Run polls until ctx is cancelled. Windows are [previous tick, now);
// a reconnect may re-observe rows, which is fine: delivery to the
// client is at-least-once and clients de-duplicate by notification id.
func (p *Poller) Run(ctx context.Context, hostID uuid.UUID, sink Sink) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	since := time.Now().UTC()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			p.tick(ctx, hostID, since, sink)
			since = now
		}
	}
}

// tick runs one poll cycle with a deadline bounded by the tick interval.
func (p *Poller) tick(ctx context.Context, hostID uuid.UUID, since time.Time, sink Sink) {
	tickCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	items, err := p.notes.CreatedSince(tickCtx, hostID, since)
	if err != nil {
		p.logger.Warn("stream: poll notifications",
			zap.String("host_id", hostID.String()),
			zap.Error(err),
		)
	}
	for _, n := range items {
		sink.Send(Event{Type: EventNotification, Data: n})
	}

	if p.feed != nil {
		changes, err := p.feed.ChangesSince(tickCtx, hostID, since)
		if err != nil {
			p.logger.Warn("stream: poll bookings",
				zap.String("host_id", hostID.String()),
				zap.Error(err),
			)
		}
		for _, ch := range changes {
			sink.Send(Event{Type: EventBookingUpdate, Data: ch})
		}
	}

	sink.Send(Event{Type: EventHeartbeat, Data: map[string]string{
		"time": time.Now().UTC().Format(time.RFC3339),
	}})
}
