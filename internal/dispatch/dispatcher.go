// Package dispatch is the single entry point domain code calls when
// something happens: it writes the in-app notification synchronously and
// hands webhook delivery to the background runner. The real-time channel
// needs no step here: it discovers new notifications by polling.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stayhq/stayhq/internal/delivery"
	"github.com/stayhq/stayhq/internal/notifications"
	"github.com/stayhq/stayhq/internal/subscriptions"
	"github.com/stayhq/stayhq/internal/tasks"
	"go.uber.org/zap"
)

// NotificationWriter persists the synchronous notification row.
type NotificationWriter interface {
	Create(ctx context.Context, n *notifications.Notification) error
}

// Deliverer runs one webhook delivery cycle.
type Deliverer interface {
	Deliver(ctx context.Context, eventType string, data map[string]any) (*delivery.Report, error)
}

// Enqueuer schedules background work.
type Enqueuer interface {
	Enqueue(name string, fn tasks.Job) error
}

// Event is one domain occurrence to fan out.
type Event struct {
	Type           string
	HostID         uuid.UUID
	Title          string
	Message        string
	Priority       string
	BookingID      *uuid.UUID
	PropertyID     *uuid.UUID
	ActionRequired bool
	ActionURL      string
	ExpiresAt      *time.Time
	Data           map[string]any
}

// Dispatcher fans domain events out to the notification store and the
// delivery engine.
type Dispatcher struct {
	store     NotificationWriter
	deliverer Deliverer
	runner    Enqueuer
	logger    *zap.Logger
}

// New creates a Dispatcher.
func New(store NotificationWriter, deliverer Deliverer, runner Enqueuer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, deliverer: deliverer, runner: runner, logger: logger}
}

// Dispatch records the event. The notification write is the durable
// side-effect: its failure propagates to the caller, meaning the event
// was not recorded. Webhook delivery is enqueued fire-and-forget: the
// originating domain action has already taken effect and must not be
// undone by a subscriber being down.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) (*notifications.Notification, error) {
	n := &notifications.Notification{
		HostID:         evt.HostID,
		Type:           notificationTypeFor(evt.Type),
		Title:          evt.Title,
		Message:        evt.Message,
		Priority:       evt.Priority,
		BookingID:      evt.BookingID,
		PropertyID:     evt.PropertyID,
		ActionRequired: evt.ActionRequired,
		ActionURL:      evt.ActionURL,
		ExpiresAt:      evt.ExpiresAt,
	}
	if err := d.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	eventType := evt.Type
	data := evt.Data
	err := d.runner.Enqueue("webhook:"+eventType, func(jobCtx context.Context) error {
		report, err := d.deliverer.Deliver(jobCtx, eventType, data)
		if err != nil {
			return err
		}
		if report.AllFailed() {
			d.logger.Warn("webhook delivery: all subscribers failed",
				zap.String("event_type", eventType),
				zap.Int("subscribers", len(report.Outcomes)),
			)
		}
		return nil
	})
	if err != nil {
		// Best-effort side channel: log, never propagate.
		d.logger.Error("enqueue webhook delivery",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}

	return n, nil
}

// notificationTypeFor maps the event vocabulary onto dashboard
// notification types.
func notificationTypeFor(eventType string) string {
	switch eventType {
	case subscriptions.EventBookingCreated:
		return notifications.TypeNewBooking
	case subscriptions.EventBookingConfirmed, subscriptions.EventBookingCancelled:
		return notifications.TypeBookingUpdate
	case subscriptions.EventPaymentReceived:
		return notifications.TypePaymentReceived
	case subscriptions.EventHostResponseNeeded:
		return notifications.TypeUrgent
	default:
		return notifications.TypeGuestMessage
	}
}
