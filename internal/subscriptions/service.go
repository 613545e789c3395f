package subscriptions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence surface the registry service needs. Satisfied
// by *Repository; stubbed in tests.
type Store interface {
	Create(ctx context.Context, sub *WebhookSubscription) error
	List(ctx context.Context) ([]*WebhookSubscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListDeliveries(ctx context.Context, subID uuid.UUID, limit int) ([]*DeliveryAttempt, error)
}

// Service is the subscription registry: it owns registration validation
// and the subscription lifecycle.
type Service struct {
	store             Store
	maxFailedAttempts int
	logger            *zap.Logger
}

// NewService creates a registry Service. maxFailedAttempts <= 0 falls
// back to DefaultMaxFailedAttempts.
func NewService(store Store, maxFailedAttempts int, logger *zap.Logger) *Service {
	if maxFailedAttempts <= 0 {
		maxFailedAttempts = DefaultMaxFailedAttempts
	}
	return &Service{store: store, maxFailedAttempts: maxFailedAttempts, logger: logger}
}

// Register validates the requested events against the fixed vocabulary
// and persists a new active subscription with zeroed counters.
func (s *Service) Register(ctx context.Context, req *CreateSubscriptionRequest) (*WebhookSubscription, error) {
	if len(req.Events) == 0 {
		return nil, &ValidationError{}
	}
	var invalid []string
	for _, ev := range req.Events {
		if _, ok := knownEvents[ev]; !ok {
			invalid = append(invalid, ev)
		}
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{Invalid: invalid}
	}

	sub := &WebhookSubscription{
		AgentName:         req.AgentName,
		WebhookURL:        req.WebhookURL,
		Events:            req.Events,
		SharedSecret:      req.SecretKey,
		MaxFailedAttempts: s.maxFailedAttempts,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s.logger.Info("subscription registered",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("agent_name", sub.AgentName),
		zap.Strings("events", sub.Events),
	)
	return sub, nil
}

// List returns all subscriptions.
func (s *Service) List(ctx context.Context) ([]*WebhookSubscription, error) {
	return s.store.List(ctx)
}

// Unregister removes a subscription. Idempotent.
func (s *Service) Unregister(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	s.logger.Info("subscription deleted", zap.String("subscription_id", id.String()))
	return nil
}

// Deliveries returns the recent delivery log for a subscription.
func (s *Service) Deliveries(ctx context.Context, id uuid.UUID, limit int) ([]*DeliveryAttempt, error) {
	return s.store.ListDeliveries(ctx, id, limit)
}
