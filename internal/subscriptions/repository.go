package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a subscription does not exist.
var ErrNotFound = errors.New("webhook subscription not found")

// Repository provides persistence for webhook subscriptions and their
// delivery attempt log against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool

	onDeactivation func()
}

// NewRepository creates a new subscription Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SetDeactivationRecorder configures a callback fired each time a
// subscription is deactivated by crossing its failure threshold.
func (r *Repository) SetDeactivationRecorder(fn func()) { r.onDeactivation = fn }

// Create inserts a new subscription with zeroed health counters.
func (r *Repository) Create(ctx context.Context, sub *WebhookSubscription) error {
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now().UTC()
	sub.IsActive = true
	sub.FailedAttempts = 0
	if sub.MaxFailedAttempts <= 0 {
		sub.MaxFailedAttempts = DefaultMaxFailedAttempts
	}

	query := `INSERT INTO webhook_subscriptions
	          (id, agent_name, webhook_url, events, shared_secret, is_active,
	           failed_attempts, max_failed_attempts, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.AgentName, sub.WebhookURL, sub.Events, sub.SharedSecret,
		sub.IsActive, sub.FailedAttempts, sub.MaxFailedAttempts, sub.CreatedAt,
	)
	return err
}

// GetByID retrieves a subscription by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*WebhookSubscription, error) {
	query := selectColumns + ` FROM webhook_subscriptions WHERE id = $1`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanSubscription(rows)
}

// List returns all subscriptions, newest first. The registry is small;
// no pagination.
func (r *Repository) List(ctx context.Context) ([]*WebhookSubscription, error) {
	query := selectColumns + ` FROM webhook_subscriptions ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListActiveForEvent returns active subscriptions whose events set
// contains eventType. This is the hot lookup path, one indexed query per
// dispatched event (GIN index on events).
func (r *Repository) ListActiveForEvent(ctx context.Context, eventType string) ([]*WebhookSubscription, error) {
	query := selectColumns + `
	          FROM webhook_subscriptions
	          WHERE is_active = true AND $1 = ANY(events)
	          ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// Delete hard-removes a subscription. Deleting a nonexistent id is a
// no-op, not an error, so callers can retry blindly.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	return err
}

// RecordSuccess resets the consecutive-failure counter and stamps the
// last acknowledged delivery. Idempotent.
func (r *Repository) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_subscriptions
	          SET failed_attempts = 0, last_successful_call = $2
	          WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, time.Now().UTC())
	return err
}

// RecordFailure increments the consecutive-failure counter and, in the
// same update, deactivates the subscription once the post-increment
// value reaches the threshold. A single read-modify-write expression so
// two concurrent failed deliveries cannot lose the deactivation.
func (r *Repository) RecordFailure(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_subscriptions
	          SET failed_attempts = failed_attempts + 1,
	              is_active = CASE
	                WHEN failed_attempts + 1 >= max_failed_attempts THEN false
	                ELSE is_active
	              END
	          WHERE id = $1
	          RETURNING is_active, failed_attempts = max_failed_attempts`
	var active, justCrossed bool
	err := r.db.QueryRow(ctx, query, id).Scan(&active, &justCrossed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if !active && justCrossed && r.onDeactivation != nil {
		r.onDeactivation()
	}
	return nil
}

// RecordDelivery appends one HTTP attempt to the delivery log.
func (r *Repository) RecordDelivery(ctx context.Context, d *DeliveryAttempt) error {
	d.ID = uuid.New()
	d.DeliveredAt = time.Now().UTC()

	query := `INSERT INTO webhook_deliveries
	          (id, subscription_id, event_type, status_code, attempt, success, error_message, delivered_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		d.ID, d.SubscriptionID, d.EventType, d.StatusCode,
		d.Attempt, d.Success, d.ErrorMessage, d.DeliveredAt,
	)
	return err
}

// ListDeliveries returns the most recent delivery attempts for a
// subscription, newest first.
func (r *Repository) ListDeliveries(ctx context.Context, subID uuid.UUID, limit int) ([]*DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, subscription_id, event_type, status_code, attempt, success, error_message, delivered_at
	          FROM webhook_deliveries
	          WHERE subscription_id = $1
	          ORDER BY delivered_at DESC
	          LIMIT $2`
	rows, err := r.db.Query(ctx, query, subID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*DeliveryAttempt
	for rows.Next() {
		var d DeliveryAttempt
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.StatusCode,
			&d.Attempt, &d.Success, &d.ErrorMessage, &d.DeliveredAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, &d)
	}
	return attempts, rows.Err()
}

const selectColumns = `SELECT id, agent_name, webhook_url, events, shared_secret, is_active,
	          failed_attempts, max_failed_attempts, last_successful_call, created_at`

func scanSubscription(rows pgx.Rows) (*WebhookSubscription, error) {
	var sub WebhookSubscription
	err := rows.Scan(
		&sub.ID, &sub.AgentName, &sub.WebhookURL, &sub.Events, &sub.SharedSecret,
		&sub.IsActive, &sub.FailedAttempts, &sub.MaxFailedAttempts,
		&sub.LastSuccessfulCall, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]*WebhookSubscription, error) {
	var subs []*WebhookSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
