package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides persistence for host notifications against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new notification Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new unread notification.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	n.IsRead = false
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}

	query := `INSERT INTO notifications
	          (id, host_id, type, title, message, priority, booking_id, property_id,
	           action_required, action_url, is_read, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.Exec(ctx, query,
		n.ID, n.HostID, n.Type, n.Title, n.Message, n.Priority,
		n.BookingID, n.PropertyID, n.ActionRequired, n.ActionURL,
		n.IsRead, n.ExpiresAt, n.CreatedAt,
	)
	return err
}

// List returns a host's notifications, newest first, excluding expired
// rows. Filters are optional; empty strings match everything.
func (r *Repository) List(ctx context.Context, hostID uuid.UUID, opts ListOptions) ([]*Notification, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	query := selectColumns + `
	          FROM notifications
	          WHERE host_id = $1
	            AND (expires_at IS NULL OR expires_at > now())
	            AND ($2 = false OR is_read = false)
	            AND ($3 = '' OR type = $3)
	            AND ($4 = '' OR priority = $4)
	          ORDER BY created_at DESC
	          LIMIT $5`
	rows, err := r.db.Query(ctx, query, hostID, opts.UnreadOnly, opts.Type, opts.Priority, opts.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// CreatedSince returns a host's notifications created after the given
// instant, oldest first. Used by the real-time channel's poll loop; it
// never mutates rows.
func (r *Repository) CreatedSince(ctx context.Context, hostID uuid.UUID, since time.Time) ([]*Notification, error) {
	query := selectColumns + `
	          FROM notifications
	          WHERE host_id = $1 AND created_at > $2
	          ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, hostID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// MarkRead flips is_read for a notification owned by hostID. Returns
// false when the row does not exist or belongs to another host; the two
// cases are indistinguishable on purpose.
func (r *Repository) MarkRead(ctx context.Context, id, hostID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND host_id = $2`,
		id, hostID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UnreadCount returns the number of unread, unexpired notifications for a host.
func (r *Repository) UnreadCount(ctx context.Context, hostID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications
	          WHERE host_id = $1 AND is_read = false
	            AND (expires_at IS NULL OR expires_at > now())`
	if err := r.db.QueryRow(ctx, query, hostID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// PurgeExpired deletes notifications past their expiry, returning the
// number removed. Intended to run on a periodic sweep, not per-request.
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const selectColumns = `SELECT id, host_id, type, title, message, priority, booking_id, property_id,
	          action_required, action_url, is_read, expires_at, created_at`

func collectNotifications(rows pgx.Rows) ([]*Notification, error) {
	var items []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.HostID, &n.Type, &n.Title, &n.Message, &n.Priority,
			&n.BookingID, &n.PropertyID, &n.ActionRequired, &n.ActionURL,
			&n.IsRead, &n.ExpiresAt, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, &n)
	}
	return items, rows.Err()
}
