// Package bookings exposes a read-only feed of booking changes for the
// real-time channel. Booking CRUD itself lives elsewhere in the
// application; this subsystem only observes the table.
package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Change is one observed booking update belonging to a host's property.
type Change struct {
	BookingID  uuid.UUID `json:"booking_id"`
	PropertyID uuid.UUID `json:"property_id"`
	GuestName  string    `json:"guest_name"`
	Status     string    `json:"status"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Feed reads booking changes from PostgreSQL.
type Feed struct {
	db *pgxpool.Pool
}

// NewFeed creates a booking change Feed.
func NewFeed(db *pgxpool.Pool) *Feed {
	return &Feed{db: db}
}

// ChangesSince returns a host's bookings updated after the given
// instant, oldest first.
func (f *Feed) ChangesSince(ctx context.Context, hostID uuid.UUID, since time.Time) ([]Change, error) {
	query := `SELECT id, property_id, guest_name, status, check_in, check_out, updated_at
	          FROM bookings
	          WHERE host_id = $1 AND updated_at > $2
	          ORDER BY updated_at`
	rows, err := f.db.Query(ctx, query, hostID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var ch Change
		if err := rows.Scan(&ch.BookingID, &ch.PropertyID, &ch.GuestName,
			&ch.Status, &ch.CheckIn, &ch.CheckOut, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	return changes, rows.Err()
}
