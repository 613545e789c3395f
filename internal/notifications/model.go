package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Notification types shown on the host dashboard.
const (
	TypeNewBooking      = "new_booking"
	TypePaymentReceived = "payment_received"
	TypeGuestMessage    = "guest_message"
	TypeUrgent          = "urgent"
	TypeBookingUpdate   = "booking_update"
)

// Priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Notification is an in-app message addressed to a single host. Rows are
// owned exclusively by HostID; no other subject may read or mutate them.
type Notification struct {
	ID             uuid.UUID  `json:"id"                    db:"id"`
	HostID         uuid.UUID  `json:"host_id"               db:"host_id"`
	Type           string     `json:"type"                  db:"type"`
	Title          string     `json:"title"                 db:"title"`
	Message        string     `json:"message"               db:"message"`
	Priority       string     `json:"priority"              db:"priority"`
	BookingID      *uuid.UUID `json:"booking_id,omitempty"  db:"booking_id"`
	PropertyID     *uuid.UUID `json:"property_id,omitempty" db:"property_id"`
	ActionRequired bool       `json:"action_required"       db:"action_required"`
	ActionURL      string     `json:"action_url,omitempty"  db:"action_url"`
	IsRead         bool       `json:"is_read"               db:"is_read"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"  db:"expires_at"`
	CreatedAt      time.Time  `json:"created_at"            db:"created_at"`
}

// ListOptions filters a notification listing.
type ListOptions struct {
	UnreadOnly bool
	Type       string
	Priority   string
	Limit      int
}
