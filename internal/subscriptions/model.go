package subscriptions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types external agents can subscribe to.
const (
	EventBookingCreated     = "booking.created"
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingCancelled   = "booking.cancelled"
	EventPaymentReceived    = "payment.received"
	EventHostResponseNeeded = "host.response_needed"
)

// DefaultMaxFailedAttempts is the consecutive-failure threshold after
// which a subscription is deactivated, unless configured otherwise.
const DefaultMaxFailedAttempts = 5

var knownEvents = map[string]struct{}{
	EventBookingCreated:     {},
	EventBookingConfirmed:   {},
	EventBookingCancelled:   {},
	EventPaymentReceived:    {},
	EventHostResponseNeeded: {},
}

// KnownEvents returns the fixed event vocabulary.
func KnownEvents() []string {
	return []string{
		EventBookingCreated,
		EventBookingConfirmed,
		EventBookingCancelled,
		EventPaymentReceived,
		EventHostResponseNeeded,
	}
}

// WebhookSubscription is an external agent registered to receive signed
// webhook callbacks. Health fields (FailedAttempts, IsActive,
// LastSuccessfulCall) are mutated only through Repository.RecordSuccess
// and Repository.RecordFailure so the active-flag transition stays
// centralized.
type WebhookSubscription struct {
	ID                 uuid.UUID  `json:"id"                             db:"id"`
	AgentName          string     `json:"agent_name"                     db:"agent_name"`
	WebhookURL         string     `json:"webhook_url"                    db:"webhook_url"`
	Events             []string   `json:"events"                         db:"events"`
	SharedSecret       string     `json:"-"                              db:"shared_secret"` // never returned in API responses or logs
	IsActive           bool       `json:"is_active"                      db:"is_active"`
	FailedAttempts     int        `json:"failed_attempts"                db:"failed_attempts"`
	MaxFailedAttempts  int        `json:"max_failed_attempts"            db:"max_failed_attempts"`
	LastSuccessfulCall *time.Time `json:"last_successful_call,omitempty" db:"last_successful_call"`
	CreatedAt          time.Time  `json:"created_at"                     db:"created_at"`
}

// DeliveryAttempt records the outcome of a single webhook HTTP call.
type DeliveryAttempt struct {
	ID             uuid.UUID `json:"id"              db:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id" db:"subscription_id"`
	EventType      string    `json:"event_type"      db:"event_type"`
	StatusCode     int       `json:"status_code"     db:"status_code"`
	Attempt        int       `json:"attempt"         db:"attempt"`
	Success        bool      `json:"success"         db:"success"`
	ErrorMessage   string    `json:"error_message"   db:"error_message"`
	DeliveredAt    time.Time `json:"delivered_at"    db:"delivered_at"`
}

// CreateSubscriptionRequest is the payload for registering a subscriber.
type CreateSubscriptionRequest struct {
	AgentName  string   `json:"agent_name"  binding:"required"`
	WebhookURL string   `json:"webhook_url" binding:"required,url"`
	Events     []string `json:"events"      binding:"required"`
	SecretKey  string   `json:"secret_key"  binding:"required"`
}

// ValidationError reports event names outside the fixed vocabulary.
type ValidationError struct {
	Invalid []string
}

func (e *ValidationError) Error() string {
	if len(e.Invalid) == 0 {
		return "events must not be empty"
	}
	return fmt.Sprintf("unknown event types: %s (valid: %s)",
		strings.Join(e.Invalid, ", "), strings.Join(KnownEvents(), ", "))
}
