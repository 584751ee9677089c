package audit

import "time"

// Event is an immutable, append-only webhook decision record.
//
// Invariants:
// - Events are never updated or deleted.
// - business_id is required for tenancy isolation.
// - Audit writes are best-effort; webhook flows never fail on them.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID         string `json:"id" db:"id"`
	BusinessID string `json:"business_id" db:"business_id"`

	// Type indicates the webhook route the event came from.
	Type EventType `json:"type" db:"type"`

	// Decision is the short machine-readable outcome tag, e.g.
	// "missed_call_sms_started" or "usage_limit_reached".
	Decision string `json:"decision" db:"decision"`

	// Provider identifiers (optional, depending on the event type).
	CallSID    string `json:"call_sid,omitempty" db:"call_sid"`
	MessageSID string `json:"message_sid,omitempty" db:"message_sid"`
	LeadID     string `json:"lead_id,omitempty" db:"lead_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeVoiceWebhook  EventType = "voice_webhook"
	EventTypeStatusWebhook EventType = "status_webhook"
	EventTypeSmsWebhook    EventType = "sms_webhook"
	EventTypeAuthRejected  EventType = "webhook_auth_rejected"
)
