package business

import "time"

// Business is a tenant account: one service business with a tracked
// provider number that forwards to the owner's real line.
//
// Tenant invariants:
// - At most one provider inbound number (TwilioPhoneNumber) at a time.
// - Subscription fields are written out-of-band by the billing webhook
//   processor; this core only reads them.
type Business struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// OwnerUserID ties the tenant to its dashboard login.
	OwnerUserID string `json:"owner_user_id" db:"owner_user_id"`

	// ForwardingNumber is where inbound calls are dialed to.
	ForwardingNumber string `json:"forwarding_number" db:"forwarding_number"`
	// NotifyPhone receives owner notifications; empty disables them.
	NotifyPhone string `json:"notify_phone,omitempty" db:"notify_phone"`
	// TwilioPhoneNumber is the provider-assigned inbound number (E.164).
	TwilioPhoneNumber string `json:"twilio_phone_number,omitempty" db:"twilio_phone_number"`

	// MissedCallSeconds is the dial timeout before a call counts as missed.
	MissedCallSeconds int `json:"missed_call_seconds" db:"missed_call_seconds"`

	ServiceLabel1 string `json:"service_label_1" db:"service_label_1"`
	ServiceLabel2 string `json:"service_label_2" db:"service_label_2"`
	ServiceLabel3 string `json:"service_label_3" db:"service_label_3"`

	// RecordCalls adds recording directives to the forwarded dial leg.
	RecordCalls bool `json:"record_calls" db:"record_calls"`

	Timezone string `json:"timezone" db:"timezone"`

	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	StripePriceID      string             `json:"stripe_price_id,omitempty" db:"stripe_price_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionInactive SubscriptionStatus = "INACTIVE"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// SubscriptionIsActive is the single gate for "automation may run".
func (b Business) SubscriptionIsActive() bool {
	return b.SubscriptionStatus == SubscriptionActive
}

// PromptLabels bundles the three service labels for prompt rendering.
func (b Business) PromptLabels() (string, string, string) {
	return b.ServiceLabel1, b.ServiceLabel2, b.ServiceLabel3
}
