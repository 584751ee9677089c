// Package ledger is the data layer recording calls, leads and message
// transcripts. Every record is keyed so that provider webhook retries
// land on the same row: calls by provider call SID, messages by provider
// message SID, leads by call ID.
package ledger

import (
	"time"

	"callbackcloser/internal/conversation"
)

// Call is one record per provider call identifier. It is created on the
// initial inbound leg and updated as dial-status and recording callbacks
// arrive asynchronously and out of order.
type Call struct {
	ID         string `json:"id" db:"id"`
	BusinessID string `json:"business_id" db:"business_id"`

	// ProviderCallSID is the provider's unique call identifier; the
	// upsert key for all voice-leg callbacks.
	ProviderCallSID string  `json:"provider_call_sid" db:"provider_call_sid"`
	ParentCallSID   *string `json:"parent_call_sid,omitempty" db:"parent_call_sid"`
	DialCallSID     *string `json:"dial_call_sid,omitempty" db:"dial_call_sid"`

	FromPhone           string `json:"from_phone" db:"from_phone"`
	FromPhoneNormalized string `json:"from_phone_normalized" db:"from_phone_normalized"`
	ToPhone             string `json:"to_phone" db:"to_phone"`
	ToPhoneNormalized   string `json:"to_phone_normalized" db:"to_phone_normalized"`

	Status         CallStatus `json:"status" db:"status"`
	DialCallStatus *string    `json:"dial_call_status,omitempty" db:"dial_call_status"`
	Answered       bool       `json:"answered" db:"answered"`
	Missed         bool       `json:"missed" db:"missed"`

	CallDurationSeconds     *int `json:"call_duration_seconds,omitempty" db:"call_duration_seconds"`
	DialCallDurationSeconds *int `json:"dial_call_duration_seconds,omitempty" db:"dial_call_duration_seconds"`

	RecordingSID             *string `json:"recording_sid,omitempty" db:"recording_sid"`
	RecordingURL             *string `json:"recording_url,omitempty" db:"recording_url"`
	RecordingStatus          *string `json:"recording_status,omitempty" db:"recording_status"`
	RecordingDurationSeconds *int    `json:"recording_duration_seconds,omitempty" db:"recording_duration_seconds"`

	// RawPayload keeps the latest webhook form for audit/debugging.
	RawPayload string `json:"raw_payload,omitempty" db:"raw_payload"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	// CallReceived: inbound leg seen, dial outcome not yet known.
	CallReceived CallStatus = "RECEIVED"
	CallAnswered CallStatus = "ANSWERED"
	CallMissed   CallStatus = "MISSED"
	// CallCompleted: final dial status that is neither answered nor missed.
	CallCompleted CallStatus = "COMPLETED"
)

// RecordingMetadata is the optional recording payload a status callback
// may carry, alone or alongside a dial result.
type RecordingMetadata struct {
	SID             *string
	URL             *string
	Status          *string
	DurationSeconds *int
}

// Empty reports whether no recording field was present at all.
func (r RecordingMetadata) Empty() bool {
	return r.SID == nil && r.URL == nil && r.Status == nil && r.DurationSeconds == nil
}

// CallUpsert carries one webhook's view of a call. Required fields
// identify the row; nil optional fields leave existing column values
// untouched, so an early callback cannot be erased by a later sparse one.
type CallUpsert struct {
	BusinessID      string
	ProviderCallSID string

	FromPhone           string
	FromPhoneNormalized string
	ToPhone             string
	ToPhoneNormalized   string

	ParentCallSID  *string
	DialCallSID    *string
	Status         *CallStatus
	DialCallStatus *string
	Answered       *bool
	Missed         *bool

	CallDurationSeconds     *int
	DialCallDurationSeconds *int

	Recording RecordingMetadata

	// RawPayload is always refreshed.
	RawPayload string
}

// Lead is one qualification thread tied to a single missed call.
// CallID is unique: one lead per call, reused on retried callbacks.
type Lead struct {
	ID         string `json:"id" db:"id"`
	BusinessID string `json:"business_id" db:"business_id"`
	CallID     string `json:"call_id" db:"call_id"`

	CallerPhone           string `json:"caller_phone" db:"caller_phone"`
	CallerPhoneNormalized string `json:"caller_phone_normalized" db:"caller_phone_normalized"`

	ServiceRequested    *string `json:"service_requested,omitempty" db:"service_requested"`
	ServiceSelectionRaw *string `json:"service_selection_raw,omitempty" db:"service_selection_raw"`
	Urgency             *string `json:"urgency,omitempty" db:"urgency"`
	ZipCode             *string `json:"zip_code,omitempty" db:"zip_code"`
	BestTime            *string `json:"best_time,omitempty" db:"best_time"`
	ContactName         *string `json:"contact_name,omitempty" db:"contact_name"`

	SmsState conversation.State `json:"sms_state" db:"sms_state"`
	Status   LeadStatus         `json:"status" db:"status"`

	// BillingRequired pauses automation until the subscription is cured.
	BillingRequired bool `json:"billing_required" db:"billing_required"`

	SmsStartedAt      *time.Time `json:"sms_started_at,omitempty" db:"sms_started_at"`
	SmsCompletedAt    *time.Time `json:"sms_completed_at,omitempty" db:"sms_completed_at"`
	LastInboundAt     *time.Time `json:"last_inbound_at,omitempty" db:"last_inbound_at"`
	LastOutboundAt    *time.Time `json:"last_outbound_at,omitempty" db:"last_outbound_at"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty" db:"last_interaction_at"`
	OwnerNotifiedAt   *time.Time `json:"owner_notified_at,omitempty" db:"owner_notified_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type LeadStatus string

const (
	LeadNew       LeadStatus = "NEW"
	LeadQualified LeadStatus = "QUALIFIED"
	LeadContacted LeadStatus = "CONTACTED"
	LeadBooked    LeadStatus = "BOOKED"
)

func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadNew, LeadQualified, LeadContacted, LeadBooked:
		return true
	default:
		return false
	}
}

// Field is a tagged optional update. The zero value means "absent: do
// not touch the column". Present+Null clears the column; Present with a
// value writes it. This replaces the original's optional-spread update
// objects so an absent field can never overwrite with null by accident.
type Field[T any] struct {
	Present bool
	Null    bool
	Value   T
}

func Set[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: v}
}

func SetNull[T any]() Field[T] {
	return Field[T]{Present: true, Null: true}
}

// LeadPatch is a partial lead update. Only Present fields are applied;
// the repository applies the whole patch atomically.
type LeadPatch struct {
	SmsState            Field[conversation.State]
	Status              Field[LeadStatus]
	BillingRequired     Field[bool]
	ServiceRequested    Field[string]
	ServiceSelectionRaw Field[string]
	Urgency             Field[string]
	ZipCode             Field[string]
	BestTime            Field[string]
	ContactName         Field[string]
	SmsStartedAt        Field[time.Time]
	SmsCompletedAt      Field[time.Time]
	LastInboundAt       Field[time.Time]
	LastOutboundAt      Field[time.Time]
	LastInteractionAt   Field[time.Time]
	OwnerNotifiedAt     Field[time.Time]
}

// Message is an immutable transcript entry. ProviderSID uniqueness is
// the sole dedup key for inbound webhook deliveries.
type Message struct {
	ID         string  `json:"id" db:"id"`
	BusinessID string  `json:"business_id" db:"business_id"`
	LeadID     *string `json:"lead_id,omitempty" db:"lead_id"`

	ProviderSID *string `json:"provider_sid,omitempty" db:"provider_sid"`

	Direction   MessageDirection   `json:"direction" db:"direction"`
	Participant MessageParticipant `json:"participant" db:"participant"`

	FromPhone string `json:"from_phone" db:"from_phone"`
	ToPhone   string `json:"to_phone" db:"to_phone"`
	Body      string `json:"body" db:"body"`

	// Status is the provider delivery status, when known.
	Status *string `json:"status,omitempty" db:"status"`

	RawPayload        string     `json:"raw_payload,omitempty" db:"raw_payload"`
	ProviderCreatedAt *time.Time `json:"provider_created_at,omitempty" db:"provider_created_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "INBOUND"
	DirectionOutbound MessageDirection = "OUTBOUND"
)

type MessageParticipant string

const (
	ParticipantLead  MessageParticipant = "LEAD"
	ParticipantOwner MessageParticipant = "OWNER"
)
