package compliance

import "time"

// Command is a carrier-mandated SMS keyword class.
type Command string

const (
	CommandStop  Command = "STOP"
	CommandStart Command = "START"
	CommandHelp  Command = "HELP"
)

// Consent is the per-business opt-out record for a phone number.
// One row per (business, normalized phone) pair.
type Consent struct {
	ID               string `json:"id" db:"id"`
	BusinessID       string `json:"business_id" db:"business_id"`
	PhoneNormalized  string `json:"phone_normalized" db:"phone_normalized"`
	PhoneRawLastSeen string `json:"phone_raw_last_seen" db:"phone_raw_last_seen"`

	OptedOut   bool       `json:"opted_out" db:"opted_out"`
	OptedOutAt *time.Time `json:"opted_out_at,omitempty" db:"opted_out_at"`
	OptedInAt  *time.Time `json:"opted_in_at,omitempty" db:"opted_in_at"`

	LastKeyword    string  `json:"last_keyword" db:"last_keyword"`
	LastMessageSID *string `json:"last_message_sid,omitempty" db:"last_message_sid"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Preference is what a STOP or START command writes.
type Preference struct {
	BusinessID       string
	PhoneNormalized  string
	PhoneRawLastSeen string
	Command          Command // STOP or START only
	MessageSID       *string
	At               time.Time
}
