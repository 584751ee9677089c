package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("ledger: not found")
	// ErrInvalidRecord rejects writes missing their identifying keys.
	ErrInvalidRecord = errors.New("ledger: invalid record")
)

// CallStore persists calls keyed by the provider call SID.
type CallStore interface {
	// UpsertCall inserts the call on first sight and merges subsequent
	// callbacks into the same row. Nil optional fields never overwrite
	// previously stored values; the raw payload is always refreshed.
	UpsertCall(ctx context.Context, u CallUpsert) (Call, error)

	// UpdateCallRecording applies recording metadata to an existing call
	// without touching dial fields. Returns false when no such call exists.
	UpdateCallRecording(ctx context.Context, providerCallSID string, rec RecordingMetadata, rawPayload string) (bool, error)

	GetCallByProviderSID(ctx context.Context, providerCallSID string) (Call, error)
	ListCallsInRange(ctx context.Context, businessID string, from, to time.Time) ([]Call, error)
}

// LeadStore persists leads; call_id is unique so a retried missed-call
// callback always lands on the same lead.
type LeadStore interface {
	// FindOrCreateLeadByCall creates the lead if no lead exists for its
	// call, otherwise returns the existing one. Safe under concurrent
	// duplicate callbacks (insert-detect-conflict, not check-then-insert).
	FindOrCreateLeadByCall(ctx context.Context, l Lead) (lead Lead, created bool, err error)

	GetLeadByID(ctx context.Context, id string) (Lead, error)
	FindLeadByCallID(ctx context.Context, callID string) (Lead, error)

	// FindLatestLeadForCaller prefers the most recent lead still mid-script
	// and falls back to the most recent lead of any state.
	FindLatestLeadForCaller(ctx context.Context, businessID, callerPhoneNormalized string) (Lead, error)

	UpdateLead(ctx context.Context, id string, p LeadPatch) (Lead, error)

	// MarkConversationStarted atomically claims the "automation has begun"
	// slot: it sets sms_started_at only if it is still unset and reports
	// whether this caller won the claim.
	MarkConversationStarted(ctx context.Context, id string, at time.Time) (bool, error)

	// ClearConversationStart releases a claim whose opening send failed so
	// a later retry may start the conversation.
	ClearConversationStart(ctx context.Context, id string) error

	// CountLeadsStartedBetween counts leads whose conversation start falls
	// in [from, to); the usage limiter's "used" figure.
	CountLeadsStartedBetween(ctx context.Context, businessID string, from, to time.Time) (int, error)

	ListLeads(ctx context.Context, businessID string, f LeadFilter) ([]Lead, error)
	ListLeadsInRange(ctx context.Context, businessID string, from, to time.Time) ([]Lead, error)
}

// LeadFilter narrows ListLeads; zero value lists the most recent leads.
type LeadFilter struct {
	Status LeadStatus // empty: all
	Limit  int        // <=0: default 50
}

// MessageStore persists transcript entries with provider-SID dedup.
type MessageStore interface {
	// InsertMessage persists a message. If its provider SID was already
	// stored, the existing record is returned with duplicate=true and
	// nothing is written; callers must skip downstream side effects on a
	// duplicate.
	InsertMessage(ctx context.Context, m Message) (msg Message, duplicate bool, err error)

	FindMessageByProviderSID(ctx context.Context, providerSID string) (Message, error)
	ListMessagesForLead(ctx context.Context, leadID string) ([]Message, error)
}

// Repository is the combined ledger contract.
type Repository interface {
	CallStore
	LeadStore
	MessageStore
}
