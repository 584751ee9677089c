package business

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("business: not found")

// Repository is the tenant lookup contract used by the webhook flows and
// the API surface.
type Repository interface {
	// FindByInboundNumber resolves the tenant that owns a dialed provider
	// number. Implementations match the normalized number first and fall
	// back to the raw value (numbers assigned before normalization was
	// introduced may be stored unnormalized).
	FindByInboundNumber(ctx context.Context, normalized, raw string) (Business, error)

	GetByID(ctx context.Context, id string) (Business, error)
	GetByOwner(ctx context.Context, ownerUserID string) (Business, error)

	// UpdateSettings replaces the owner-editable settings fields.
	UpdateSettings(ctx context.Context, id string, s Settings) (Business, error)
}

// Settings are the owner-editable fields; everything else (provider
// number assignment, subscription state) is written by other flows.
type Settings struct {
	Name              string
	ForwardingNumber  string
	NotifyPhone       string
	MissedCallSeconds int
	ServiceLabel1     string
	ServiceLabel2     string
	ServiceLabel3     string
	RecordCalls       bool
	Timezone          string
}

func (s Settings) Validate() error {
	if s.Name == "" {
		return errors.New("business: name is required")
	}
	if s.ForwardingNumber == "" {
		return errors.New("business: forwarding number is required")
	}
	if s.MissedCallSeconds < 5 || s.MissedCallSeconds > 90 {
		return errors.New("business: missed-call seconds must be between 5 and 90")
	}
	if s.ServiceLabel1 == "" || s.ServiceLabel2 == "" || s.ServiceLabel3 == "" {
		return errors.New("business: all three service labels are required")
	}
	return nil
}
