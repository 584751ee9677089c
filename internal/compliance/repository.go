package compliance

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("compliance: consent not found")
	ErrInvalidRecord = errors.New("compliance: invalid consent record")
)

// Store persists per-business SMS consent preferences.
type Store interface {
	// UpsertPreference records the latest STOP/START decision for a
	// (business, phone) pair, overwriting any earlier decision.
	UpsertPreference(ctx context.Context, p Preference) (Consent, error)

	// GetConsent returns the stored record, ErrNotFound when the number
	// has never sent a compliance keyword.
	GetConsent(ctx context.Context, businessID, phoneNormalized string) (Consent, error)

	// IsOptedOut reports whether outbound conversation texts to this
	// number are suppressed. An absent record means not opted out.
	IsOptedOut(ctx context.Context, businessID, phoneNormalized string) (bool, error)
}
