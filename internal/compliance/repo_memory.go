package compliance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu       sync.Mutex
	Consents map[string]Consent // keyed by businessID + "|" + phoneNormalized
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Consents: make(map[string]Consent)}
}

func consentKey(businessID, phoneNormalized string) string {
	return businessID + "|" + phoneNormalized
}

func (s *MemoryStore) UpsertPreference(_ context.Context, p Preference) (Consent, error) {
	if p.BusinessID == "" || p.PhoneNormalized == "" {
		return Consent{}, ErrInvalidRecord
	}
	if p.Command != CommandStop && p.Command != CommandStart {
		return Consent{}, ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	at := p.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	key := consentKey(p.BusinessID, p.PhoneNormalized)

	c, ok := s.Consents[key]
	if !ok {
		c = Consent{
			ID:              uuid.NewString(),
			BusinessID:      p.BusinessID,
			PhoneNormalized: p.PhoneNormalized,
			CreatedAt:       at,
		}
	}
	c.PhoneRawLastSeen = p.PhoneRawLastSeen
	c.OptedOut = p.Command == CommandStop
	if c.OptedOut {
		c.OptedOutAt = &at
		c.OptedInAt = nil
	} else {
		c.OptedInAt = &at
		c.OptedOutAt = nil
	}
	c.LastKeyword = string(p.Command)
	if p.MessageSID != nil {
		sid := *p.MessageSID
		c.LastMessageSID = &sid
	}
	c.UpdatedAt = at

	s.Consents[key] = c
	return c, nil
}

func (s *MemoryStore) GetConsent(_ context.Context, businessID, phoneNormalized string) (Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.Consents[consentKey(businessID, phoneNormalized)]
	if !ok {
		return Consent{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) IsOptedOut(_ context.Context, businessID, phoneNormalized string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.Consents[consentKey(businessID, phoneNormalized)]
	if !ok {
		return false, nil
	}
	return c.OptedOut, nil
}
