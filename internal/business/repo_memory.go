package business

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and early development.
type MemoryRepo struct {
	mu         sync.Mutex
	Businesses map[string]Business
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Businesses: map[string]Business{}}
}

func (r *MemoryRepo) Put(b Business) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Businesses[b.ID] = b
}

func (r *MemoryRepo) FindByInboundNumber(ctx context.Context, normalized, raw string) (Business, error) {
	if normalized == "" && raw == "" {
		return Business{}, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.Businesses {
		if b.TwilioPhoneNumber == "" {
			continue
		}
		if b.TwilioPhoneNumber == normalized || b.TwilioPhoneNumber == raw {
			return b, nil
		}
	}
	return Business{}, ErrNotFound
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.Businesses[id]; ok {
		return b, nil
	}
	return Business{}, ErrNotFound
}

func (r *MemoryRepo) GetByOwner(ctx context.Context, ownerUserID string) (Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.Businesses {
		if b.OwnerUserID == ownerUserID {
			return b, nil
		}
	}
	return Business{}, ErrNotFound
}

func (r *MemoryRepo) UpdateSettings(ctx context.Context, id string, s Settings) (Business, error) {
	if err := s.Validate(); err != nil {
		return Business{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.Businesses[id]
	if !ok {
		return Business{}, ErrNotFound
	}
	b.Name = s.Name
	b.ForwardingNumber = s.ForwardingNumber
	b.NotifyPhone = s.NotifyPhone
	b.MissedCallSeconds = s.MissedCallSeconds
	b.ServiceLabel1 = s.ServiceLabel1
	b.ServiceLabel2 = s.ServiceLabel2
	b.ServiceLabel3 = s.ServiceLabel3
	b.RecordCalls = s.RecordCalls
	b.Timezone = s.Timezone
	b.UpdatedAt = time.Now().UTC()
	r.Businesses[id] = b
	return b, nil
}
