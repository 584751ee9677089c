package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs webhook decision records.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.BusinessID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" || e.Decision == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogDecision records a webhook outcome keyed by its provider identifiers.
func (s *Service) LogDecision(ctx context.Context, businessID string, t EventType, decision, callSID, messageSID, leadID, message string) error {
	return s.Append(ctx, Event{
		BusinessID: businessID,
		Type:       t,
		Decision:   decision,
		CallSID:    callSID,
		MessageSID: messageSID,
		LeadID:     leadID,
		Message:    message,
	})
}
