// Package messaging owns the outbound send path and the message ledger
// writes around it. Every outbound SMS is gated on recipient consent
// and persisted with its provider SID; inbound messages are persisted
// idempotently on that same SID.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"callbackcloser/internal/compliance"
	"callbackcloser/internal/ledger"
	"callbackcloser/internal/phone"
	"callbackcloser/internal/telephony"
)

// ConsentChecker gates outbound sends. compliance.Service satisfies it.
type ConsentChecker interface {
	IsOptedOut(ctx context.Context, businessID, phoneNumber string) (bool, error)
}

type Service struct {
	messages ledger.MessageStore
	sender   telephony.MessageSender
	consent  ConsentChecker
	clock    func() time.Time
}

func NewService(messages ledger.MessageStore, sender telephony.MessageSender, consent ConsentChecker) *Service {
	return &Service{
		messages: messages,
		sender:   sender,
		consent:  consent,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// InboundResult reports whether the provider redelivered a message we
// already hold.
type InboundResult struct {
	Message   ledger.Message
	Duplicate bool
}

// PersistInbound records an inbound SMS. Redeliveries with the same
// provider SID return the stored row with Duplicate set.
func (s *Service) PersistInbound(ctx context.Context, businessID string, leadID *string, providerSID, fromPhone, toPhone, body, rawPayload string) (InboundResult, error) {
	var sid *string
	if providerSID != "" {
		sid = &providerSID
	}
	msg, duplicate, err := s.messages.InsertMessage(ctx, ledger.Message{
		BusinessID:  businessID,
		LeadID:      leadID,
		ProviderSID: sid,
		Direction:   ledger.DirectionInbound,
		Participant: ledger.ParticipantLead,
		FromPhone:   normalizeOr(fromPhone),
		ToPhone:     normalizeOr(toPhone),
		Body:        body,
		RawPayload:  rawPayload,
		CreatedAt:   s.clock(),
	})
	if err != nil {
		return InboundResult{}, fmt.Errorf("persist inbound message: %w", err)
	}
	return InboundResult{Message: msg, Duplicate: duplicate}, nil
}

// OutboundResult is the outcome of a send attempt. Suppressed means the
// recipient opted out and nothing was sent or persisted.
type OutboundResult struct {
	Message    ledger.Message
	Sent       telephony.SentMessage
	Suppressed bool
}

// SendOutbound delivers one SMS and records it. Opted-out recipients
// suppress the send entirely.
func (s *Service) SendOutbound(ctx context.Context, businessID string, leadID *string, participant ledger.MessageParticipant, fromPhone, toPhone, body string) (OutboundResult, error) {
	from := normalizeOr(fromPhone)
	to := normalizeOr(toPhone)

	optedOut, err := s.consent.IsOptedOut(ctx, businessID, to)
	if err != nil {
		return OutboundResult{}, fmt.Errorf("check consent: %w", err)
	}
	if optedOut {
		return OutboundResult{Suppressed: true}, nil
	}

	return s.send(ctx, businessID, leadID, participant, from, to, body)
}

// SendComplianceReply delivers a mandated STOP/START/HELP confirmation.
// Carrier rules require these even for opted-out numbers, so this path
// bypasses the consent gate.
func (s *Service) SendComplianceReply(ctx context.Context, businessID string, leadID *string, fromPhone, toPhone, body string) (OutboundResult, error) {
	return s.send(ctx, businessID, leadID, ledger.ParticipantLead, normalizeOr(fromPhone), normalizeOr(toPhone), body)
}

func (s *Service) send(ctx context.Context, businessID string, leadID *string, participant ledger.MessageParticipant, from, to, body string) (OutboundResult, error) {
	sent, err := s.sender.SendSMS(ctx, from, to, body)
	if err != nil {
		return OutboundResult{}, fmt.Errorf("send sms: %w", err)
	}

	var sid *string
	if sent.SID != "" {
		sid = &sent.SID
	}
	var status *string
	if sent.Status != "" {
		status = &sent.Status
	}
	msg, _, err := s.messages.InsertMessage(ctx, ledger.Message{
		BusinessID:        businessID,
		LeadID:            leadID,
		ProviderSID:       sid,
		Direction:         ledger.DirectionOutbound,
		Participant:       participant,
		FromPhone:         from,
		ToPhone:           to,
		Body:              body,
		Status:            status,
		ProviderCreatedAt: sent.CreatedAt,
		CreatedAt:         s.clock(),
	})
	if err != nil {
		return OutboundResult{}, fmt.Errorf("persist outbound message: %w", err)
	}
	return OutboundResult{Message: msg, Sent: sent}, nil
}

// OwnerNotification carries the captured lead fields for the owner's
// heads-up text.
type OwnerNotification struct {
	BusinessName     string
	CallerPhone      string
	ServiceRequested *string
	Urgency          *string
	ZipCode          *string
	BestTime         *string
	LeadURL          string
}

// BuildOwnerNotification renders the pipe-delimited owner alert.
func BuildOwnerNotification(n OwnerNotification) string {
	parts := []string{
		fmt.Sprintf("[CallbackCloser] %s missed-call lead", n.BusinessName),
		"Caller: " + n.CallerPhone,
		"Service: " + orUnknown(n.ServiceRequested),
		"Urgency: " + orUnknown(n.Urgency),
		"ZIP: " + orUnknown(n.ZipCode),
		"Best time: " + orUnknown(n.BestTime),
		"Lead: " + n.LeadURL,
	}
	return strings.Join(parts, " | ")
}

func orUnknown(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "Unknown"
	}
	return *v
}

func normalizeOr(raw string) string {
	if n := phone.Normalize(raw); n != "" {
		return n
	}
	return strings.TrimSpace(raw)
}

var _ ConsentChecker = (*compliance.Service)(nil)
