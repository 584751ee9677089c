package telephony

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SentMessage is the provider acknowledgment for an outbound SMS.
type SentMessage struct {
	SID       string
	Status    string
	CreatedAt *time.Time
}

// MessageSender sends a single SMS. All sends go through the REST API
// rather than TwiML replies, so every message lands in the ledger with
// a provider SID.
type MessageSender interface {
	SendSMS(ctx context.Context, from, to, body string) (SentMessage, error)
}

// TwilioSender sends messages through the provider REST API.
type TwilioSender struct {
	client *twilio.RestClient
}

func NewTwilioSender(accountSID, authToken string) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
	}
}

func (s *TwilioSender) SendSMS(ctx context.Context, from, to, body string) (SentMessage, error) {
	if from == "" || to == "" {
		return SentMessage{}, errors.New("telephony: from and to required")
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	msg, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return SentMessage{}, fmt.Errorf("create message: %w", err)
	}

	out := SentMessage{}
	if msg.Sid != nil {
		out.SID = *msg.Sid
	}
	if msg.Status != nil {
		out.Status = *msg.Status
	}
	if msg.DateCreated != nil {
		if t, perr := time.Parse(time.RFC1123Z, *msg.DateCreated); perr == nil {
			utc := t.UTC()
			out.CreatedAt = &utc
		}
	}
	return out, nil
}

// FakeSender records sends for tests and can be told to fail.
type FakeSender struct {
	mu   sync.Mutex
	Sent []FakeSent
	Err  error
	seq  int
}

type FakeSent struct {
	From string
	To   string
	Body string
	SID  string
}

func (s *FakeSender) SendSMS(_ context.Context, from, to, body string) (SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return SentMessage{}, s.Err
	}
	s.seq++
	sid := fmt.Sprintf("SM-fake-%d", s.seq)
	s.Sent = append(s.Sent, FakeSent{From: from, To: to, Body: body, SID: sid})
	return SentMessage{SID: sid, Status: "queued"}, nil
}

// Bodies returns the sent bodies in order.
func (s *FakeSender) Bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Sent))
	for i, m := range s.Sent {
		out[i] = m.Body
	}
	return out
}
