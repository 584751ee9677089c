package reporting

import (
	"context"
	"errors"
	"time"

	"callbackcloser/internal/conversation"
	"callbackcloser/internal/ledger"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository is the slice of the ledger that reporting reads.
// Implementations must enforce business filtering.
type Repository interface {
	ListCallsInRange(ctx context.Context, businessID string, from, to time.Time) ([]ledger.Call, error)
	ListLeadsInRange(ctx context.Context, businessID string, from, to time.Time) ([]ledger.Lead, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.BusinessID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCallsInRange(ctx, req.BusinessID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{BusinessID: req.BusinessID}
	for _, c := range rows {
		out.TotalCalls++
		if c.CallDurationSeconds != nil {
			out.TotalDurationSeconds += *c.CallDurationSeconds
		}
		if c.RecordingURL != nil && *c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch {
		case c.Answered:
			out.AnsweredCalls++
		case c.Missed:
			out.MissedCalls++
		default:
			out.OtherCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) LeadFunnel(ctx context.Context, req LeadFunnelRequest) (LeadFunnel, error) {
	if req.BusinessID == "" {
		return LeadFunnel{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return LeadFunnel{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return LeadFunnel{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListLeadsInRange(ctx, req.BusinessID, req.Range.From, req.Range.To)
	if err != nil {
		return LeadFunnel{}, err
	}

	out := LeadFunnel{BusinessID: req.BusinessID, ByStatus: map[string]int{}}
	for _, l := range rows {
		out.TotalLeads++
		out.ByStatus[string(l.Status)]++
		if l.SmsStartedAt != nil {
			out.SmsStarted++
		}
		if l.LastInboundAt != nil {
			out.Responded++
		}
		if l.SmsState == conversation.StateCompleted {
			out.Completed++
		}
		if l.BillingRequired {
			out.BillingBlocked++
		}
	}
	if out.SmsStarted > 0 {
		out.ResponseRate = float64(out.Responded) / float64(out.SmsStarted)
		out.CompletionRate = float64(out.Completed) / float64(out.SmsStarted)
	}
	return out, nil
}
