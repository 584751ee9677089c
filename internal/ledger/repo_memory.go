package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"callbackcloser/internal/conversation"
)

// MemoryRepo mirrors PostgresRepo merge semantics for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	Calls    map[string]Call // keyed by provider call SID
	Leads    map[string]Lead // keyed by lead ID
	Messages []Message
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		Calls: make(map[string]Call),
		Leads: make(map[string]Lead),
	}
}

func (r *MemoryRepo) UpsertCall(_ context.Context, u CallUpsert) (Call, error) {
	if u.BusinessID == "" || u.ProviderCallSID == "" {
		return Call{}, ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	c, ok := r.Calls[u.ProviderCallSID]
	if !ok {
		c = Call{
			ID:                  uuid.NewString(),
			BusinessID:          u.BusinessID,
			ProviderCallSID:     u.ProviderCallSID,
			FromPhone:           u.FromPhone,
			FromPhoneNormalized: u.FromPhoneNormalized,
			ToPhone:             u.ToPhone,
			ToPhoneNormalized:   u.ToPhoneNormalized,
			Status:              CallReceived,
			CreatedAt:           now,
		}
	}
	if u.ParentCallSID != nil {
		c.ParentCallSID = copyString(*u.ParentCallSID)
	}
	if u.DialCallSID != nil {
		c.DialCallSID = copyString(*u.DialCallSID)
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.DialCallStatus != nil {
		c.DialCallStatus = copyString(*u.DialCallStatus)
	}
	if u.Answered != nil {
		c.Answered = *u.Answered
	}
	if u.Missed != nil {
		c.Missed = *u.Missed
	}
	if u.CallDurationSeconds != nil {
		c.CallDurationSeconds = copyInt(*u.CallDurationSeconds)
	}
	if u.DialCallDurationSeconds != nil {
		c.DialCallDurationSeconds = copyInt(*u.DialCallDurationSeconds)
	}
	applyRecording(&c, u.Recording)
	c.RawPayload = u.RawPayload
	c.UpdatedAt = now

	r.Calls[u.ProviderCallSID] = c
	return c, nil
}

func (r *MemoryRepo) UpdateCallRecording(_ context.Context, providerCallSID string, rec RecordingMetadata, rawPayload string) (bool, error) {
	if providerCallSID == "" {
		return false, ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.Calls[providerCallSID]
	if !ok {
		return false, nil
	}
	applyRecording(&c, rec)
	c.RawPayload = rawPayload
	c.UpdatedAt = time.Now().UTC()
	r.Calls[providerCallSID] = c
	return true, nil
}

func applyRecording(c *Call, rec RecordingMetadata) {
	if rec.SID != nil {
		c.RecordingSID = copyString(*rec.SID)
	}
	if rec.URL != nil {
		c.RecordingURL = copyString(*rec.URL)
	}
	if rec.Status != nil {
		c.RecordingStatus = copyString(*rec.Status)
	}
	if rec.DurationSeconds != nil {
		c.RecordingDurationSeconds = copyInt(*rec.DurationSeconds)
	}
}

func (r *MemoryRepo) GetCallByProviderSID(_ context.Context, providerCallSID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.Calls[providerCallSID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListCallsInRange(_ context.Context, businessID string, from, to time.Time) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Call, 0)
	for _, c := range r.Calls {
		if c.BusinessID == businessID && !c.CreatedAt.Before(from) && c.CreatedAt.Before(to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) FindOrCreateLeadByCall(_ context.Context, l Lead) (Lead, bool, error) {
	if l.BusinessID == "" || l.CallID == "" {
		return Lead{}, false, ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.Leads {
		if existing.CallID == l.CallID {
			return existing, false, nil
		}
	}

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.SmsState == "" {
		l.SmsState = conversation.StateNotStarted
	}
	if l.Status == "" {
		l.Status = LeadNew
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	r.Leads[l.ID] = l
	return l, true, nil
}

func (r *MemoryRepo) GetLeadByID(_ context.Context, id string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.Leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) FindLeadByCallID(_ context.Context, callID string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.Leads {
		if l.CallID == callID {
			return l, nil
		}
	}
	return Lead{}, ErrNotFound
}

func (r *MemoryRepo) FindLatestLeadForCaller(_ context.Context, businessID, callerPhoneNormalized string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *Lead
	var bestAny *Lead
	for id := range r.Leads {
		l := r.Leads[id]
		if l.BusinessID != businessID || l.CallerPhoneNormalized != callerPhoneNormalized {
			continue
		}
		if bestAny == nil || l.CreatedAt.After(bestAny.CreatedAt) {
			cp := l
			bestAny = &cp
		}
		if l.SmsState == conversation.StateCompleted {
			continue
		}
		if best == nil || l.CreatedAt.After(best.CreatedAt) {
			cp := l
			best = &cp
		}
	}
	if best != nil {
		return *best, nil
	}
	if bestAny != nil {
		return *bestAny, nil
	}
	return Lead{}, ErrNotFound
}

func (r *MemoryRepo) UpdateLead(_ context.Context, id string, p LeadPatch) (Lead, error) {
	if id == "" {
		return Lead{}, ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.Leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}

	if p.SmsState.Present {
		l.SmsState = p.SmsState.Value
	}
	if p.Status.Present {
		l.Status = p.Status.Value
	}
	if p.BillingRequired.Present {
		l.BillingRequired = p.BillingRequired.Value
	}
	applyStringField(&l.ServiceRequested, p.ServiceRequested)
	applyStringField(&l.ServiceSelectionRaw, p.ServiceSelectionRaw)
	applyStringField(&l.Urgency, p.Urgency)
	applyStringField(&l.ZipCode, p.ZipCode)
	applyStringField(&l.BestTime, p.BestTime)
	applyStringField(&l.ContactName, p.ContactName)
	applyTimeField(&l.SmsStartedAt, p.SmsStartedAt)
	applyTimeField(&l.SmsCompletedAt, p.SmsCompletedAt)
	applyTimeField(&l.LastInboundAt, p.LastInboundAt)
	applyTimeField(&l.LastOutboundAt, p.LastOutboundAt)
	applyTimeField(&l.LastInteractionAt, p.LastInteractionAt)
	applyTimeField(&l.OwnerNotifiedAt, p.OwnerNotifiedAt)
	l.UpdatedAt = time.Now().UTC()

	r.Leads[id] = l
	return l, nil
}

func applyStringField(dst **string, f Field[string]) {
	if !f.Present {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	*dst = copyString(f.Value)
}

func applyTimeField(dst **time.Time, f Field[time.Time]) {
	if !f.Present {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	t := f.Value
	*dst = &t
}

func (r *MemoryRepo) MarkConversationStarted(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.Leads[id]
	if !ok {
		return false, nil
	}
	if l.SmsStartedAt != nil {
		return false, nil
	}
	t := at.UTC()
	l.SmsStartedAt = &t
	l.UpdatedAt = time.Now().UTC()
	r.Leads[id] = l
	return true, nil
}

func (r *MemoryRepo) ClearConversationStart(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.Leads[id]
	if !ok {
		return nil
	}
	l.SmsStartedAt = nil
	l.UpdatedAt = time.Now().UTC()
	r.Leads[id] = l
	return nil
}

func (r *MemoryRepo) CountLeadsStartedBetween(_ context.Context, businessID string, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, l := range r.Leads {
		if l.BusinessID != businessID || l.SmsStartedAt == nil {
			continue
		}
		if !l.SmsStartedAt.Before(from) && l.SmsStartedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) ListLeads(_ context.Context, businessID string, f LeadFilter) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Lead, 0)
	for _, l := range r.Leads {
		if l.BusinessID != businessID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListLeadsInRange(_ context.Context, businessID string, from, to time.Time) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Lead, 0)
	for _, l := range r.Leads {
		if l.BusinessID == businessID && !l.CreatedAt.Before(from) && l.CreatedAt.Before(to) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) InsertMessage(_ context.Context, m Message) (Message, bool, error) {
	if m.BusinessID == "" {
		return Message{}, false, ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ProviderSID != nil && *m.ProviderSID != "" {
		for _, existing := range r.Messages {
			if existing.ProviderSID != nil && *existing.ProviderSID == *m.ProviderSID {
				return existing, true, nil
			}
		}
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.Messages = append(r.Messages, m)
	return m, false, nil
}

func (r *MemoryRepo) FindMessageByProviderSID(_ context.Context, providerSID string) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.Messages {
		if m.ProviderSID != nil && *m.ProviderSID == providerSID {
			return m, nil
		}
	}
	return Message{}, ErrNotFound
}

func (r *MemoryRepo) ListMessagesForLead(_ context.Context, leadID string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, 0)
	for _, m := range r.Messages {
		if m.LeadID != nil && *m.LeadID == leadID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func copyString(s string) *string { return &s }
func copyInt(n int) *int          { return &n }
