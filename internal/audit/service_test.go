package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresBusinessTypeAndDecision(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeSmsWebhook, Decision: "x"}); err == nil {
		t.Fatalf("expected error for missing business")
	}
	if err := svc.Append(context.Background(), Event{BusinessID: "b", Decision: "x"}); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if err := svc.Append(context.Background(), Event{BusinessID: "b", Type: EventTypeSmsWebhook}); err == nil {
		t.Fatalf("expected error for missing decision")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.LogDecision(context.Background(), "biz-1", EventTypeVoiceWebhook, "missed_call_sms_started", "CA1", "", "lead-1", "first outbound sent")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("id and timestamp should be filled in: %+v", e)
	}
	if e.Decision != "missed_call_sms_started" || e.CallSID != "CA1" || e.LeadID != "lead-1" {
		t.Fatalf("fields not recorded: %+v", e)
	}
}
