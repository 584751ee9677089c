package compliance

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		body string
		want Command
	}{
		{"STOP", CommandStop},
		{"stop", CommandStop},
		{" Stop! ", CommandStop},
		{"STOPALL", CommandStop},
		{"unsubscribe", CommandStop},
		{"Cancel", CommandStop},
		{"END", CommandStop},
		{"quit", CommandStop},
		{"STOP please", CommandStop},
		{"START", CommandStart},
		{"yes", CommandStart},
		{"Unstop", CommandStart},
		{"HELP", CommandHelp},
		{"help?", CommandHelp},
		{"", ""},
		{"   ", ""},
		{"1", ""},
		{"I want to stop leaks in my roof", ""},
		{"please stop", ""},
	}
	for _, tc := range cases {
		if got := Classify(tc.body); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestReplyCarriesAppName(t *testing.T) {
	for _, cmd := range []Command{CommandStop, CommandStart, CommandHelp} {
		reply := Reply(cmd, "Acme Plumbing")
		if !strings.HasPrefix(reply, "Acme Plumbing: ") {
			t.Fatalf("reply for %s missing app name prefix: %q", cmd, reply)
		}
	}
	if !strings.HasPrefix(Reply(CommandStop, ""), "CallbackCloser: ") {
		t.Fatalf("empty app name should fall back to the default")
	}
}

func TestHandleInboundStopThenStart(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc := NewService(store, "CallbackCloser").WithClock(func() time.Time { return now })
	ctx := context.Background()

	sid := "SM1"
	res, err := svc.HandleInbound(ctx, "biz-1", "(512) 555-0100", "STOP", &sid)
	if err != nil {
		t.Fatalf("handle STOP: %v", err)
	}
	if !res.Handled || res.Command != CommandStop || res.StateChange != ChangeOptedOut {
		t.Fatalf("unexpected STOP result: %+v", res)
	}
	if res.ReplyText == "" {
		t.Fatalf("STOP must produce a confirmation reply")
	}

	optedOut, err := svc.IsOptedOut(ctx, "biz-1", "+15125550100")
	if err != nil {
		t.Fatalf("check opt-out: %v", err)
	}
	if !optedOut {
		t.Fatalf("number should be opted out after STOP")
	}

	c, err := store.GetConsent(ctx, "biz-1", "+15125550100")
	if err != nil {
		t.Fatalf("get consent: %v", err)
	}
	if c.OptedOutAt == nil || !c.OptedOutAt.Equal(now) {
		t.Fatalf("opted_out_at not recorded: %+v", c)
	}
	if c.LastKeyword != "STOP" || c.LastMessageSID == nil || *c.LastMessageSID != "SM1" {
		t.Fatalf("keyword audit fields not recorded: %+v", c)
	}

	now = now.Add(time.Hour)
	res, err = svc.HandleInbound(ctx, "biz-1", "(512) 555-0100", "start", nil)
	if err != nil {
		t.Fatalf("handle START: %v", err)
	}
	if res.StateChange != ChangeOptedIn {
		t.Fatalf("unexpected START result: %+v", res)
	}

	optedOut, err = svc.IsOptedOut(ctx, "biz-1", "+15125550100")
	if err != nil {
		t.Fatalf("recheck opt-out: %v", err)
	}
	if optedOut {
		t.Fatalf("number should be opted back in after START")
	}

	c, _ = store.GetConsent(ctx, "biz-1", "+15125550100")
	if c.OptedOutAt != nil {
		t.Fatalf("opted_out_at should clear on START")
	}
	if c.OptedInAt == nil || !c.OptedInAt.Equal(now) {
		t.Fatalf("opted_in_at not recorded")
	}
}

func TestHandleInboundHelpDoesNotTouchConsent(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, "CallbackCloser")
	ctx := context.Background()

	res, err := svc.HandleInbound(ctx, "biz-1", "+15125550100", "HELP", nil)
	if err != nil {
		t.Fatalf("handle HELP: %v", err)
	}
	if !res.Handled || res.StateChange != ChangeHelpOnly {
		t.Fatalf("unexpected HELP result: %+v", res)
	}
	if len(store.Consents) != 0 {
		t.Fatalf("HELP must not persist a consent record")
	}
}

func TestHandleInboundOrdinaryTextPassesThrough(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, "CallbackCloser")

	res, err := svc.HandleInbound(context.Background(), "biz-1", "+15125550100", "2", nil)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Handled {
		t.Fatalf("ordinary text must fall through to the conversation")
	}
}

func TestIsOptedOutUnknownNumber(t *testing.T) {
	svc := NewService(NewMemoryStore(), "CallbackCloser")
	optedOut, err := svc.IsOptedOut(context.Background(), "biz-1", "+15125550177")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if optedOut {
		t.Fatalf("unknown numbers are not opted out")
	}
}

func TestOptOutIsScopedPerBusiness(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, "CallbackCloser")
	ctx := context.Background()

	if _, err := svc.HandleInbound(ctx, "biz-1", "+15125550100", "STOP", nil); err != nil {
		t.Fatalf("handle STOP: %v", err)
	}

	optedOut, err := svc.IsOptedOut(ctx, "biz-2", "+15125550100")
	if err != nil {
		t.Fatalf("check other business: %v", err)
	}
	if optedOut {
		t.Fatalf("opt-out must not leak across businesses")
	}
}
