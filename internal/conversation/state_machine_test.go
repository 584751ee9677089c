package conversation

import "testing"

var testCfg = PromptConfig{
	ServiceLabel1: "Plumbing repair",
	ServiceLabel2: "Water heater",
	ServiceLabel3: "Drain cleaning",
}

func TestAdvance_FullScript(t *testing.T) {
	type step struct {
		input     string
		wantState State
		wantKind  Kind
	}
	steps := []step{
		{"", StateAwaitingService, KindAdvanced},
		{"1", StateAwaitingUrgency, KindAdvanced},
		{"2", StateAwaitingZip, KindAdvanced},
		{"78704", StateAwaitingBestTime, KindAdvanced},
		{"afternoon", StateAwaitingName, KindAdvanced},
		{"Pat", StateCompleted, KindCompleted},
	}

	state := StateNotStarted
	var service, urgency, zip, bestTime, name string
	for i, s := range steps {
		res := Advance(state, s.input, testCfg)
		if res.Kind != s.wantKind {
			t.Fatalf("step %d: kind = %v, want %v", i, res.Kind, s.wantKind)
		}
		if res.NextState != s.wantState {
			t.Fatalf("step %d: next = %q, want %q", i, res.NextState, s.wantState)
		}
		if res.Updates.ServiceRequested != nil {
			service = *res.Updates.ServiceRequested
		}
		if res.Updates.Urgency != nil {
			urgency = *res.Updates.Urgency
		}
		if res.Updates.ZipCode != nil {
			zip = *res.Updates.ZipCode
		}
		if res.Updates.BestTime != nil {
			bestTime = *res.Updates.BestTime
		}
		if res.Updates.ContactName != nil {
			name = *res.Updates.ContactName
		}
		state = res.NextState
	}

	if service != testCfg.ServiceLabel1 {
		t.Fatalf("service = %q, want %q", service, testCfg.ServiceLabel1)
	}
	if urgency != "Today" {
		t.Fatalf("urgency = %q, want Today", urgency)
	}
	if zip != "78704" {
		t.Fatalf("zip = %q, want 78704", zip)
	}
	if bestTime != "Afternoon" {
		t.Fatalf("bestTime = %q, want Afternoon", bestTime)
	}
	if name != "Pat" {
		t.Fatalf("name = %q, want Pat", name)
	}
}

func TestAdvance_InvalidInputNeverMovesState(t *testing.T) {
	cases := []struct {
		state State
		input string
	}{
		{StateAwaitingService, ""},
		{StateAwaitingUrgency, "whenever"},
		{StateAwaitingUrgency, "5"},
		{StateAwaitingZip, "!"},
		{StateAwaitingZip, "this is way too long for a postal code"},
		{StateAwaitingBestTime, "noonish"},
	}
	for _, tc := range cases {
		res := Advance(tc.state, tc.input, testCfg)
		if res.Kind != KindRejected {
			t.Fatalf("state %q input %q: expected rejection, got kind %v", tc.state, tc.input, res.Kind)
		}
		if res.NextState != tc.state {
			t.Fatalf("state %q input %q: state moved to %q", tc.state, tc.input, res.NextState)
		}
		if res.Reply == "" {
			t.Fatalf("state %q: rejection must re-prompt", tc.state)
		}
	}
}

func TestAdvance_ServiceFreeTextAccepted(t *testing.T) {
	res := Advance(StateAwaitingService, "burst pipe under the sink", testCfg)
	if res.Kind != KindAdvanced {
		t.Fatalf("expected advance, got %v", res.Kind)
	}
	if res.Updates.ServiceRequested == nil || *res.Updates.ServiceRequested != "burst pipe under the sink" {
		t.Fatalf("free text not captured verbatim: %+v", res.Updates)
	}
	if !res.MarkQualified {
		t.Fatalf("expected qualification flag on service capture")
	}
}

func TestAdvance_UrgencySynonyms(t *testing.T) {
	cases := map[string]string{
		"emergency": "Emergency",
		"URGENT":    "Emergency",
		"asap":      "Today",
		"This Week": "This week",
		"estimate":  "Quote",
		"4":         "Quote",
	}
	for in, want := range cases {
		res := Advance(StateAwaitingUrgency, in, testCfg)
		if res.Kind != KindAdvanced || res.Updates.Urgency == nil || *res.Updates.Urgency != want {
			t.Fatalf("urgency %q: got %+v, want %q", in, res.Updates.Urgency, want)
		}
	}
}

func TestAdvance_ZipVariants(t *testing.T) {
	res := Advance(StateAwaitingZip, "78704-1234", testCfg)
	if res.Kind != KindAdvanced || *res.Updates.ZipCode != "78704-1234" {
		t.Fatalf("zip+4 rejected: %+v", res)
	}
	if !res.NotifyOwner {
		t.Fatalf("expected owner notification flag after ZIP capture")
	}

	res = Advance(StateAwaitingZip, "sw1a 1aa", testCfg)
	if res.Kind != KindAdvanced || *res.Updates.ZipCode != "SW1A 1AA" {
		t.Fatalf("generic postal code not uppercased: %+v", res.Updates.ZipCode)
	}
}

func TestAdvance_NameSkipClearsContactName(t *testing.T) {
	for _, in := range []string{"", "skip", "No", "n/a", "NA"} {
		res := Advance(StateAwaitingName, in, testCfg)
		if res.Kind != KindCompleted {
			t.Fatalf("input %q: expected completion, got %v", in, res.Kind)
		}
		if !res.Updates.ContactNameSet || res.Updates.ContactName != nil {
			t.Fatalf("input %q: expected explicit clear-to-null, got %+v", in, res.Updates)
		}
	}
}

func TestAdvance_CompletedIsSteadyState(t *testing.T) {
	res := Advance(StateCompleted, "hello again", testCfg)
	if res.Kind != KindAdvanced || res.NextState != StateCompleted {
		t.Fatalf("completed state must hold: %+v", res)
	}
	if res.Updates != (FieldUpdates{}) {
		t.Fatalf("completed state must not touch fields: %+v", res.Updates)
	}
}

func TestAdvance_UnknownStateReissuesServicePrompt(t *testing.T) {
	res := Advance(State("CORRUPT"), "1", testCfg)
	if res.Kind != KindRejected {
		t.Fatalf("unknown state must reject, got %v", res.Kind)
	}
	if res.NextState != State("CORRUPT") {
		t.Fatalf("unknown state must not mutate state, got %q", res.NextState)
	}
	if res.Reply != ServicePrompt(testCfg) {
		t.Fatalf("unknown state must re-issue the service prompt")
	}
}
