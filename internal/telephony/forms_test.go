package telephony

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseDialStatusForm(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("DialCallSid", "CA456")
	form.Set("From", " +15125550100 ")
	form.Set("To", "+15125550199")
	form.Set("DialCallStatus", "no-answer")
	form.Set("CallDuration", "25")
	form.Set("DialCallDuration", "bogus")
	form.Set("RecordingSid", "RE1")
	form.Set("RecordingDuration", "30")

	r := httptest.NewRequest("POST", "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f, err := ParseDialStatusForm(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.CallSID != "CA123" || f.DialCallSID != "CA456" {
		t.Fatalf("sids not parsed: %+v", f)
	}
	if f.From != "+15125550100" {
		t.Fatalf("from not trimmed: %q", f.From)
	}
	if f.CallDurationSeconds == nil || *f.CallDurationSeconds != 25 {
		t.Fatalf("call duration not parsed")
	}
	if f.DialCallDurationSeconds != nil {
		t.Fatalf("non-numeric duration should be nil")
	}
	if f.Recording.SID == nil || *f.Recording.SID != "RE1" {
		t.Fatalf("recording sid not extracted")
	}
	if f.Recording.DurationSeconds == nil || *f.Recording.DurationSeconds != 30 {
		t.Fatalf("recording duration not extracted")
	}
	if f.RawPayload == "" || !strings.Contains(f.RawPayload, "CA123") {
		t.Fatalf("raw payload not captured: %q", f.RawPayload)
	}
}

func TestParseSmsFormFallsBackToSmsSid(t *testing.T) {
	form := url.Values{}
	form.Set("SmsSid", "SM999")
	form.Set("From", "+15125550100")
	form.Set("To", "+15125550199")
	form.Set("Body", "STOP")

	r := httptest.NewRequest("POST", "/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f, err := ParseSmsForm(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.MessageSID != "SM999" {
		t.Fatalf("sid fallback failed: %q", f.MessageSID)
	}
	if f.Body != "STOP" {
		t.Fatalf("body not parsed: %q", f.Body)
	}
}

func TestIsMissedDialStatus(t *testing.T) {
	for _, missed := range []string{"no-answer", "busy", "failed", "canceled", " NO-ANSWER "} {
		if !IsMissedDialStatus(missed) {
			t.Fatalf("%q should be missed", missed)
		}
	}
	for _, notMissed := range []string{"completed", "answered", "", "in-progress"} {
		if IsMissedDialStatus(notMissed) {
			t.Fatalf("%q should not be missed", notMissed)
		}
	}
	if !IsAnsweredDialStatus("completed") || IsAnsweredDialStatus("busy") {
		t.Fatalf("answered predicate wrong")
	}
}

func TestIsRecordingOnly(t *testing.T) {
	sid := "RE1"
	rec := DialStatusForm{CallSID: "CA1"}
	rec.Recording.SID = &sid
	if !rec.IsRecordingOnly() {
		t.Fatalf("recording metadata without dial outcome should be recording-only")
	}

	full := DialStatusForm{CallSID: "CA1", To: "+15125550199", DialCallStatus: "no-answer"}
	full.Recording.SID = &sid
	if full.IsRecordingOnly() {
		t.Fatalf("dial outcome with recording attached is not recording-only")
	}

	plain := DialStatusForm{CallSID: "CA1", To: "+15125550199", DialCallStatus: "completed"}
	if plain.IsRecordingOnly() {
		t.Fatalf("no recording metadata means not recording-only")
	}
}
