package telephony

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"callbackcloser/internal/ledger"
)

// Webhook form parsers. Twilio sends application/x-www-form-urlencoded.
// These stay provider-adapter-only; flow decisions are not made here.

// VoiceForm is the initial inbound-call webhook payload.
type VoiceForm struct {
	CallSID       string
	ParentCallSID string
	AccountSID    string
	From          string
	To            string
	CallStatus    string
	Direction     string

	// RawPayload is the full form re-encoded as JSON for the ledger.
	RawPayload string
}

// DialStatusForm is the Dial action callback, which doubles as the
// recording status callback when recording is enabled.
type DialStatusForm struct {
	CallSID        string
	ParentCallSID  string
	DialCallSID    string
	From           string
	To             string
	CallStatus     string
	DialCallStatus string

	CallDurationSeconds     *int
	DialCallDurationSeconds *int

	Recording ledger.RecordingMetadata

	RawPayload string
}

// SmsForm is the inbound SMS webhook payload.
type SmsForm struct {
	MessageSID string
	From       string
	To         string
	Body       string

	RawPayload string
}

func ParseVoiceForm(r *http.Request) (VoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceForm{}, err
	}
	return VoiceForm{
		CallSID:       r.PostFormValue("CallSid"),
		ParentCallSID: r.PostFormValue("ParentCallSid"),
		AccountSID:    r.PostFormValue("AccountSid"),
		From:          strings.TrimSpace(r.PostFormValue("From")),
		To:            strings.TrimSpace(r.PostFormValue("To")),
		CallStatus:    r.PostFormValue("CallStatus"),
		Direction:     r.PostFormValue("Direction"),
		RawPayload:    encodeRawPayload(r),
	}, nil
}

func ParseDialStatusForm(r *http.Request) (DialStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return DialStatusForm{}, err
	}
	return DialStatusForm{
		CallSID:                 r.PostFormValue("CallSid"),
		ParentCallSID:           r.PostFormValue("ParentCallSid"),
		DialCallSID:             r.PostFormValue("DialCallSid"),
		From:                    strings.TrimSpace(r.PostFormValue("From")),
		To:                      strings.TrimSpace(r.PostFormValue("To")),
		CallStatus:              r.PostFormValue("CallStatus"),
		DialCallStatus:          r.PostFormValue("DialCallStatus"),
		CallDurationSeconds:     parseSeconds(r.PostFormValue("CallDuration")),
		DialCallDurationSeconds: parseSeconds(r.PostFormValue("DialCallDuration")),
		Recording:               extractRecordingMetadata(r),
		RawPayload:              encodeRawPayload(r),
	}, nil
}

func ParseSmsForm(r *http.Request) (SmsForm, error) {
	if err := r.ParseForm(); err != nil {
		return SmsForm{}, err
	}
	sid := r.PostFormValue("MessageSid")
	if sid == "" {
		sid = r.PostFormValue("SmsSid")
	}
	return SmsForm{
		MessageSID: sid,
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
		RawPayload: encodeRawPayload(r),
	}, nil
}

// IsMissedDialStatus reports whether a Dial outcome counts as a missed
// call for follow-up purposes.
func IsMissedDialStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "no-answer", "busy", "failed", "canceled":
		return true
	}
	return false
}

// IsAnsweredDialStatus reports whether the forwarded leg connected.
func IsAnsweredDialStatus(status string) bool {
	return strings.ToLower(strings.TrimSpace(status)) == "completed"
}

// IsRecordingOnly reports whether a status callback carries only
// recording metadata, with no dial outcome to process.
func (f DialStatusForm) IsRecordingOnly() bool {
	return !f.Recording.Empty() && f.To == "" && f.DialCallStatus == ""
}

func extractRecordingMetadata(r *http.Request) ledger.RecordingMetadata {
	var rec ledger.RecordingMetadata
	if v := strings.TrimSpace(r.PostFormValue("RecordingSid")); v != "" {
		rec.SID = &v
	}
	if v := strings.TrimSpace(r.PostFormValue("RecordingUrl")); v != "" {
		rec.URL = &v
	}
	if v := strings.TrimSpace(r.PostFormValue("RecordingStatus")); v != "" {
		rec.Status = &v
	}
	rec.DurationSeconds = parseSeconds(r.PostFormValue("RecordingDuration"))
	return rec
}

func parseSeconds(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}

func encodeRawPayload(r *http.Request) string {
	flat := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	raw, _ := json.Marshal(flat)
	return string(raw)
}
