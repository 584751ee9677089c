package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only include primitives we need at the adapter boundary.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName xml.Name `xml:"Dial"`

	Timeout  int    `xml:"timeout,attr,omitempty"`
	Action   string `xml:"action,attr,omitempty"`
	Method   string `xml:"method,attr,omitempty"`
	CallerID string `xml:"callerId,attr,omitempty"`

	Record                        string `xml:"record,attr,omitempty"`
	RecordingStatusCallback       string `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackMethod string `xml:"recordingStatusCallbackMethod,attr,omitempty"`
	RecordingStatusCallbackEvent  string `xml:"recordingStatusCallbackEvent,attr,omitempty"`

	Number string `xml:"Number,omitempty"`
}

type twimlMessage struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

// DialRecordingMode is the dual-channel mode used for call recording.
const DialRecordingMode = "record-from-answer-dual"

// DialPlan describes the forwarding attempt for an inbound call.
type DialPlan struct {
	// ForwardTo is the owner's phone, the Dial target.
	ForwardTo string
	// TimeoutSeconds is how long to ring before the call counts as missed.
	TimeoutSeconds int
	// ActionURL receives the dial outcome callback.
	ActionURL string
	// CallerID shown to the forwarded phone; usually the tracked number.
	CallerID string
	// RecordingCallbackURL enables dual-channel recording when set.
	RecordingCallbackURL string
}

// VoiceDialTwiML renders the forwarding response for an inbound call.
func VoiceDialTwiML(plan DialPlan) (string, error) {
	if strings.TrimSpace(plan.ForwardTo) == "" {
		return "", errors.New("telephony: forward_to required for dial")
	}

	d := twimlDial{
		Timeout:  plan.TimeoutSeconds,
		Action:   plan.ActionURL,
		Method:   "POST",
		CallerID: plan.CallerID,
		Number:   plan.ForwardTo,
	}
	if plan.RecordingCallbackURL != "" {
		d.Record = DialRecordingMode
		d.RecordingStatusCallback = plan.RecordingCallbackURL
		d.RecordingStatusCallbackMethod = "POST"
		d.RecordingStatusCallbackEvent = "completed"
	}

	return renderTwiML(twimlResponse{Verbs: []any{d}})
}

// VoiceRejectTwiML renders the apology played when no business owns the
// dialed number.
func VoiceRejectTwiML(message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		message = "Sorry, this number is not configured."
	}
	return renderTwiML(twimlResponse{Verbs: []any{
		twimlSay{Text: message},
		twimlHangup{},
	}})
}

// MessagingTwiML renders a messaging webhook response. An empty body
// produces the bare acknowledgment; replies are normally sent over the
// REST API instead.
func MessagingTwiML(body string) (string, error) {
	r := twimlResponse{}
	if body != "" {
		r.Verbs = append(r.Verbs, twimlMessage{Body: body})
	}
	return renderTwiML(r)
}

func renderTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
