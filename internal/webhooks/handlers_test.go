package webhooks

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"callbackcloser/internal/business"
	"callbackcloser/internal/webhookauth"

	"github.com/gin-gonic/gin"
)

func handlerRouter(t *testing.T, f *fixture, token string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := Handlers{
		Auth:    webhookauth.New(webhookauth.Config{Token: token}),
		Service: f.svc,
	}

	r := gin.New()
	r.POST("/webhooks/twilio/voice", h.HandleVoice)
	r.POST("/webhooks/twilio/status", h.HandleDialStatus)
	r.POST("/webhooks/twilio/sms", h.HandleInboundSMS)
	return r
}

func postWebhook(r *gin.Engine, path, token string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("x-callbackcloser-webhook-token", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadToken(t *testing.T) {
	f := newFixture(t)
	r := handlerRouter(t, f, "secret")

	w := postWebhook(r, "/webhooks/twilio/voice", "wrong", url.Values{"CallSid": {"CA1"}})
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestWebhookAcksMalformedForm(t *testing.T) {
	f := newFixture(t)
	r := handlerRouter(t, f, "secret")

	// An undecodable body cannot carry a signed payload; the boundary
	// still answers markup, never an HTTP error the provider would retry.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/voice", strings.NewReader("%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-callbackcloser-webhook-token", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200 acknowledgment, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Response") {
		t.Fatalf("expected TwiML response, got: %s", w.Body.String())
	}
}

func TestVoiceWebhookReturnsDialTwiML(t *testing.T) {
	f := newFixture(t)
	f.seedBusiness(business.SubscriptionActive, "price_starter")
	r := handlerRouter(t, f, "secret")

	w := postWebhook(r, "/webhooks/twilio/voice", "secret", url.Values{
		"CallSid": {"CA100"},
		"From":    {"+15125550133"},
		"To":      {"+15125550199"},
	})
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content-type = %q, want text/xml", ct)
	}
	if !strings.Contains(w.Body.String(), "<Dial") || !strings.Contains(w.Body.String(), "+15125550111") {
		t.Fatalf("expected forwarding Dial, got: %s", w.Body.String())
	}
}

func TestSmsWebhookAcknowledgesUnknownNumber(t *testing.T) {
	f := newFixture(t)
	// No business owns the receiving number; the handler must still
	// acknowledge with 200 so the provider does not retry.
	r := handlerRouter(t, f, "secret")

	w := postWebhook(r, "/webhooks/twilio/sms", "secret", url.Values{
		"MessageSid": {"SM1"},
		"From":       {"+15125550133"},
		"To":         {"+15125550199"},
		"Body":       {"hello"},
	})
	if w.Code != 200 {
		t.Fatalf("expected 200 acknowledgment, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "<Response") {
		t.Fatalf("expected TwiML response, got: %s", w.Body.String())
	}
}
