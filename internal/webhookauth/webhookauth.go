// Package webhookauth authenticates inbound provider callbacks.
//
// Two strategies are supported. Token mode compares a shared secret
// carried in a header or the webhook_token query parameter. Signature
// mode verifies the X-Twilio-Signature HMAC over the full request URL
// and the sorted POST parameters; outside production a failed signature
// check falls back to token mode. In production an unconfigured
// authenticator rejects everything; outside production it allows
// requests through so local tunnels work without secrets.
package webhookauth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"
)

// Header names probed for the shared token, in order.
var tokenHeaders = []string{
	"x-callbackcloser-webhook-token",
	"x-twilio-webhook-auth-token",
	"x-webhook-token",
	"authorization",
}

const (
	queryParam      = "webhook_token"
	signatureHeader = "X-Twilio-Signature"
)

// Decision explains an authentication outcome for logging and audit.
type Decision string

const (
	DecisionTokenMatch       Decision = "token_match"
	DecisionTokenMismatch    Decision = "token_mismatch"
	DecisionSignatureValid   Decision = "signature_valid"
	DecisionSignatureInvalid Decision = "signature_invalid"
	DecisionNotConfigured    Decision = "not_configured"
)

// Result carries the verdict plus the decision for the request log.
type Result struct {
	Allowed  bool
	Decision Decision
}

// Config selects and parameterizes the strategy.
type Config struct {
	// Token is the shared webhook secret. Empty disables token mode.
	Token string
	// ValidateSignature switches to X-Twilio-Signature verification
	// using AuthToken and BaseURL.
	ValidateSignature bool
	// AuthToken is the provider account auth token for signature mode.
	AuthToken string
	// BaseURL is the public origin callbacks are addressed to, e.g.
	// "https://app.example.com". Signature mode reconstructs the signed
	// URL from it because the request's own Host may be a proxy's.
	BaseURL string
	// Production controls the unconfigured fallback: fail closed in
	// production, allow otherwise.
	Production bool
}

// Authenticator verifies webhook requests per Config.
type Authenticator struct {
	cfg       Config
	validator twilioclient.RequestValidator
}

func New(cfg Config) *Authenticator {
	return &Authenticator{
		cfg:       cfg,
		validator: twilioclient.NewRequestValidator(cfg.AuthToken),
	}
}

// Authenticate verifies one request. The form must already be parsed
// (r.ParseForm) before calling in signature mode, since the signature
// covers the POST parameters.
func (a *Authenticator) Authenticate(r *http.Request) Result {
	if a.cfg.ValidateSignature && a.cfg.AuthToken != "" {
		res := a.checkSignature(r)
		if res.Allowed || a.cfg.Production || a.cfg.Token == "" {
			return res
		}
		// Outside production a bad or missing signature falls back to
		// token mode so locally tunneled requests still authenticate.
		return a.checkToken(r)
	}
	if a.cfg.Token != "" {
		return a.checkToken(r)
	}
	if a.cfg.Production {
		return Result{Allowed: false, Decision: DecisionNotConfigured}
	}
	return Result{Allowed: true, Decision: DecisionNotConfigured}
}

func (a *Authenticator) checkToken(r *http.Request) Result {
	expected := strings.TrimSpace(a.cfg.Token)

	for _, name := range tokenHeaders {
		raw := r.Header.Get(name)
		if raw == "" {
			continue
		}
		value := strings.TrimSpace(raw)
		if strings.HasPrefix(strings.ToLower(value), "bearer ") {
			value = strings.TrimSpace(value[len("bearer "):])
		}
		if tokenEqual(value, expected) {
			return Result{Allowed: true, Decision: DecisionTokenMatch}
		}
	}

	if q := strings.TrimSpace(r.URL.Query().Get(queryParam)); q != "" && tokenEqual(q, expected) {
		return Result{Allowed: true, Decision: DecisionTokenMatch}
	}
	return Result{Allowed: false, Decision: DecisionTokenMismatch}
}

func (a *Authenticator) checkSignature(r *http.Request) Result {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return Result{Allowed: false, Decision: DecisionSignatureInvalid}
	}

	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	url := a.signedURL(r)
	if a.validator.Validate(url, params, signature) {
		return Result{Allowed: true, Decision: DecisionSignatureValid}
	}
	return Result{Allowed: false, Decision: DecisionSignatureInvalid}
}

// signedURL rebuilds the URL the provider signed: the configured public
// origin plus the request path and query string.
func (a *Authenticator) signedURL(r *http.Request) string {
	base := strings.TrimRight(a.cfg.BaseURL, "/")
	if base == "" {
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		base = scheme + "://" + r.Host
	}
	url := base + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}
	return url
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
