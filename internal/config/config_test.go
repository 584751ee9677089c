package config

import (
	"strings"
	"testing"
)

func validLocal() Config {
	return Config{
		App:    AppConfig{Env: "local", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callbackcloser"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret"},
		Twilio: TwilioConfig{AccountSID: "AC123", AuthToken: "tok"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Billing.Timezone != "America/New_York" {
		t.Fatalf("expected billing timezone default, got %q", c.Billing.Timezone)
	}
	if c.App.Name != "CallbackCloser" {
		t.Fatalf("expected app name default, got %q", c.App.Name)
	}
}

func TestValidate_ProductionFailsClosedWithoutWebhookAuth(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.App.BaseURL = "https://app.example.com"
	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "callbackcloser"
	c.Auth.JWTAudience = "api"
	c.Billing.StarterPriceID = "price_starter"
	c.Billing.ProPriceID = "price_pro"

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without webhook token or signature validation")
	}
	if !strings.Contains(err.Error(), "TWILIO_WEBHOOK_AUTH_TOKEN") {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Twilio.ValidateSignature = true
	if err := c.Validate(); err != nil {
		t.Fatalf("expected signature mode to satisfy webhook auth, got %v", err)
	}
}

func TestValidate_RejectsBadTimezone(t *testing.T) {
	c := validLocal()
	c.Billing.Timezone = "Mars/Olympus_Mons"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestWebhookURL_EmbedsToken(t *testing.T) {
	c := validLocal()
	c.Twilio.WebhookToken = "tok123"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := c.WebhookURL("/webhooks/twilio/status")
	if want := "http://localhost:3000/webhooks/twilio/status?webhook_token=tok123"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
