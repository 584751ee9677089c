package auth

import (
	"testing"
	"time"

	"callbackcloser/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "callbackcloser-test",
		JWTAudience:     "callbackcloser-api",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0)

	pair, err := m.IssuePair(now, "user-1", "biz-1", "owner")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("Verify access token: %v", err)
	}
	if claims.UserID != "user-1" || claims.BusinessID != "biz-1" || claims.Role != "owner" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("token_type = %q, want access", claims.TokenType)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0)

	pair, err := m.IssuePair(now, "user-1", "biz-1", "owner")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.Verify(pair.RefreshToken, TokenTypeAccess, now.Add(1*time.Minute)); err == nil {
		t.Fatalf("expected refresh token to be rejected as access token")
	}
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	now := time.Unix(1700000000, 0)

	other, err := NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "someone-else",
		JWTAudience:     "callbackcloser-api",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	pair, err := other.IssuePair(now, "user-1", "biz-1", "owner")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	m := testManager(t)
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute)); err == nil {
		t.Fatalf("expected token from a foreign issuer to be rejected")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0)

	pair, err := m.IssuePair(now, "user-1", "biz-1", "owner")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(16*time.Minute)); err == nil {
		t.Fatalf("expected expired access token to be rejected")
	}
}
