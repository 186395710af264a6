package auth

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID: "user-1",
		Role:   "hr",
		Email:  "hr@example.com",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "hr" || claims.Email != "hr@example.com" {
		t.Fatalf("unexpected claims")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other-secret", "issuer", token); err == nil {
		t.Fatalf("expected signature mismatch to error")
	}
}

func TestParseTokenRejectsWrongIssuer(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "someone-else", token); err == nil {
		t.Fatalf("expected issuer mismatch to error")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", -time.Minute, Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "issuer", token); err == nil {
		t.Fatalf("expected expired token to error")
	}
}

func TestRefreshTokenCarriesSubject(t *testing.T) {
	token, err := NewRefreshToken("secret", "issuer", time.Hour, "user-9")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "user-9" {
		t.Fatalf("expected subject user-9, got %s", claims.UserID)
	}
}
