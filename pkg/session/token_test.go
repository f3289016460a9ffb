package session

import (
	"testing"
	"time"
)

const testSecret = "docuquery-test-secret"

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.Issue("client-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := issuer.ClientID(token)
	if err != nil {
		t.Fatalf("client id: %v", err)
	}
	if got != "client-42" {
		t.Fatalf("client id = %q, want %q", got, "client-42")
	}
}

func TestTokenIssuerRejectsForeignAndExpiredTokens(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSecret, time.Minute)
	other, _ := NewTokenIssuer("another-secret-value", time.Minute)

	foreign, _ := other.Issue("client-1")
	if _, err := issuer.ClientID(foreign); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := issuer.ClientID("garbage"); err == nil {
		t.Fatalf("expected parse error")
	}

	token, _ := issuer.Issue("client-1")
	issuer.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := issuer.ClientID(token); err == nil {
		t.Fatalf("expected expired token error")
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("short", time.Minute); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}
