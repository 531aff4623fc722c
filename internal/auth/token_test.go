package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestStaticTokenSource_Valid(t *testing.T) {
	raw := signedToken(t, time.Now().Add(time.Hour))
	ts := NewStaticTokenSource(raw)

	got, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != raw {
		t.Fatal("token changed in transit")
	}
	if ts.ExpiresAt().IsZero() {
		t.Error("expected expiry parsed from claims")
	}
}

func TestStaticTokenSource_Expired(t *testing.T) {
	raw := signedToken(t, time.Now().Add(-time.Minute))
	ts := NewStaticTokenSource(raw)

	if _, err := ts.Token(context.Background()); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestStaticTokenSource_Opaque(t *testing.T) {
	// Non-JWT tokens have no expiry to check and pass through.
	ts := NewStaticTokenSource("opaque-token-value")
	got, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "opaque-token-value" {
		t.Fatalf("unexpected token %q", got)
	}
	if !ts.ExpiresAt().IsZero() {
		t.Error("expected zero expiry for opaque token")
	}
}
