package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = errors.New("bearer token expired")

// TokenSource yields the bearer credential attached to every catalog call.
// The interactive login flow that mints the credential lives outside this
// tool; implementations only hold and vet an already-acquired token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource wraps a raw bearer token. When the token parses as a
// JWT its expiry claim is checked on every Token call; opaque tokens pass
// through unchecked.
type StaticTokenSource struct {
	raw       string
	expiresAt time.Time
}

// NewStaticTokenSource inspects the token's claims without verifying the
// signature — verification belongs to the resource server, the client only
// wants the expiry.
func NewStaticTokenSource(raw string) *StaticTokenSource {
	ts := &StaticTokenSource{raw: raw}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			ts.expiresAt = exp.Time
		}
	}
	return ts
}

// Token returns the raw bearer token, or ErrTokenExpired once past the
// token's expiry claim.
func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		return "", fmt.Errorf("token expired at %s: %w", s.expiresAt.Format(time.RFC3339), ErrTokenExpired)
	}
	return s.raw, nil
}

// ExpiresAt returns the token's expiry, or the zero time when unknown.
func (s *StaticTokenSource) ExpiresAt() time.Time {
	return s.expiresAt
}
