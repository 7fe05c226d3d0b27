package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserID is the stable identity derived from a verified credential.
type UserID string

// AuthError rejects a connection attempt. It is terminal: callers close the
// transport and never retry verification.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Verifier checks an inbound credential token and derives the caller identity.
// Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, token string) (UserID, error)
}

// JWTVerifier validates HMAC-signed identity tokens. The subject claim carries
// the user id.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

type JWTOption func(*JWTVerifier)

// WithClock overrides the verification clock. Used in tests.
func WithClock(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) { v.now = now }
}

func NewJWTVerifier(secret string, opts ...JWTOption) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	v := &JWTVerifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (UserID, error) {
	if strings.TrimSpace(token) == "" {
		return "", &AuthError{Reason: "missing token"}
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return "", &AuthError{Reason: "token verification failed", Err: err}
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", &AuthError{Reason: "invalid token"}
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", &AuthError{Reason: "token has no subject"}
	}
	return UserID(sub), nil
}
