package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestJWTVerifier_AcceptsValidToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v, err := NewJWTVerifier("secret", WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}

	uid, err := v.Verify(context.Background(), signToken(t, "secret", "user_123", now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if uid != "user_123" {
		t.Fatalf("uid=%q, want user_123", uid)
	}
}

func TestJWTVerifier_RejectsMissingToken(t *testing.T) {
	v, _ := NewJWTVerifier("secret")

	_, err := v.Verify(context.Background(), "   ")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err=%v, want *AuthError", err)
	}
}

func TestJWTVerifier_RejectsWrongSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v, _ := NewJWTVerifier("secret", WithClock(func() time.Time { return now }))

	_, err := v.Verify(context.Background(), signToken(t, "other-secret", "user_123", now.Add(time.Hour)))
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err=%v, want *AuthError", err)
	}
}

func TestJWTVerifier_RejectsExpiredToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v, _ := NewJWTVerifier("secret", WithClock(func() time.Time { return now }))

	_, err := v.Verify(context.Background(), signToken(t, "secret", "user_123", now.Add(-time.Minute)))
	if err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestJWTVerifier_RejectsEmptySubject(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v, _ := NewJWTVerifier("secret", WithClock(func() time.Time { return now }))

	_, err := v.Verify(context.Background(), signToken(t, "secret", "", now.Add(time.Hour)))
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err=%v, want *AuthError", err)
	}
}

func TestJWTVerifier_RejectsMalformedToken(t *testing.T) {
	v, _ := NewJWTVerifier("secret")

	_, err := v.Verify(context.Background(), "not.a.jwt")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err=%v, want *AuthError", err)
	}
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewJWTVerifier(" "); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
