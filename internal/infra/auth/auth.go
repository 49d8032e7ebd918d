// Package auth supplies the bearer credential and the current-user identity
// the chat core needs. Token issuance and storage belong to the backend; the
// client only carries tokens and asks for a refresh when one expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken signals that no credential is available at all. Callers treat
// it as a sign-in precondition failure, never as something to retry.
var ErrNoToken = errors.New("auth: no token available")

// Identity is the signed-in user as seen by the stores. It is passed into
// store constructors explicitly instead of being captured from ambient state.
type Identity struct {
	UserID string
	Name   string
}

// TokenSource yields the current bearer token and can attempt one refresh
// after the backend rejects it as expired.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticSource wraps a fixed token. Refresh always fails, which ends the
// retry path immediately.
type StaticSource struct {
	Value string
}

func (s StaticSource) Token(ctx context.Context) (string, error) {
	if s.Value == "" {
		return "", ErrNoToken
	}
	return s.Value, nil
}

func (s StaticSource) Refresh(ctx context.Context) (string, error) {
	return "", fmt.Errorf("auth: static token cannot be refreshed: %w", ErrNoToken)
}

// RefreshableSource holds a mutable token and delegates refresh to a
// callback (typically the backend's token-refresh endpoint).
type RefreshableSource struct {
	mu        sync.Mutex
	token     string
	refreshFn func(ctx context.Context) (string, error)
}

// NewRefreshableSource builds a source from an initial token and a refresh
// callback.
func NewRefreshableSource(token string, refreshFn func(ctx context.Context) (string, error)) *RefreshableSource {
	return &RefreshableSource{token: token, refreshFn: refreshFn}
}

func (s *RefreshableSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

func (s *RefreshableSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshFn == nil {
		return "", fmt.Errorf("auth: no refresh callback configured: %w", ErrNoToken)
	}
	token, err := s.refreshFn(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: token refresh failed: %w", err)
	}
	s.token = token
	return token, nil
}

// IdentityFromToken extracts the user identity from JWT claims without
// verifying the signature. Verification is the backend's job; the client
// only needs to know who it is acting as.
func IdentityFromToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("auth: malformed token: %w", err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		// Some issuers use user_id instead of sub.
		sub, _ = claims["user_id"].(string)
	}
	if sub == "" {
		return Identity{}, fmt.Errorf("auth: token carries no subject")
	}
	name, _ := claims["name"].(string)
	return Identity{UserID: sub, Name: name}, nil
}

// Expired reports whether the token's exp claim is in the past. Tokens
// without an exp claim are treated as unexpired.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
