// Package auth resolves a connection's user identity, either from the
// Authorization header at handshake time or from an in-band token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/CallsForFriends/signalling-server/internal/config"
)

// Identity is the authenticated principal behind a signalling connection.
// It is resolved at most once per connection and immutable afterwards.
type Identity struct {
	UserID int64
}

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Provider validates credentials and yields the caller's identity. Exactly
// one implementation is active, selected by configuration at startup.
type Provider interface {
	// ValidateToken resolves the identity behind a bearer token.
	// ErrInvalidToken means the token was rejected; other errors indicate the
	// provider itself failed.
	ValidateToken(ctx context.Context, token string) (Identity, error)
}

func NewProvider(cfg config.Config) (Provider, error) {
	if cfg.AuthProviderEnabled {
		return NewRemoteProvider(cfg)
	}
	return StaticProvider{}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. ok is false when the header is absent or not a bearer scheme.
func BearerToken(h http.Header) (token string, ok bool) {
	raw := strings.TrimSpace(h.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	token = strings.TrimSpace(raw[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// FromRequest attempts the handshake-time (header) authentication path.
// A missing header yields ErrMissingCredentials so callers can fall back to
// in-band authentication.
func FromRequest(ctx context.Context, p Provider, r *http.Request) (Identity, error) {
	token, ok := BearerToken(r.Header)
	if !ok {
		return Identity{}, ErrMissingCredentials
	}
	return p.ValidateToken(ctx, token)
}
