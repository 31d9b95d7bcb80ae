// Package auth contains domain-level types for authenticated callers.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"context"
	"slices"
	"time"
)

// Identity represents the authenticated principal behind a bearer token.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	Subject   string // stable user identifier (e.g., samAccountName or sub)
	Email     string
	Groups    []string
	ExpiresAt time.Time // absolute expiry from the token
}

// InGroup reports whether the identity is a member of group.
func (i Identity) InGroup(group string) bool {
	return group != "" && slices.Contains(i.Groups, group)
}

// Expired reports whether the identity's token has expired at now.
// A zero ExpiresAt never expires.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// identityKey is an unexported context key type to avoid collisions across packages.
type identityKey struct{}

// WithIdentity returns a child context that carries id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored in ctx and whether one was present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
