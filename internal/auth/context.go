// ABOUTME: Authenticated identity carried through request handlers via context
// ABOUTME: Provides WithIdentity/IdentityFromContext for the gate and handlers

package auth

import (
	"context"
	"time"
)

// Identity is the authenticated caller attached by the gate.
type Identity struct {
	Subject   string // account ID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the Identity from the context, returning nil if not present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// MustIdentityFromContext retrieves the Identity, panicking if not present.
// Only use it behind RequireIdentity.
func MustIdentityFromContext(ctx context.Context) *Identity {
	id := IdentityFromContext(ctx)
	if id == nil {
		panic("auth: Identity not found in context")
	}
	return id
}
