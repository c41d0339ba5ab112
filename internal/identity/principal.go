// Package identity implements per-request principal resolution and the
// authorization gates layered on top of it. A request either ends with a
// fully resolved Principal attached to its context or is rejected before any
// protected handler runs; no partially trusted state is ever exposed
// downstream.
package identity

import (
	"context"

	"coopmarket/pkg/domain"
)

// Principal is the resolved identity for one request. It is constructed
// fresh per request and discarded when the request ends; there is no
// server-side session store.
type Principal struct {
	InternalID domain.UserID
	ExternalID string
	Email      string
	Role       domain.Role
	IsActive   bool
	IsVerified bool
}

// IsAdmin reports whether the principal may bypass ownership checks.
func (p Principal) IsAdmin() bool { return p.Role == domain.RoleAdmin }

type principalKey struct{}

// ContextKeyPrincipal is exported for tests that build contexts directly.
var ContextKeyPrincipal = principalKey{}

// WithPrincipal attaches a resolved principal to the request context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// FromContext retrieves the resolved principal, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(Principal)
	return p, ok
}
