package auth

import (
	"context"
	"slices"

	"github.com/rhuss/codesmith/pkg/history"
)

// DefaultTier is the rate-limit tier of callers that carry none.
const DefaultTier = "default"

// AnonymousSubject names callers admitted without credentials.
const AnonymousSubject = "anonymous"

// Identity is an authenticated caller.
type Identity struct {
	Subject string

	// Tier selects the caller's rate limit. Empty means DefaultTier.
	Tier string

	// Tenant scopes the verification history the caller can see. Empty
	// leaves history unscoped.
	Tenant string

	Scopes []string

	// Claims carries authenticator-specific extras, such as JWT claims.
	Claims map[string]string
}

// Anonymous returns the identity of an unauthenticated caller.
func Anonymous() *Identity {
	return &Identity{Subject: AnonymousSubject, Tier: DefaultTier}
}

// RateTier returns the tier used for rate limiting.
func (id *Identity) RateTier() string {
	if id == nil || id.Tier == "" {
		return DefaultTier
	}
	return id.Tier
}

// HasScope reports whether scope was granted.
func (id *Identity) HasScope(scope string) bool {
	return id != nil && slices.Contains(id.Scopes, scope)
}

type identityKey struct{}

// WithIdentity returns a context carrying id. A tenant on id also scopes
// the history store for the rest of the request.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, id)
	if id != nil && id.Tenant != "" {
		ctx = history.SetTenant(ctx, id.Tenant)
	}
	return ctx
}

// FromContext returns the caller set by WithIdentity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
