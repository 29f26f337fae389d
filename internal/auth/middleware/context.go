package middleware

import (
	"context"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	User domain.User

	// SessionID is the session the access token was minted under.
	SessionID string
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal set by Authenticator.Middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
