package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

// ErrResourceNotFound is returned by an OwnerLoader when the target does not
// exist.
var ErrResourceNotFound = errors.New("middleware: resource not found")

// OwnerLoader returns the id of the principal owning the resource the request
// targets.
type OwnerLoader func(r *http.Request) (string, error)

// RequireRole admits principals whose role is one of roles. It must run after
// Authenticator.Middleware.
func RequireRole(roles ...domain.Role) httpx.Middleware {
	required := make([]string, len(roles))
	for i, r := range roles {
		required[i] = string(r)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, authsdk.ErrNoToken)
				return
			}
			if !slices.Contains(roles, p.User.Role) {
				writeError(w, r, authsdk.ErrInsufficientPermissions.WithDetails(map[string]any{
					"required": required,
					"actual":   string(p.User.Role),
				}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnership admits the owner of the loaded resource and any role that
// bypasses ownership. It must run after Authenticator.Middleware.
func RequireOwnership(load OwnerLoader) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, authsdk.ErrNoToken)
				return
			}

			owner, err := load(r)
			switch {
			case errors.Is(err, ErrResourceNotFound):
				writeError(w, r, authsdk.ErrResourceNotFound)
				return
			case err != nil:
				slogx.FromContext(r.Context()).Error("resource owner lookup failed", slog.Any("error", err))
				writeError(w, r, authsdk.ErrServiceUnavailable)
				return
			}

			if !p.User.Role.BypassesOwnership() && owner != p.User.ID {
				writeError(w, r, authsdk.ErrNotOwner)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
