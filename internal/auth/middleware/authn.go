// Package middleware authenticates bearer access tokens and enforces role and
// ownership rules on top of the token service.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/service"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

// TokenVerifier checks an access token. *service.TokenService implements it.
type TokenVerifier interface {
	VerifyAccessToken(token string) (jwtx.Claims, error)
}

// UserLoader loads the principal named by a token. *service.UserService
// implements it.
type UserLoader interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// Authenticator turns a bearer token into a Principal.
type Authenticator struct {
	Tokens TokenVerifier
	Users  UserLoader

	// AllowUnverified lets principals with an unverified email through.
	AllowUnverified bool
}

// Authenticate returns the principal behind the request's bearer token.
// Every failure is an *authsdk.APIError.
func (a *Authenticator) Authenticate(r *http.Request) (domain.User, error) {
	p, err := a.authenticate(r)
	return p.User, err
}

func (a *Authenticator) authenticate(r *http.Request) (Principal, error) {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return Principal{}, authsdk.ErrNoToken
	}

	claims, err := a.Tokens.VerifyAccessToken(raw)
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return Principal{}, authsdk.ErrTokenExpired
	case err != nil:
		return Principal{}, authsdk.ErrInvalidToken
	}

	user, err := a.Users.GetUser(r.Context(), claims.Subject)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return Principal{}, authsdk.ErrUserNotFound
	case err != nil:
		// a store that cannot answer never authenticates anyone
		slogx.FromContext(r.Context()).Error("principal lookup failed",
			slog.String("user_id", claims.Subject), slog.Any("error", err))
		return Principal{}, authsdk.ErrServiceUnavailable
	}

	if !user.Active {
		return Principal{}, authsdk.ErrAccountDeactivated
	}
	if !user.Verified && !a.AllowUnverified {
		return Principal{}, authsdk.ErrEmailNotVerified
	}
	return Principal{User: user, SessionID: claims.SID}, nil
}

// Middleware rejects unauthenticated requests and attaches the principal to
// the context of the rest.
func (a *Authenticator) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.authenticate(r)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = httpx.WithUserID(ctx, p.User.ID)
			ctx = slogx.With(ctx, slog.String("user_id", p.User.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *authsdk.APIError
	if !errors.As(err, &apiErr) {
		apiErr = authsdk.ErrInternal
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	slogx.FromContext(r.Context()).Debug("request rejected", slog.String("code", apiErr.Code))
	apiErr.WriteError(w)
}
