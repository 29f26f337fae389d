package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/middleware"
	"github.com/aussiebroadwan/workbench/internal/auth/service"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

// serviceErrors maps service sentinels to their wire form. Order matters only
// for errors that wrap more than one sentinel.
var serviceErrors = []struct {
	err error
	api *authsdk.APIError
}{
	{service.ErrStoreUnavailable, authsdk.ErrServiceUnavailable},
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrAccountDeactivated, authsdk.ErrAccountDeactivated},
	{service.ErrEmailTaken, authsdk.ErrEmailTaken},
	{service.ErrUserNotFound, authsdk.ErrResourceNotFound},
	{service.ErrInvalidSession, authsdk.ErrInvalidSession},
	{service.ErrSessionNotFound, authsdk.ErrResourceNotFound},
	{service.ErrSessionSecurityViolation, authsdk.ErrSessionSecurityViolation},
	{service.ErrTokenExpired, authsdk.ErrTokenExpired},
	{service.ErrInvalidToken, authsdk.ErrInvalidToken},
	{service.ErrInvalidCode, authsdk.ErrInvalidMFACode},
	{service.ErrInvalidMFAToken, authsdk.ErrInvalidMFAToken},
	{service.ErrTooManyAttempts, authsdk.ErrTooManyAttempts},
	{service.ErrMFANotEnabled, authsdk.ErrMFANotEnabled},
	{service.ErrMFAAlreadyEnabled, authsdk.ErrMFAAlreadyEnabled},
	{service.ErrPasswordReused, authsdk.ErrPasswordReused},
	{service.ErrInsufficientPermissions, authsdk.ErrInsufficientPermissions},
	{service.ErrLastAdmin, authsdk.ErrLastAdmin},
	{domain.ErrInvalidRole, authsdk.ErrValidation},
}

// writeServiceError renders err as a structured failure. Unknown errors are
// logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	var weak *service.WeakPasswordError
	if errors.As(err, &weak) {
		authsdk.ErrWeakPassword.WithDetails(map[string]any{
			"violations": weak.Result.Violations,
			"score":      weak.Result.Score,
			"strength":   string(weak.Result.Strength),
		}).WriteError(w)
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			if m.api.StatusCode >= http.StatusInternalServerError {
				log.Error("request failed", slog.Any("error", err))
			}
			m.api.WriteError(w)
			return
		}
	}

	log.Error("unhandled service error", slog.Any("error", err))
	authsdk.ErrInternal.WriteError(w)
}

// decode reads a JSON body into req and runs its shape checks. It writes the
// failure response itself and reports whether the handler should go on.
func decode[T interface{ Validate() map[string]string }](w http.ResponseWriter, r *http.Request, req *T) bool {
	if err := httpx.DecodeJSON(r, req); err != nil {
		slogx.FromContext(r.Context()).Debug("bad request body", slog.Any("error", err))
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	if fields := (*req).Validate(); fields != nil {
		details := make(map[string]any, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		authsdk.ErrValidation.WithDetails(map[string]any{"fields": details}).WriteError(w)
		return false
	}
	return true
}

// principal returns the caller attached by the authenticator. Routes that
// call it are always behind Authenticator.Middleware.
func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrNoToken.WriteError(w)
	}
	return p, ok
}
