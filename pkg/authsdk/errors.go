package authsdk

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"

	"github.com/aussiebroadwan/workbench/pkg/httpx"
)

// Kind groups error codes by how a caller should react.
type Kind string

const (
	KindAuthentication Kind = "authentication_failure"
	KindAuthorization  Kind = "authorization_failure"
	KindValidation     Kind = "validation_failure"
	KindSecurity       Kind = "security_violation"
	KindNotFound       Kind = "not_found"
	KindTransient      Kind = "transient_store_failure"
	KindInternal       Kind = "internal"
)

// Stable machine-readable error codes. Clients branch on these, never on
// messages.
const (
	CodeNoToken                 = "NO_TOKEN"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeAccountDeactivated      = "ACCOUNT_DEACTIVATED"
	CodeEmailNotVerified        = "EMAIL_NOT_VERIFIED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeResourceNotFound        = "RESOURCE_NOT_FOUND"
	CodeNotOwner                = "NOT_OWNER"
	CodeLastAdmin               = "LAST_ADMIN"
	CodeServiceUnavailable      = "SERVICE_UNAVAILABLE"

	CodeInvalidCredentials       = "INVALID_CREDENTIALS"
	CodeInvalidSession           = "INVALID_SESSION"
	CodeSessionSecurityViolation = "SESSION_SECURITY_VIOLATION"
	CodeInvalidRequest           = "INVALID_REQUEST"
	CodeValidation               = "VALIDATION_ERROR"
	CodeWeakPassword             = "WEAK_PASSWORD"
	CodePasswordReused           = "PASSWORD_REUSED"
	CodeEmailTaken               = "EMAIL_TAKEN"
	CodeInvalidMFACode           = "INVALID_MFA_CODE"
	CodeInvalidMFAToken          = "INVALID_MFA_TOKEN"
	CodeMFANotEnabled            = "MFA_NOT_ENABLED"
	CodeMFAAlreadyEnabled        = "MFA_ALREADY_ENABLED"
	CodeTooManyAttempts          = "TOO_MANY_ATTEMPTS"
	CodeRateLimited              = httpx.CodeRateLimited
	CodeMethodNotAllowed         = "METHOD_NOT_ALLOWED"
	CodeInternal                 = "INTERNAL_ERROR"
)

// APIError is the error type shared by the server (to render failures) and
// the client (to surface them). Two APIErrors match under errors.Is when
// their codes are equal.
type APIError struct {
	StatusCode int
	Kind       Kind
	Code       string
	Message    string
	Details    map[string]any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so a decoded response compares equal to the predefined
// error with the same code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WithDetails returns a copy of e carrying details.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	cp := *e
	cp.Details = maps.Clone(details)
	return &cp
}

// WithMessage returns a copy of e with a different message.
func (e *APIError) WithMessage(msg string) *APIError {
	cp := *e
	cp.Message = msg
	return &cp
}

// WriteError renders e as {"success":false,"kind":…,"code":…,"message":…}.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, httpx.ErrorBody{
		Kind:    string(e.Kind),
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

func newError(status int, kind Kind, code, msg string) *APIError {
	return &APIError{StatusCode: status, Kind: kind, Code: code, Message: msg}
}

var (
	ErrNoToken            = newError(http.StatusUnauthorized, KindAuthentication, CodeNoToken, "authentication required")
	ErrTokenExpired       = newError(http.StatusUnauthorized, KindAuthentication, CodeTokenExpired, "access token expired")
	ErrInvalidToken       = newError(http.StatusUnauthorized, KindAuthentication, CodeInvalidToken, "access token is invalid")
	ErrUserNotFound       = newError(http.StatusUnauthorized, KindAuthentication, CodeUserNotFound, "user no longer exists")
	ErrAccountDeactivated = newError(http.StatusForbidden, KindAuthentication, CodeAccountDeactivated, "account is deactivated")
	ErrEmailNotVerified   = newError(http.StatusForbidden, KindAuthentication, CodeEmailNotVerified, "email address is not verified")

	ErrInsufficientPermissions = newError(http.StatusForbidden, KindAuthorization, CodeInsufficientPermissions, "insufficient permissions")
	ErrNotOwner                = newError(http.StatusForbidden, KindAuthorization, CodeNotOwner, "you do not own this resource")
	ErrResourceNotFound        = newError(http.StatusNotFound, KindNotFound, CodeResourceNotFound, "resource not found")
	ErrLastAdmin               = newError(http.StatusConflict, KindAuthorization, CodeLastAdmin, "the last active admin cannot be removed")

	ErrServiceUnavailable = newError(http.StatusServiceUnavailable, KindTransient, CodeServiceUnavailable, "service temporarily unavailable")

	// ErrInvalidCredentials deliberately does not say which of email or
	// password was wrong.
	ErrInvalidCredentials       = newError(http.StatusUnauthorized, KindAuthentication, CodeInvalidCredentials, "invalid email or password")
	ErrInvalidSession           = newError(http.StatusUnauthorized, KindAuthentication, CodeInvalidSession, "session is invalid or expired")
	ErrSessionSecurityViolation = newError(http.StatusUnauthorized, KindSecurity, CodeSessionSecurityViolation, "session terminated for security reasons")

	ErrInvalidRequest    = newError(http.StatusBadRequest, KindValidation, CodeInvalidRequest, "the request is malformed")
	ErrValidation        = newError(http.StatusBadRequest, KindValidation, CodeValidation, "request validation failed")
	ErrWeakPassword      = newError(http.StatusBadRequest, KindValidation, CodeWeakPassword, "password does not meet requirements")
	ErrPasswordReused    = newError(http.StatusBadRequest, KindValidation, CodePasswordReused, "password was used recently")
	ErrEmailTaken        = newError(http.StatusConflict, KindValidation, CodeEmailTaken, "email is already registered")
	ErrInvalidMFACode    = newError(http.StatusUnauthorized, KindValidation, CodeInvalidMFACode, "invalid verification code")
	ErrInvalidMFAToken   = newError(http.StatusUnauthorized, KindAuthentication, CodeInvalidMFAToken, "MFA challenge is invalid or expired")
	ErrMFANotEnabled     = newError(http.StatusConflict, KindValidation, CodeMFANotEnabled, "MFA is not enabled")
	ErrMFAAlreadyEnabled = newError(http.StatusConflict, KindValidation, CodeMFAAlreadyEnabled, "MFA is already enabled")
	ErrTooManyAttempts   = newError(http.StatusTooManyRequests, KindSecurity, CodeTooManyAttempts, "too many failed attempts, try again later")
	ErrMethodNotAllowed  = newError(http.StatusMethodNotAllowed, KindValidation, CodeMethodNotAllowed, "method not allowed")

	ErrInternal = newError(http.StatusInternalServerError, KindInternal, CodeInternal, "internal server error")
)

// MFARequiredError is returned by SDKClient.AuthenticateWithPassword when the
// account has MFA enabled. Pass it to AuthenticateWithMFA with a code.
type MFARequiredError struct {
	MFAToken string
	Methods  []string
}

// Error implements the error interface.
func (e *MFARequiredError) Error() string {
	return fmt.Sprintf("MFA required: available methods=%v", e.Methods)
}

// parseErrorResponse turns a non-2xx response into an *APIError, falling back
// to a synthetic one when the body is not the structured shape.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var eb httpx.ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Code != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Kind:       Kind(eb.Kind),
			Code:       eb.Code,
			Message:    eb.Message,
			Details:    eb.Details,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Kind:       KindInternal,
		Code:       CodeInternal,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
