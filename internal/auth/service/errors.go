package service

import (
	"errors"
	"strings"

	"github.com/aussiebroadwan/workbench/internal/auth/policy"
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrAccountDeactivated       = errors.New("account deactivated")
	ErrEmailTaken               = errors.New("email already registered")
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidSession           = errors.New("invalid session")
	ErrSessionNotFound          = errors.New("session not found")
	ErrSessionSecurityViolation = errors.New("session security violation")
	ErrInvalidToken             = errors.New("invalid token")
	ErrTokenExpired             = errors.New("token expired")
	ErrInvalidCode              = errors.New("invalid verification code")
	ErrInvalidMFAToken          = errors.New("invalid or expired MFA challenge")
	ErrTooManyAttempts          = errors.New("too many failed attempts")
	ErrMFANotEnabled            = errors.New("MFA not enabled for this user")
	ErrMFAAlreadyEnabled        = errors.New("MFA already enabled for this user")
	ErrPasswordReused           = errors.New("password was used recently")
	ErrWeakPassword             = errors.New("password does not meet requirements")
	ErrInsufficientPermissions  = errors.New("insufficient permissions")
	ErrLastAdmin                = errors.New("last active admin")

	// ErrStoreUnavailable is returned after a transient store failure
	// survived one retry. It never carries driver details to callers.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// WeakPasswordError carries the failed checklist. It matches ErrWeakPassword.
type WeakPasswordError struct {
	Result policy.Result
}

func (e *WeakPasswordError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Result.Violations, ", ")
}

func (e *WeakPasswordError) Is(target error) bool { return target == ErrWeakPassword }
