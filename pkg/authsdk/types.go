package authsdk

import (
	"time"

	"github.com/aussiebroadwan/workbench/pkg/jwtx"
)

// ============================================================================
// Authentication
// ============================================================================

// RegisterRequest creates a member account.
type RegisterRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Name     string `json:"name" example:"Ada Lovelace"`
	Password string `json:"password"`
}

// RegisterResponse identifies the created account. New accounts start
// unverified.
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// LoginRequest authenticates with email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse either carries tokens or, when MFARequired is set, a
// challenge token to submit to /v1/auth/login/mfa.
type LoginResponse struct {
	MFARequired bool           `json:"mfa_required"`
	MFAToken    string         `json:"mfa_token,omitempty"`
	MFAMethods  []string       `json:"mfa_methods,omitempty"`
	Tokens      *TokenResponse `json:"tokens,omitempty"`
}

// MFALoginRequest completes a login challenge.
type MFALoginRequest struct {
	MFAToken   string `json:"mfa_token"`
	Code       string `json:"code"`
	BackupCode bool   `json:"backup_code,omitempty"`
}

// RefreshRequest exchanges a refresh token for a fresh access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest revokes the session owning the refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh. RefreshToken is only set
// when a session is created; refresh reuses the existing one.
type TokenResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	TokenType    string            `json:"token_type" example:"Bearer"`
	ExpiresIn    int               `json:"expires_in" example:"900"`
	SessionID    string            `json:"session_id"`
	User         *UserInfoResponse `json:"user,omitempty"`
}

// ============================================================================
// Sessions & users
// ============================================================================

// SessionInfo describes one active session of the caller.
type SessionInfo struct {
	ID             string    `json:"id"`
	IP             string    `json:"ip"`
	UserAgent      string    `json:"user_agent"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Current        bool      `json:"current"`
}

// ListSessionsResponse lists the caller's active sessions.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// UserInfoResponse describes a principal.
type UserInfoResponse struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role" example:"member"`
	Verified   bool   `json:"verified"`
	Active     bool   `json:"active"`
	MFAEnabled bool   `json:"mfa_enabled"`
}

// SetRoleRequest assigns a role to a user. Role is admin, manager or member.
type SetRoleRequest struct {
	Role string `json:"role" example:"manager"`
}

// ============================================================================
// Passwords
// ============================================================================

// PasswordValidateRequest asks for a complexity checklist. Email and Name
// are optional context so personal details can be rejected.
type PasswordValidateRequest struct {
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// PasswordValidateResponse lists every violated rule, not just the first.
type PasswordValidateResponse struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
	Score      int      `json:"score" example:"72"`
	Strength   string   `json:"strength" example:"strong"`
}

// PasswordChangeRequest changes the caller's password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PasswordConfirmRequest re-verifies the caller's password before a
// sensitive MFA change.
type PasswordConfirmRequest struct {
	Password string `json:"password"`
}

// ============================================================================
// MFA
// ============================================================================

// MFASetupResponse starts enrollment. SetupToken is the encrypted secret; it
// must be sent back unchanged with the first code.
type MFASetupResponse struct {
	ProvisioningURI string `json:"provisioning_uri" example:"otpauth://totp/Workbench:ada@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Workbench"`
	Secret          string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	SetupToken      string `json:"setup_token"`
	Issuer          string `json:"issuer"`
	Account         string `json:"account"`
}

// MFASetupCompleteRequest finishes enrollment.
type MFASetupCompleteRequest struct {
	Code       string `json:"code"`
	SetupToken string `json:"setup_token"`
}

// MFAVerifyRequest checks a TOTP or backup code for step-up.
type MFAVerifyRequest struct {
	Code       string `json:"code"`
	BackupCode bool   `json:"backup_code,omitempty"`
}

// MFAVerifyResponse reports a successful verification.
type MFAVerifyResponse struct {
	Verified bool `json:"verified"`
}

// BackupCodesResponse carries plain backup codes. They are shown once.
type BackupCodesResponse struct {
	Codes []string `json:"codes"`
}

// MFAStatusResponse describes the caller's MFA configuration.
type MFAStatusResponse struct {
	Enabled              bool       `json:"enabled"`
	SetupAt              *time.Time `json:"setup_at,omitempty"`
	LastUsedAt           *time.Time `json:"last_used_at,omitempty"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
}

// ============================================================================
// Health & keys
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency as "ok" or "unavailable".
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
	Limiter  string `json:"limiter"`
}

// JWKSResponse contains the JSON Web Key Set published in EdDSA mode.
type JWKSResponse jwtx.JWKS
