package authsdk

import (
	"context"
	"net/http"
)

// Register creates a member account.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.call(ctx, http.MethodPost, "/v1/auth/register", "", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login posts credentials. The response either carries tokens or an MFA
// challenge.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	req := LoginRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/v1/auth/login", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteMFALogin answers a login challenge with a TOTP or backup code.
func (c *SDKClient) CompleteMFALogin(ctx context.Context, mfaToken, code string, backupCode bool) (*TokenResponse, error) {
	var out TokenResponse
	req := MFALoginRequest{MFAToken: mfaToken, Code: code, BackupCode: backupCode}
	if err := c.call(ctx, http.MethodPost, "/v1/auth/login/mfa", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh mints a new access token for the session owning refreshToken.
// The refresh token itself is unchanged.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	req := RefreshRequest{RefreshToken: refreshToken}
	if err := c.call(ctx, http.MethodPost, "/v1/auth/refresh", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the session owning refreshToken. Revoking an already
// inactive session succeeds.
func (c *SDKClient) Logout(ctx context.Context, refreshToken string) error {
	req := LogoutRequest{RefreshToken: refreshToken}
	return c.call(ctx, http.MethodPost, "/v1/auth/logout", "", req, nil, http.StatusNoContent)
}

// ValidatePassword returns the full complexity checklist for a candidate.
func (c *SDKClient) ValidatePassword(ctx context.Context, req PasswordValidateRequest) (*PasswordValidateResponse, error) {
	var out PasswordValidateResponse
	if err := c.call(ctx, http.MethodPost, "/v1/password/validate", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
