package authsdk

import (
	"context"
	"net/http"
)

// MFAStatus returns the caller's MFA configuration.
func (s *Session) MFAStatus(ctx context.Context) (*MFAStatusResponse, error) {
	var out MFAStatusResponse
	if err := s.call(ctx, http.MethodGet, "/v1/mfa", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// BeginMFASetup starts TOTP enrollment. Nothing is stored server-side until
// CompleteMFASetup succeeds.
func (s *Session) BeginMFASetup(ctx context.Context) (*MFASetupResponse, error) {
	var out MFASetupResponse
	if err := s.call(ctx, http.MethodPost, "/v1/mfa/setup", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteMFASetup submits the first code with the setup token and returns
// the backup codes.
func (s *Session) CompleteMFASetup(ctx context.Context, setupToken, code string) (*BackupCodesResponse, error) {
	var out BackupCodesResponse
	req := MFASetupCompleteRequest{Code: code, SetupToken: setupToken}
	if err := s.call(ctx, http.MethodPost, "/v1/mfa/setup/complete", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMFA performs a step-up check with a TOTP or backup code.
func (s *Session) VerifyMFA(ctx context.Context, code string, backupCode bool) error {
	var out MFAVerifyResponse
	req := MFAVerifyRequest{Code: code, BackupCode: backupCode}
	return s.call(ctx, http.MethodPost, "/v1/mfa/verify", req, &out, http.StatusOK)
}

// RegenerateBackupCodes replaces every backup code. The caller's password is
// re-verified.
func (s *Session) RegenerateBackupCodes(ctx context.Context, password string) (*BackupCodesResponse, error) {
	var out BackupCodesResponse
	req := PasswordConfirmRequest{Password: password}
	if err := s.call(ctx, http.MethodPost, "/v1/mfa/backup-codes", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisableMFA turns MFA off and wipes the secret and backup codes. The
// caller's password is re-verified.
func (s *Session) DisableMFA(ctx context.Context, password string) error {
	req := PasswordConfirmRequest{Password: password}
	return s.call(ctx, http.MethodPost, "/v1/mfa/disable", req, nil, http.StatusNoContent)
}
