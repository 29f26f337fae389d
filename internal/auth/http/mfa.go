package http

import (
	"net/http"

	"github.com/aussiebroadwan/workbench/internal/auth/service"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

// MFAHandler handles all MFA-related endpoints.
type MFAHandler struct {
	MFA *service.MFAService
}

// HandleStatus handles GET /v1/mfa
//
//	@Summary		MFA status
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MFAStatusResponse
//	@Failure		401	{object}	httpx.ErrorBody
//	@Router			/v1/mfa [get].
func (h *MFAHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	st, err := h.MFA.Status(r.Context(), p.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MFAStatusResponse{
		Enabled:              st.Enabled,
		SetupAt:              st.SetupAt,
		LastUsedAt:           st.LastUsedAt,
		BackupCodesRemaining: st.BackupCodesRemaining,
	})
}

// HandleSetup handles POST /v1/mfa/setup
//
//	@Summary		Begin TOTP enrollment
//	@Description	Generates a secret and returns it with a provisioning URI and a sealed setup token. Nothing is stored until the first code is confirmed.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MFASetupResponse
//	@Failure		409	{object}	httpx.ErrorBody	"MFA_ALREADY_ENABLED"
//	@Router			/v1/mfa/setup [post].
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if p.User.MFA.Enabled {
		authsdk.ErrMFAAlreadyEnabled.WriteError(w)
		return
	}

	setup, err := h.MFA.BeginSetup(r.Context(), p.User.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MFASetupResponse{
		ProvisioningURI: setup.ProvisioningURI,
		Secret:          setup.Secret,
		SetupToken:      setup.Envelope.Encode(),
		Issuer:          setup.Issuer,
		Account:         setup.Account,
	})
}

// HandleSetupComplete handles POST /v1/mfa/setup/complete
//
//	@Summary		Confirm TOTP enrollment
//	@Description	Verifies the first code against the setup token, enables MFA and returns ten backup codes. They are shown once.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFASetupCompleteRequest	true	"Code and setup token"
//	@Success		200		{object}	authsdk.BackupCodesResponse
//	@Failure		401		{object}	httpx.ErrorBody	"INVALID_MFA_CODE"
//	@Failure		409		{object}	httpx.ErrorBody	"MFA_ALREADY_ENABLED"
//	@Router			/v1/mfa/setup/complete [post].
func (h *MFAHandler) HandleSetupComplete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req authsdk.MFASetupCompleteRequest
	if !decode(w, r, &req) {
		return
	}

	env, err := cryptox.ParseEnvelope(req.SetupToken)
	if err != nil {
		// a mangled token is indistinguishable from a wrong code
		slogx.FromContext(r.Context()).Debug("unparseable setup token")
		authsdk.ErrInvalidMFACode.WriteError(w)
		return
	}

	codes, err := h.MFA.CompleteSetup(r.Context(), p.User.ID, req.Code, env)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{Codes: codes})
}

// HandleVerify handles POST /v1/mfa/verify
//
//	@Summary		Step-up verification
//	@Description	Checks a TOTP or backup code. Repeated failures lock verification for the lockout window.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFAVerifyRequest	true	"Code"
//	@Success		200		{object}	authsdk.MFAVerifyResponse
//	@Failure		401		{object}	httpx.ErrorBody	"INVALID_MFA_CODE"
//	@Failure		429		{object}	httpx.ErrorBody	"TOO_MANY_ATTEMPTS"
//	@Router			/v1/mfa/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req authsdk.MFAVerifyRequest
	if !decode(w, r, &req) {
		return
	}

	verified, err := h.MFA.Verify(r.Context(), p.User.ID, req.Code, req.BackupCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !verified {
		authsdk.ErrInvalidMFACode.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MFAVerifyResponse{Verified: true})
}

// HandleRegenerateBackupCodes handles POST /v1/mfa/backup-codes
//
//	@Summary		Regenerate backup codes
//	@Description	Replaces every backup code after re-checking the password. Old codes stop working immediately.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordConfirmRequest	true	"Current password"
//	@Success		200		{object}	authsdk.BackupCodesResponse
//	@Failure		401		{object}	httpx.ErrorBody	"INVALID_CREDENTIALS"
//	@Failure		409		{object}	httpx.ErrorBody	"MFA_NOT_ENABLED"
//	@Router			/v1/mfa/backup-codes [post].
func (h *MFAHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req authsdk.PasswordConfirmRequest
	if !decode(w, r, &req) {
		return
	}

	codes, err := h.MFA.RegenerateBackupCodes(r.Context(), p.User.ID, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{Codes: codes})
}

// HandleDisable handles POST /v1/mfa/disable
//
//	@Summary		Disable MFA
//	@Description	Wipes the secret and every backup code after re-checking the password.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.PasswordConfirmRequest	true	"Current password"
//	@Success		204
//	@Failure		401	{object}	httpx.ErrorBody	"INVALID_CREDENTIALS"
//	@Failure		409	{object}	httpx.ErrorBody	"MFA_NOT_ENABLED"
//	@Router			/v1/mfa/disable [post].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req authsdk.PasswordConfirmRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.MFA.Disable(r.Context(), p.User.ID, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
