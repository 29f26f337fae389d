package http

import (
	"net/http"

	"github.com/aussiebroadwan/workbench/internal/auth/policy"
	"github.com/aussiebroadwan/workbench/internal/auth/service"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
)

// PasswordHandler serves the complexity checklist and password changes.
type PasswordHandler struct {
	Passwords *service.PasswordService
}

// HandleValidate handles POST /v1/password/validate
//
//	@Summary		Check password complexity
//	@Description	Returns every violated rule and a strength score. Nothing is stored.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordValidateRequest	true	"Candidate password"
//	@Success		200		{object}	authsdk.PasswordValidateResponse
//	@Router			/v1/password/validate [post].
func (h *PasswordHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordValidateRequest
	if !decode(w, r, &req) {
		return
	}

	res := h.Passwords.Validate(req.Password, policy.Context{Email: req.Email, Name: req.Name})
	violations := res.Violations
	if violations == nil {
		violations = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.PasswordValidateResponse{
		Valid:      res.Valid,
		Violations: violations,
		Score:      res.Score,
		Strength:   string(res.Strength),
	})
}

// HandleChange handles POST /v1/password/change
//
//	@Summary		Change password
//	@Description	Re-checks the current password, applies the complexity and reuse rules, then revokes every session.
//	@Tags			Password
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.PasswordChangeRequest	true	"Current and new password"
//	@Success		204
//	@Failure		400	{object}	httpx.ErrorBody	"WEAK_PASSWORD or PASSWORD_REUSED"
//	@Failure		401	{object}	httpx.ErrorBody	"INVALID_CREDENTIALS"
//	@Router			/v1/password/change [post].
func (h *PasswordHandler) HandleChange(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req authsdk.PasswordChangeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Passwords.ChangePassword(r.Context(), p.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
