package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/service"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
)

// AuthHandler serves registration, login and the session token endpoints.
type AuthHandler struct {
	Login  *service.LoginService
	Tokens *service.TokenService
}

// HandleRegister handles POST /v1/auth/register
//
//	@Summary		Register
//	@Description	Creates an unverified member account. The password is checked against the complexity policy.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"Account details"
//	@Success		201		{object}	authsdk.RegisterResponse
//	@Failure		400		{object}	httpx.ErrorBody	"VALIDATION_ERROR or WEAK_PASSWORD"
//	@Failure		409		{object}	httpx.ErrorBody	"EMAIL_TAKEN"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.Login.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		UserID:   user.ID,
		Email:    user.Email,
		Verified: user.Verified,
	})
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in
//	@Description	Checks email and password. Accounts with MFA get a challenge token instead of session tokens.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse
//	@Failure		401		{object}	httpx.ErrorBody	"INVALID_CREDENTIALS"
//	@Failure		403		{object}	httpx.ErrorBody	"ACCOUNT_DEACTIVATED"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Login.Login(r.Context(), req.Email, req.Password, httpx.ClientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.MFARequired() {
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
			MFARequired: true,
			MFAToken:    res.Challenge.ID,
			MFAMethods:  []string{domain.MFAMethodTOTP, domain.MFAMethodBackupCode},
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		Tokens: sessionTokenResponse(res.Tokens, res.User),
	})
}

// HandleLoginMFA handles POST /v1/auth/login/mfa
//
//	@Summary		Complete MFA login
//	@Description	Answers a login challenge with a TOTP or backup code. A challenge survives five wrong codes.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFALoginRequest	true	"Challenge and code"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		401		{object}	httpx.ErrorBody	"INVALID_MFA_CODE or INVALID_MFA_TOKEN"
//	@Failure		429		{object}	httpx.ErrorBody	"TOO_MANY_ATTEMPTS"
//	@Router			/v1/auth/login/mfa [post].
func (h *AuthHandler) HandleLoginMFA(w http.ResponseWriter, r *http.Request) {
	var req authsdk.MFALoginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Login.CompleteMFALogin(r.Context(), req.MFAToken, req.Code, req.BackupCode, httpx.ClientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionTokenResponse(res.Tokens, res.User))
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Refresh access token
//	@Description	Mints a new access token for the session owning the refresh token. The refresh token is not rotated.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		401		{object}	httpx.ErrorBody	"INVALID_SESSION or SESSION_SECURITY_VIOLATION"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Tokens.RefreshAccessToken(r.Context(), req.RefreshToken, httpx.ClientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	info := userInfo(res.User)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   seconds(res.ExpiresIn),
		SessionID:   res.SessionID,
		User:        &info,
	})
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes the session owning the refresh token. Unknown and already revoked tokens succeed too.
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.LogoutRequest	true	"Refresh token"
//	@Success		204
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LogoutRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Tokens.RevokeSession(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll handles POST /v1/auth/logout-all
//
//	@Summary		Log out everywhere
//	@Description	Revokes every session of the caller, including the current one.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	httpx.ErrorBody
//	@Router			/v1/auth/logout-all [post].
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Tokens.RevokeAllSessions(r.Context(), p.User.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionTokenResponse(t *domain.SessionTokens, u domain.User) *authsdk.TokenResponse {
	info := userInfo(u)
	return &authsdk.TokenResponse{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    seconds(t.ExpiresIn),
		SessionID:    t.SessionID,
		User:         &info,
	}
}

func seconds(d time.Duration) int { return int(d / time.Second) }
