package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/middleware"
	"github.com/aussiebroadwan/workbench/internal/auth/service"
	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/httpx"
)

// UserHandler serves the caller's own account and sessions, and the
// administrative account transitions.
type UserHandler struct {
	Users  *service.UserService
	Tokens *service.TokenService
}

// HandleMe handles GET /v1/me
//
//	@Summary		Current principal
//	@Description	Returns the authenticated principal.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse
//	@Failure		401	{object}	httpx.ErrorBody	"NO_TOKEN, TOKEN_EXPIRED, INVALID_TOKEN or USER_NOT_FOUND"
//	@Failure		403	{object}	httpx.ErrorBody	"ACCOUNT_DEACTIVATED or EMAIL_NOT_VERIFIED"
//	@Router			/v1/me [get].
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userInfo(p.User))
}

// HandleListSessions handles GET /v1/sessions
//
//	@Summary		List sessions
//	@Description	Lists the caller's active sessions, newest first.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ListSessionsResponse
//	@Failure		401	{object}	httpx.ErrorBody
//	@Router			/v1/sessions [get].
func (h *UserHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	sessions, err := h.Tokens.ListSessions(r.Context(), p.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.ListSessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, authsdk.SessionInfo{
			ID:             s.ID,
			IP:             s.IP,
			UserAgent:      s.UserAgent,
			CreatedAt:      s.CreatedAt,
			LastAccessedAt: s.LastAccessedAt,
			ExpiresAt:      s.ExpiresAt,
			Current:        s.ID == p.SessionID,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleRevokeSession handles DELETE /v1/sessions/{id}
//
//	@Summary		Revoke a session
//	@Description	Ends one session. Callers may only revoke their own sessions unless they are admins.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Session ID"
//	@Success		204
//	@Failure		403	{object}	httpx.ErrorBody	"NOT_OWNER"
//	@Failure		404	{object}	httpx.ErrorBody	"RESOURCE_NOT_FOUND"
//	@Router			/v1/sessions/{id} [delete].
func (h *UserHandler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Tokens.RevokeSessionByID(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionOwner resolves the principal owning the session named in the path.
func (h *UserHandler) sessionOwner(r *http.Request) (string, error) {
	s, err := h.Tokens.GetSession(r.Context(), r.PathValue("id"))
	if errors.Is(err, service.ErrSessionNotFound) {
		return "", middleware.ErrResourceNotFound
	}
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

// HandleVerifyUser handles POST /v1/users/{id}/verify
//
//	@Summary		Verify a user's email
//	@Tags			Users
//	@Security		BearerAuth
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	authsdk.UserInfoResponse
//	@Failure		403	{object}	httpx.ErrorBody	"INSUFFICIENT_PERMISSIONS"
//	@Failure		404	{object}	httpx.ErrorBody	"RESOURCE_NOT_FOUND"
//	@Router			/v1/users/{id}/verify [post].
func (h *UserHandler) HandleVerifyUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Verify(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userInfo(u))
}

// HandleDeactivateUser handles POST /v1/users/{id}/deactivate
//
//	@Summary		Deactivate a user
//	@Description	Deactivates the account and revokes all of its sessions. The caller must outrank the target or be the target. The last active admin cannot be deactivated.
//	@Tags			Users
//	@Security		BearerAuth
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	authsdk.UserInfoResponse
//	@Failure		403	{object}	httpx.ErrorBody	"INSUFFICIENT_PERMISSIONS"
//	@Failure		404	{object}	httpx.ErrorBody	"RESOURCE_NOT_FOUND"
//	@Failure		409	{object}	httpx.ErrorBody	"LAST_ADMIN"
//	@Router			/v1/users/{id}/deactivate [post].
func (h *UserHandler) HandleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	u, err := h.Users.Deactivate(r.Context(), p.User, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userInfo(u))
}

// HandleSetRole handles POST /v1/users/{id}/role
//
//	@Summary		Assign a role
//	@Description	Sets the user's role. The last active admin cannot be demoted.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"User ID"
//	@Param			request	body		authsdk.SetRoleRequest	true	"Role"
//	@Success		200		{object}	authsdk.UserInfoResponse
//	@Failure		400		{object}	httpx.ErrorBody	"VALIDATION_ERROR"
//	@Failure		403		{object}	httpx.ErrorBody	"INSUFFICIENT_PERMISSIONS"
//	@Failure		404		{object}	httpx.ErrorBody	"RESOURCE_NOT_FOUND"
//	@Failure		409		{object}	httpx.ErrorBody	"LAST_ADMIN"
//	@Router			/v1/users/{id}/role [post].
func (h *UserHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req authsdk.SetRoleRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Users.SetRole(r.Context(), p.User, r.PathValue("id"), domain.Role(req.Role))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userInfo(u))
}

func userInfo(u domain.User) authsdk.UserInfoResponse {
	return authsdk.UserInfoResponse{
		UserID:     u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(u.Role),
		Verified:   u.Verified,
		Active:     u.Active,
		MFAEnabled: u.MFA.Enabled,
	}
}
