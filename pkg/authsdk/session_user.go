package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Me returns the authenticated principal.
func (s *Session) Me(ctx context.Context) (*UserInfoResponse, error) {
	var out UserInfoResponse
	if err := s.call(ctx, http.MethodGet, "/v1/me", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions lists the caller's active sessions.
func (s *Session) ListSessions(ctx context.Context) (*ListSessionsResponse, error) {
	var out ListSessionsResponse
	if err := s.call(ctx, http.MethodGet, "/v1/sessions", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeSession ends one of the caller's sessions by id.
func (s *Session) RevokeSession(ctx context.Context, sessionID string) error {
	return s.call(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(sessionID), nil, nil, http.StatusNoContent)
}

// LogoutAll revokes every session of the caller, including this one.
func (s *Session) LogoutAll(ctx context.Context) error {
	return s.call(ctx, http.MethodPost, "/v1/auth/logout-all", nil, nil, http.StatusNoContent)
}

// ChangePassword changes the caller's password. Every session, this one
// included, is revoked on success.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	req := PasswordChangeRequest{CurrentPassword: current, NewPassword: next}
	return s.call(ctx, http.MethodPost, "/v1/password/change", req, nil, http.StatusNoContent)
}

// VerifyUser marks a user's email verified. Requires the admin role.
func (s *Session) VerifyUser(ctx context.Context, userID string) (*UserInfoResponse, error) {
	var out UserInfoResponse
	if err := s.call(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/verify", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeactivateUser deactivates a user and revokes their sessions. The caller
// must outrank the target (admin over manager over member) or be the target.
func (s *Session) DeactivateUser(ctx context.Context, userID string) (*UserInfoResponse, error) {
	var out UserInfoResponse
	if err := s.call(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/deactivate", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetUserRole assigns a role. Requires the admin role.
func (s *Session) SetUserRole(ctx context.Context, userID, role string) (*UserInfoResponse, error) {
	var out UserInfoResponse
	req := SetRoleRequest{Role: role}
	if err := s.call(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/role", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
