package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the Workbench authentication service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent is sent on every request. With strict session binding the
	// server rejects refreshes whose user agent differs from login.
	UserAgent string
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: "workbench-authsdk",
	}
}

// AuthenticateWithPassword logs in and returns a Session. When the account
// has MFA enabled the error is an *MFARequiredError; complete the login with
// AuthenticateWithMFA.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if resp.MFARequired {
		return nil, &MFARequiredError{MFAToken: resp.MFAToken, Methods: resp.MFAMethods}
	}
	return newSession(c, resp.Tokens), nil
}

// AuthenticateWithMFA completes a login challenge and returns a Session.
func (c *SDKClient) AuthenticateWithMFA(ctx context.Context, challenge *MFARequiredError, code string, backupCode bool) (*Session, error) {
	tokens, err := c.CompleteMFALogin(ctx, challenge.MFAToken, code, backupCode)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// NewSessionFromTokens creates an authenticated session from existing tokens.
// This is useful when you already have tokens from a previous authentication
// (e.g., stored in a database or passed from another system).
// The session will still perform auto-refresh when the access token expires.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}
