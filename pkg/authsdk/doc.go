/*
Package authsdk provides the request/response types of the Workbench
authentication service and a client for it.

The server decodes these types at its HTTP boundary and renders failures
with APIError, so client and server share one error vocabulary.

# SDKClient vs Session

  - SDKClient: unauthenticated operations (register, login, refresh, health)
  - Session: authenticated operations with automatic access-token refresh

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.AuthenticateWithPassword(ctx, "ada@example.com", password)
	var mfa *authsdk.MFARequiredError
	if errors.As(err, &mfa) {
		session, err = client.AuthenticateWithMFA(ctx, mfa, totpCode, false)
	}
	if err != nil {
		return err
	}

	me, err := session.Me(ctx)

# Automatic Token Refresh

Access tokens are short-lived. Session methods refresh them 30 seconds
before expiry using the refresh token, and retry once when the server
answers TOKEN_EXPIRED. The refresh token is not rotated by a refresh; it
stops working when the session is revoked, expires, or is replaced by a
newer login while single-session mode is on.

# Error Handling

Every server failure decodes into *APIError. Compare with the predefined
values:

	if errors.Is(err, authsdk.ErrInvalidSession) {
		// log in again
	}

APIError.Kind groups codes into authentication, authorization, validation,
security, not-found and transient failures.

# Thread Safety

Sessions are safe for concurrent use.
*/
package authsdk
