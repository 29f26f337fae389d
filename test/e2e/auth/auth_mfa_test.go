package auth_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

// mfaTestUser is a member with TOTP enrolled.
type mfaTestUser struct {
	Email       string
	Session     *authsdk.Session
	TOTPSecret  string
	BackupCodes []string
}

// createAndEnrollMFAUser registers a member and completes TOTP enrollment.
func createAndEnrollMFAUser(t *testing.T, client *authsdk.SDKClient, admin *authsdk.Session, email string) mfaTestUser {
	t.Helper()
	ctx := t.Context()

	sess, _ := createMember(t, client, admin, email)

	setup, err := sess.BeginMFASetup(ctx)
	require.NoError(t, err)
	require.Equal(t, "Workbench", setup.Issuer)
	require.Equal(t, email, setup.Account)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	codes, err := sess.CompleteMFASetup(ctx, setup.SetupToken, code)
	require.NoError(t, err)
	require.Len(t, codes.Codes, 10)

	return mfaTestUser{Email: email, Session: sess, TOTPSecret: setup.Secret, BackupCodes: codes.Codes}
}

// challenge logs in with the password and returns the MFA challenge.
func challenge(t *testing.T, client *authsdk.SDKClient, email string) *authsdk.MFARequiredError {
	t.Helper()
	_, err := client.AuthenticateWithPassword(t.Context(), email, userPassword)

	var c *authsdk.MFARequiredError
	require.ErrorAs(t, err, &c, "login should stop at the second factor")
	require.NotEmpty(t, c.MFAToken)
	return c
}

// TestMFAEnrollmentAndAuthentication covers enrollment and both second
// factors.
func TestMFAEnrollmentAndAuthentication(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	admin := loginAdmin(t, client)
	user := createAndEnrollMFAUser(t, client, admin, "mfa@example.com")

	code, err := totp.GenerateCode(user.TOTPSecret, time.Now())
	require.NoError(t, err)
	sess, err := client.AuthenticateWithMFA(t.Context(), challenge(t, client, user.Email), code, false)
	require.NoError(t, err)

	me, err := sess.Me(t.Context())
	require.NoError(t, err)
	require.True(t, me.MFAEnabled)

	// backup codes work once
	sess, err = client.AuthenticateWithMFA(t.Context(), challenge(t, client, user.Email), user.BackupCodes[0], true)
	require.NoError(t, err)

	_, err = client.AuthenticateWithMFA(t.Context(), challenge(t, client, user.Email), user.BackupCodes[0], true)
	requireCode(t, err, authsdk.ErrInvalidMFACode)

	status, err := sess.MFAStatus(t.Context())
	require.NoError(t, err)
	require.Equal(t, 9, status.BackupCodesRemaining)
	require.NotNil(t, status.LastUsedAt)
}

// TestMFAStepUpVerification checks step-up codes for a logged-in member.
func TestMFAStepUpVerification(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	admin := loginAdmin(t, client)
	user := createAndEnrollMFAUser(t, client, admin, "stepup@example.com")

	code, err := totp.GenerateCode(user.TOTPSecret, time.Now())
	require.NoError(t, err)
	require.NoError(t, user.Session.VerifyMFA(t.Context(), code, false))

	err = user.Session.VerifyMFA(t.Context(), wrongCode(code), false)
	requireCode(t, err, authsdk.ErrInvalidMFACode)
}

// wrongCode returns a six digit code that differs from code in every digit.
func wrongCode(code string) string {
	b := []byte(code)
	for i, c := range b {
		b[i] = '0' + (c-'0'+5)%10
	}
	return string(b)
}

// TestMFARegenerateBackupCodes checks that regeneration retires every old
// code.
func TestMFARegenerateBackupCodes(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	admin := loginAdmin(t, client)
	user := createAndEnrollMFAUser(t, client, admin, "regen@example.com")
	ctx := t.Context()

	_, err := user.Session.RegenerateBackupCodes(ctx, "Wrong#Password1")
	requireCode(t, err, authsdk.ErrInvalidCredentials)

	fresh, err := user.Session.RegenerateBackupCodes(ctx, userPassword)
	require.NoError(t, err)
	require.Len(t, fresh.Codes, 10)
	require.NotContains(t, fresh.Codes, user.BackupCodes[0])

	_, err = client.AuthenticateWithMFA(ctx, challenge(t, client, user.Email), user.BackupCodes[0], true)
	requireCode(t, err, authsdk.ErrInvalidMFACode)

	_, err = client.AuthenticateWithMFA(ctx, challenge(t, client, user.Email), fresh.Codes[0], true)
	require.NoError(t, err)
}

// TestMFARemoval checks that disabling MFA restores password-only login.
func TestMFARemoval(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	admin := loginAdmin(t, client)
	user := createAndEnrollMFAUser(t, client, admin, "remove@example.com")
	ctx := t.Context()

	require.NoError(t, user.Session.DisableMFA(ctx, userPassword))

	sess, err := client.AuthenticateWithPassword(ctx, user.Email, userPassword)
	require.NoError(t, err)

	status, err := sess.MFAStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.Enabled)
	require.Zero(t, status.BackupCodesRemaining)
}

// TestMFAInvalidScenarios covers enrollment misuse.
func TestMFAInvalidScenarios(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	admin := loginAdmin(t, client)
	ctx := t.Context()

	err := admin.DisableMFA(ctx, adminPassword)
	requireCode(t, err, authsdk.ErrMFANotEnabled)

	setup, err := admin.BeginMFASetup(ctx)
	require.NoError(t, err)

	_, err = admin.CompleteMFASetup(ctx, setup.SetupToken, "")
	requireCode(t, err, authsdk.ErrValidation)

	// a setup token issued to someone else does not verify
	member, _ := createMember(t, client, admin, "other@example.com")
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	_, err = member.CompleteMFASetup(ctx, setup.SetupToken, code)
	requireCode(t, err, authsdk.ErrInvalidMFACode)

	_, err = client.CompleteMFALogin(ctx, "not-a-challenge", "123456", false)
	requireCode(t, err, authsdk.ErrInvalidMFAToken)
}

// TestMFAAttemptLimiting checks that a challenge dies after five wrong codes.
func TestMFAAttemptLimiting(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	admin := loginAdmin(t, client)
	user := createAndEnrollMFAUser(t, client, admin, "limit@example.com")
	ctx := t.Context()

	c := challenge(t, client, user.Email)
	for range 5 {
		_, err := client.CompleteMFALogin(ctx, c.MFAToken, "ZZZZ-ZZZZ", true)
		requireCode(t, err, authsdk.ErrInvalidMFACode)
	}

	// the right code no longer helps on this challenge
	_, err := client.CompleteMFALogin(ctx, c.MFAToken, user.BackupCodes[0], true)
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, []string{authsdk.CodeInvalidMFAToken, authsdk.CodeTooManyAttempts}, apiErr.Code)
}
