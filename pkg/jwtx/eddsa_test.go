package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newEdDSASigner(t *testing.T, kid string) jwtx.PublicSigner {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())
	return signer
}

func TestEdDSASignAndVerify(t *testing.T) {
	signer := newEdDSASigner(t, "test-key-eddsa")
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, "test-key-eddsa", signer.KID())

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims("user-456", "session-1", "manager", 5*time.Minute, exampleIssuer, []string{"api"}, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	jwks := keyset.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)

	verifier := jwtx.NewVerifierEdDSA(keyset, jwtx.VerifyOptions{Issuer: exampleIssuer, Audience: []string{"api"}})
	parsed, err := verifier.Verify(token)
	require.NoError(t, err)

	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, claims.SID, parsed.SID)
	require.Equal(t, claims.Role, parsed.Role)
	require.Equal(t, claims.ID, parsed.ID)
	require.Equal(t, jwtx.TokenTypeAccess, parsed.Type)
}

func TestEdDSAVerifyFailures(t *testing.T) {
	signer := newEdDSASigner(t, "kid-a")
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	now := time.Now().UTC()
	opts := jwtx.VerifyOptions{Issuer: exampleIssuer, Audience: []string{"api"}}
	verifier := jwtx.NewVerifierEdDSA(keyset, opts)

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewAccessClaims("u", "s", "member", time.Minute, "someone-else", []string{"api"}, now))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("unknown kid", func(t *testing.T) {
		stranger := newEdDSASigner(t, "kid-b")
		token, err := stranger.Sign(jwtx.NewAccessClaims("u", "s", "member", time.Minute, exampleIssuer, []string{"api"}, now))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("same kid different key", func(t *testing.T) {
		impostor := newEdDSASigner(t, "kid-a")
		token, err := impostor.Sign(jwtx.NewAccessClaims("u", "s", "member", time.Minute, exampleIssuer, []string{"api"}, now))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewAccessClaims("u", "s", "member", time.Minute, exampleIssuer, []string{"api"}, now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}
