package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// TestJWKSVerification checks that a downstream service can verify access
// tokens with nothing but the published key set.
func TestJWKSVerification(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	admin := loginAdmin(t, client)

	jwksResp, err := client.GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, jwksResp.Keys, 1)

	key := jwksResp.Keys[0]
	require.Equal(t, "OKP", key.Kty)
	require.Equal(t, "Ed25519", key.Crv)
	require.Equal(t, "EdDSA", key.Alg)
	require.NotEmpty(t, key.Kid)

	keySet := jwtx.NewKeySet()
	require.NoError(t, keySet.AddJWK(key))

	verifier := jwtx.NewVerifierEdDSA(keySet, jwtx.VerifyOptions{
		Issuer:   issuer,
		Audience: []string{audience},
	})
	claims, err := verifier.Verify(admin.AccessToken())
	require.NoError(t, err)
	require.Equal(t, jwtx.TokenTypeAccess, claims.Type)
	require.Equal(t, admin.ID(), claims.SID)
	require.Equal(t, "admin", claims.Role)

	// a verifier expecting another audience refuses the token
	other := jwtx.NewVerifierEdDSA(keySet, jwtx.VerifyOptions{Issuer: issuer, Audience: []string{"billing"}})
	_, err = other.Verify(admin.AccessToken())
	require.ErrorIs(t, err, jwtx.ErrAudience)
}

// TestJWKSDiffersPerDeployment checks that each fresh data directory gets
// its own signing key.
func TestJWKSDiffersPerDeployment(t *testing.T) {
	a := authsdk.NewSDKClient(setupAuthContainer(t))
	b := authsdk.NewSDKClient(setupAuthContainer(t))

	ja, err := a.GetJWKS(t.Context())
	require.NoError(t, err)
	jb, err := b.GetJWKS(t.Context())
	require.NoError(t, err)

	require.NotEqual(t, ja.Keys[0].X, jb.Keys[0].X)

	// tokens from one deployment are rejected by the other
	sess := loginAdmin(t, a)
	foreign := b.NewSessionFromTokens(sess.AccessToken(), "", 900)
	_, err = foreign.Me(t.Context())
	requireCode(t, err, authsdk.ErrInvalidToken)
}
