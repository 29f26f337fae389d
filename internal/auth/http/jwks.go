package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/workbench/pkg/authsdk"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
)

// JWKSHandler publishes the verification keys. The set is empty when tokens
// are signed with a shared HS256 secret.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify access tokens signed with EdDSA.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks := keys.PublicJWKS()
		if jwks.Keys == nil {
			jwks.Keys = []jwtx.JWK{}
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(authsdk.JWKSResponse(jwks))
	}
}
