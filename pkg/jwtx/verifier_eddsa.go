package jwtx

import (
	"crypto/ed25519"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// NewVerifierEdDSA creates a verifier using a KeySet of Ed25519 public keys.
// The token's kid header selects the key.
func NewVerifierEdDSA(keys *KeySet, opts VerifyOptions) Verifier {
	return &tokenVerifier{
		method: jwt.SigningMethodEdDSA.Alg(),
		opts:   opts,
		keyFunc: func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, ErrUnknownKID
			}

			pub, err := keys.Get(kid)
			if err != nil {
				return nil, ErrUnknownKID
			}

			edPub, ok := pub.(ed25519.PublicKey)
			if !ok {
				return nil, errors.New("jwtx: invalid Ed25519 key type")
			}
			return edPub, nil
		},
	}
}
