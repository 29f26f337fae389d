package jwtx

import "github.com/golang-jwt/jwt/v5"

// NewVerifierHS256 creates a verifier for tokens signed with the shared secret.
func NewVerifierHS256(secret []byte, opts VerifyOptions) Verifier {
	key := append([]byte(nil), secret...)
	return &tokenVerifier{
		method: jwt.SigningMethodHS256.Alg(),
		opts:   opts,
		keyFunc: func(*jwt.Token) (any, error) {
			return key, nil
		},
	}
}
