package jwtx

import (
	"fmt"
	"time"
)

// KeyManager bundles the signer, verifier and published key set for one
// instance of the auth service.
type KeyManager struct {
	Signer   Signer
	Verifier Verifier

	// KeySet is empty for symmetric algorithms.
	KeySet    *KeySet
	algorithm string
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Algorithm is AlgorithmHS256 or AlgorithmEdDSA.
	Algorithm string

	// KID labels the signing key in the token header.
	KID string

	// Secret is the HS256 shared secret.
	Secret []byte

	// PrivateKeyPEM is the PKCS8 Ed25519 key for EdDSA.
	PrivateKeyPEM []byte

	Issuer   string
	Audience []string
	Leeway   time.Duration
	Now      func() time.Time
}

// NewKeyManager wires a signer and matching verifier for opts.Algorithm.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	vopts := VerifyOptions{
		Issuer:   opts.Issuer,
		Audience: opts.Audience,
		Leeway:   opts.Leeway,
		Now:      opts.Now,
	}
	keyset := NewKeySet()

	switch opts.Algorithm {
	case AlgorithmHS256:
		signer, err := NewSignerHS256(opts.KID, opts.Secret)
		if err != nil {
			return nil, err
		}
		return &KeyManager{
			Signer:    signer,
			Verifier:  NewVerifierHS256(opts.Secret, vopts),
			KeySet:    keyset,
			algorithm: opts.Algorithm,
		}, nil

	case AlgorithmEdDSA:
		signer, err := NewSignerEdDSA(opts.KID, opts.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		if err := signer.Validate(); err != nil {
			return nil, err
		}
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
		}
		return &KeyManager{
			Signer:    signer,
			Verifier:  NewVerifierEdDSA(keyset, vopts),
			KeySet:    keyset,
			algorithm: opts.Algorithm,
		}, nil

	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: HS256, EdDSA)", opts.Algorithm)
	}
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady reports whether tokens can be signed and verified.
func (km *KeyManager) IsReady() bool {
	return km.Signer != nil && km.Signer.Validate() == nil
}
