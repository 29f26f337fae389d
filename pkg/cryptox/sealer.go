package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// SealerKeySize is the AES-256 key length.
	SealerKeySize = 32
	// SealerIVSize is the GCM nonce length.
	SealerIVSize = 12
	// SealerTagSize is the GCM authentication tag length.
	SealerTagSize = 16
)

var (
	ErrSealerKey      = errors.New("cryptox: sealer key must be 32 bytes")
	ErrEnvelope       = errors.New("cryptox: malformed envelope")
	ErrDecryptFailed  = errors.New("cryptox: decryption failed")
	ErrSealerDisabled = errors.New("cryptox: sealer not configured")
)

// Envelope is an AES-256-GCM ciphertext with its IV and authentication tag
// held separately, as persisted in the store.
type Envelope struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// IsZero reports whether the envelope holds no data.
func (e Envelope) IsZero() bool {
	return len(e.Ciphertext) == 0 && len(e.IV) == 0 && len(e.Tag) == 0
}

// Encode renders the envelope as "iv.tag.ciphertext" in base64url, suitable
// for handing to a client and receiving back unchanged.
func (e Envelope) Encode() string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString(e.IV) + "." + enc.EncodeToString(e.Tag) + "." + enc.EncodeToString(e.Ciphertext)
}

// ParseEnvelope is the inverse of Envelope.Encode.
func ParseEnvelope(s string) (Envelope, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Envelope{}, ErrEnvelope
	}

	enc := base64.RawURLEncoding
	iv, err := enc.DecodeString(parts[0])
	if err != nil {
		return Envelope{}, ErrEnvelope
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil {
		return Envelope{}, ErrEnvelope
	}
	ct, err := enc.DecodeString(parts[2])
	if err != nil {
		return Envelope{}, ErrEnvelope
	}

	return Envelope{Ciphertext: ct, IV: iv, Tag: tag}, nil
}

// Sealer performs authenticated encryption of small secrets. Every call to
// Seal draws a fresh random IV. Additional data binds a ciphertext to its
// owner, so an envelope copied onto another principal fails to open.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != SealerKeySize {
		return nil, ErrSealerKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, SealerTagSize)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}

	return &Sealer{aead: gcm}, nil
}

// DeriveSealerKey stretches arbitrary key material (for example an
// environment variable) into a 32-byte key.
func DeriveSealerKey(material string) []byte {
	sum := sha256.Sum256([]byte(material))
	return sum[:]
}

// Seal encrypts plaintext under a fresh IV.
func (s *Sealer) Seal(plaintext, additionalData []byte) (Envelope, error) {
	if s == nil || s.aead == nil {
		return Envelope{}, ErrSealerDisabled
	}

	iv := make([]byte, SealerIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Envelope{}, fmt.Errorf("cryptox: generate iv: %w", err)
	}

	out := s.aead.Seal(nil, iv, plaintext, additionalData)
	split := len(out) - SealerTagSize

	return Envelope{
		Ciphertext: out[:split],
		IV:         iv,
		Tag:        out[split:],
	}, nil
}

// Open authenticates and decrypts an envelope. Any modification of the
// ciphertext, IV, tag, or additional data yields ErrDecryptFailed.
func (s *Sealer) Open(env Envelope, additionalData []byte) ([]byte, error) {
	if s == nil || s.aead == nil {
		return nil, ErrSealerDisabled
	}
	if len(env.IV) != SealerIVSize || len(env.Tag) != SealerTagSize {
		return nil, ErrEnvelope
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := s.aead.Open(nil, env.IV, sealed, additionalData)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
