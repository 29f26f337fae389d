package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL is the lifetime of an access token unless configured
// otherwise.
const DefaultAccessTokenTTL = 15 * time.Minute

// TokenTypeAccess is the only token type this package mints. Refresh tokens
// are opaque and never JWTs.
const TokenTypeAccess = "access"

// Claims are access-token claims shared by every service that trusts the
// auth service.
type Claims struct {
	jwt.RegisteredClaims

	// Type distinguishes access tokens from any other JWT signed with the
	// same key. Verifiers reject anything other than TokenTypeAccess.
	Type string `json:"typ"`

	// SID is the session the token was minted under.
	SID string `json:"sid,omitempty"`

	// Role is informational; authorization re-reads the principal's role.
	Role string `json:"role,omitempty"`
}

// NewAccessClaims builds claims for an access token issued at now.
func NewAccessClaims(
	subject, sid, role string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Type: TokenTypeAccess,
		SID:  sid,
		Role: role,
	}
}

// NewJTI returns a random UUIDv4 for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateType checks the custom typ claim.
func (c *Claims) ValidateType(expected string) error {
	if c.Type != expected {
		return ErrTokenType
	}
	return nil
}

// ValidateExpiryAt ensures the token has not expired and is not used before
// nbf, as observed at now with the given clock-skew leeway.
func (c *Claims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if !now.Before(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateExpiry is ValidateExpiryAt against the wall clock with no leeway.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryAt(time.Now(), 0)
}
