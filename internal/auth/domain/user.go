package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrNoCredential is returned by User.Validate for an account with neither a
// local password nor an external identity.
var ErrNoCredential = errors.New("domain: user needs a password hash or an external identity")

// User is the principal. Password fields change only through
// store.Users.UpdatePassword; the MFA block only through the MFA service.
type User struct {
	ID    string
	Email string // lower-cased; unique
	Name  string

	PasswordHash    string   // argon2id PHC string, empty for federated-only accounts
	PasswordHistory []string // previous hashes, oldest first

	ExternalProvider string
	ExternalSubject  string

	Verified bool
	Active   bool
	Role     Role
	MFA      MFAConfig

	// Version increments on every password write and guards it.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the account can log in locally.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// Validate checks the invariants a stored user must hold.
func (u User) Validate() error {
	if u.PasswordHash == "" && u.ExternalSubject == "" {
		return ErrNoCredential
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	return u.MFA.Validate()
}

// NormalizeEmail is the canonical stored and compared form of an email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
