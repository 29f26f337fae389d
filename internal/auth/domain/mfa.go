package domain

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/workbench/pkg/cryptox"
)

// MFA methods offered in a login challenge.
const (
	MFAMethodTOTP       = "totp"
	MFAMethodBackupCode = "backup_code"
)

const (
	// BackupCodeCount is how many codes are issued at enable and on
	// regeneration.
	BackupCodeCount = 10

	// MFAChallengeTTL bounds how long a login may wait on its second factor.
	MFAChallengeTTL = 5 * time.Minute

	// MaxMFAChallengeAttempts is the number of wrong codes a single challenge
	// tolerates before it is discarded.
	MaxMFAChallengeAttempts = 5
)

var ErrMFAInconsistent = errors.New("domain: MFA enabled without a stored secret")

// MFAConfig is the MFA block of a principal.
type MFAConfig struct {
	Enabled bool

	// Secret is the TOTP secret sealed at rest. Nil when disabled.
	Secret *cryptox.Envelope

	// BackupCodes is filled from store.BackupCodes when a caller needs it;
	// user lookups leave it nil.
	BackupCodes []BackupCode

	SetupAt    *time.Time
	LastUsedAt *time.Time
}

// Validate checks that an enabled configuration carries a secret.
func (c MFAConfig) Validate() error {
	if c.Enabled && (c.Secret == nil || c.Secret.IsZero()) {
		return ErrMFAInconsistent
	}
	return nil
}

// BackupCode is one single-use recovery code. Only its fingerprint is kept.
type BackupCode struct {
	CodeHash  string
	Position  int
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// MFAChallenge is a login that passed the password check and waits on a
// second factor. Its ID is the mfa_token handed to the client.
type MFAChallenge struct {
	ID        string
	UserID    string
	IP        string
	UserAgent string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MFASetup is the output of beginning enrollment. Nothing about it is
// persisted; Envelope travels to the client and back.
type MFASetup struct {
	ProvisioningURI string
	Secret          string // base32, for manual entry
	Issuer          string
	Account         string
	Envelope        cryptox.Envelope
}

// MFAStatus summarises a principal's MFA configuration.
type MFAStatus struct {
	Enabled              bool
	SetupAt              *time.Time
	LastUsedAt           *time.Time
	BackupCodesRemaining int
}
