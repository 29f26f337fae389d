package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned when an optimistic version check fails.
	ErrConflict = errors.New("store: version conflict")

	// ErrUnavailable wraps transient failures (busy database, deadline).
	// Callers may retry once.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the root data access interface. Concrete drivers implement it.
// Sub-repositories are exposed as methods so that a Tx hands out repos bound
// to the transaction and nothing can open a transaction inside another.
type Store interface {
	Users() Users
	Sessions() Sessions
	BackupCodes() BackupCodes
	MFAChallenges() MFAChallenges
	MFAAttempts() MFAAttempts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u with Version 1. Returns ErrAlreadyExists when the
	// email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePassword is the only writer of the password hash and history.
	// It succeeds only when the stored version equals expectedVersion and
	// bumps the version; otherwise it returns ErrConflict.
	UpdatePassword(ctx context.Context, userID string, expectedVersion int64, hash string, history []string, at time.Time) error

	SetVerified(ctx context.Context, userID string, verified bool, at time.Time) error
	SetActive(ctx context.Context, userID string, active bool, at time.Time) error
	SetRole(ctx context.Context, userID string, role domain.Role, at time.Time) error

	// CountActiveAdmins backs the rule that the last admin stays.
	CountActiveAdmins(ctx context.Context) (int, error)

	// EnableMFA stores the sealed secret and marks MFA enabled.
	EnableMFA(ctx context.Context, userID string, secret cryptox.Envelope, at time.Time) error

	// DisableMFA clears the secret columns and timestamps.
	DisableMFA(ctx context.Context, userID string, at time.Time) error

	// TouchMFA records a successful verification.
	TouchMFA(ctx context.Context, userID string, at time.Time) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// GetSessionByRefreshHash returns the session regardless of state.
	GetSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error)

	// ListActiveSessions returns active, unexpired sessions, newest first.
	ListActiveSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)

	// DeactivateSession is idempotent.
	DeactivateSession(ctx context.Context, id string) error

	// DeactivateUserSessions deactivates every active session of userID and
	// returns how many changed.
	DeactivateUserSessions(ctx context.Context, userID string) (int64, error)

	// TouchSession records a refresh. It reports false when the session is
	// no longer active, so a concurrent revoke wins.
	TouchSession(ctx context.Context, id, accessTokenID string, at time.Time) (bool, error)

	// DeleteStaleSessions removes sessions expired before now and inactive
	// sessions last touched before inactiveBefore.
	DeleteStaleSessions(ctx context.Context, now, inactiveBefore time.Time) (int64, error)
}

type BackupCodes interface {
	// ReplaceBackupCodes deletes every code of userID and inserts hashes in
	// order. Run it inside a transaction.
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) error

	ListBackupCodes(ctx context.Context, userID string) ([]domain.BackupCode, error)

	// ClaimBackupCode marks an unused code used. Exactly one concurrent
	// caller gets true for a given code.
	ClaimBackupCode(ctx context.Context, userID, hash string, at time.Time) (bool, error)

	CountUnusedBackupCodes(ctx context.Context, userID string) (int, error)

	DeleteAllBackupCodes(ctx context.Context, userID string) error
}

type MFAChallenges interface {
	CreateMFAChallenge(ctx context.Context, c domain.MFAChallenge) error

	// GetMFAChallenge returns the challenge only if it has not expired at now.
	GetMFAChallenge(ctx context.Context, id string, now time.Time) (domain.MFAChallenge, error)

	// IncrementMFAChallengeAttempts returns the new attempt count.
	IncrementMFAChallengeAttempts(ctx context.Context, id string) (int, error)

	DeleteMFAChallenge(ctx context.Context, id string) error

	DeleteExpiredMFAChallenges(ctx context.Context, now time.Time) (int64, error)
}

// MFAAttempts is the persistent backing of the MFA lockout counter when no
// Redis is configured.
type MFAAttempts interface {
	// GetMFAFailures returns the failure count and when its window opened.
	// ErrNotFound means no failures are recorded.
	GetMFAFailures(ctx context.Context, userID string) (int, time.Time, error)

	// RecordMFAFailure increments the count, restarting it at 1 when the
	// current window opened at or before windowStartBefore. Returns the new
	// count.
	RecordMFAFailure(ctx context.Context, userID string, now, windowStartBefore time.Time) (int, error)

	ResetMFAFailures(ctx context.Context, userID string) error

	// DeleteMFAFailuresBefore removes counters whose window opened before t.
	DeleteMFAFailuresBefore(ctx context.Context, t time.Time) (int64, error)
}
