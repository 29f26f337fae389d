package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/lockout"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20 // 160 bits

	// DefaultTOTPSkew is the number of steps tolerated either side of now.
	DefaultTOTPSkew = 1
)

// MFAService drives the per-principal state machine
// Disabled -> PendingVerification -> Enabled -> Disabled. Pending state
// lives only in the sealed envelope held by the client.
type MFAService struct {
	Store     store.Store
	Sealer    *cryptox.Sealer
	Limiter   lockout.Limiter
	Passwords *PasswordService
	Issuer    string

	// Skew is the TOTP step tolerance. Nil means DefaultTOTPSkew.
	Skew *uint

	StoreTimeout time.Duration
	Now          func() time.Time
}

func (s *MFAService) now() time.Time { return nowOrDefault(s.Now) }

func (s *MFAService) skew() uint {
	if s.Skew == nil {
		return DefaultTOTPSkew
	}
	return *s.Skew
}

// The transport envelope is bound to the account email and the stored one
// to the user id, so neither opens in the other role.
func setupAAD(email string) []byte { return []byte("mfa-setup:" + domain.NormalizeEmail(email)) }
func secretAAD(userID string) []byte { return []byte("mfa-secret:" + userID) }

// BeginSetup generates a fresh secret labelled with email. Nothing is
// persisted; the secret comes back sealed for the client to return with the
// first code.
func (s *MFAService) BeginSetup(ctx context.Context, email string) (*domain.MFASetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: email,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate TOTP key: %w", err)
	}

	env, err := s.Sealer.Seal([]byte(key.Secret()), setupAAD(email))
	if err != nil {
		return nil, fmt.Errorf("seal setup secret: %w", err)
	}

	slogx.FromContext(ctx).Debug("MFA setup started")
	return &domain.MFASetup{
		ProvisioningURI: key.URL(),
		Secret:          key.Secret(),
		Issuer:          s.Issuer,
		Account:         email,
		Envelope:        env,
	}, nil
}

// CompleteSetup enables MFA when code matches the secret inside envelope and
// returns the plain backup codes. On any failure nothing is written.
func (s *MFAService) CompleteSetup(ctx context.Context, userID, code string, envelope cryptox.Envelope) ([]string, error) {
	l := slogx.FromContext(ctx)

	if err := s.checkLimiter(ctx, userID); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFA.Enabled {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, err := s.Sealer.Open(envelope, setupAAD(user.Email))
	if err != nil || !s.validateTOTP(code, string(secret), s.now()) {
		s.recordFailure(ctx, userID)
		l.Info("MFA setup verification failed", slog.String("user_id", userID))
		return nil, ErrInvalidCode
	}

	stored, err := s.Sealer.Seal(secret, secretAAD(userID))
	if err != nil {
		return nil, fmt.Errorf("seal MFA secret: %w", err)
	}
	codes, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.BackupCodes().ReplaceBackupCodes(ctx, userID, hashes, now); err != nil {
				return fmt.Errorf("store backup codes: %w", err)
			}
			if err := tx.Users().EnableMFA(ctx, userID, stored, now); err != nil {
				return fmt.Errorf("enable MFA: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.resetLimiter(ctx, userID)
	l.Info("MFA enabled", slog.String("user_id", userID))
	return codes, nil
}

// Verify checks a TOTP code or, when isBackupCode is set, redeems a backup
// code. An unknown user, MFA that is not enabled and a missing or
// undecryptable secret are all a plain false so callers cannot tell them
// apart from a wrong code.
func (s *MFAService) Verify(ctx context.Context, userID, code string, isBackupCode bool) (bool, error) {
	l := slogx.FromContext(ctx)

	if err := s.checkLimiter(ctx, userID); err != nil {
		return false, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	if !user.MFA.Enabled {
		return false, nil
	}

	now := s.now()
	var ok bool
	if isBackupCode {
		ok, err = storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (bool, error) {
			return s.Store.BackupCodes().ClaimBackupCode(ctx, userID, cryptox.FingerprintBackupCode(code), now)
		})
		if err != nil {
			return false, err
		}
	} else if user.MFA.Secret != nil {
		secret, err := s.Sealer.Open(*user.MFA.Secret, secretAAD(userID))
		if err != nil {
			l.Warn("stored MFA secret failed to open", slog.String("user_id", userID))
		} else {
			ok = s.validateTOTP(code, string(secret), now)
		}
	}

	if !ok {
		s.recordFailure(ctx, userID)
		return false, nil
	}

	if err := storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Users().TouchMFA(ctx, userID, now)
	}); err != nil {
		l.Warn("failed to record MFA use", slog.String("user_id", userID), slog.Any("error", err))
	}
	s.resetLimiter(ctx, userID)
	return true, nil
}

// Disable wipes the secret and every backup code after re-checking the
// current password.
func (s *MFAService) Disable(ctx context.Context, userID, currentPassword string) error {
	if err := s.Passwords.Reauthenticate(ctx, userID, currentPassword); err != nil {
		return err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFA.Enabled {
		return ErrMFANotEnabled
	}

	now := s.now()
	err = storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
				return fmt.Errorf("delete backup codes: %w", err)
			}
			if err := tx.Users().DisableMFA(ctx, userID, now); err != nil {
				return fmt.Errorf("disable MFA: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.resetLimiter(ctx, userID)
	slogx.FromContext(ctx).Info("MFA disabled", slog.String("user_id", userID))
	return nil
}

// RegenerateBackupCodes replaces the whole set in one transaction; old codes
// stop working when it commits.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, currentPassword string) ([]string, error) {
	if err := s.Passwords.Reauthenticate(ctx, userID, currentPassword); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.MFA.Enabled {
		return nil, ErrMFANotEnabled
	}

	codes, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}
	now := s.now()
	err = storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			return tx.BackupCodes().ReplaceBackupCodes(ctx, userID, hashes, now)
		})
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("backup codes regenerated", slog.String("user_id", userID))
	return codes, nil
}

// Status summarises the principal's MFA configuration.
func (s *MFAService) Status(ctx context.Context, userID string) (domain.MFAStatus, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.MFAStatus{}, err
	}
	st := domain.MFAStatus{
		Enabled:    user.MFA.Enabled,
		SetupAt:    user.MFA.SetupAt,
		LastUsedAt: user.MFA.LastUsedAt,
	}
	if !st.Enabled {
		return st, nil
	}
	st.BackupCodesRemaining, err = storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (int, error) {
		return s.Store.BackupCodes().CountUnusedBackupCodes(ctx, userID)
	})
	return st, err
}

func (s *MFAService) validateTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      s.skew(),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *MFAService) getUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, userID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// checkLimiter fails closed: a limiter that cannot answer blocks the attempt.
func (s *MFAService) checkLimiter(ctx context.Context, userID string) error {
	if s.Limiter == nil {
		return nil
	}
	switch err := s.Limiter.Check(ctx, userID); {
	case err == nil:
		return nil
	case errors.Is(err, lockout.ErrLocked):
		slogx.FromContext(ctx).Warn("MFA verification locked", slog.String("user_id", userID))
		return ErrTooManyAttempts
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func (s *MFAService) recordFailure(ctx context.Context, userID string) {
	if s.Limiter == nil {
		return
	}
	err := s.Limiter.RecordFailure(ctx, userID)
	if err != nil && !errors.Is(err, lockout.ErrLocked) {
		slogx.FromContext(ctx).Error("failed to record MFA failure",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}

func (s *MFAService) resetLimiter(ctx context.Context, userID string) {
	if s.Limiter == nil {
		return
	}
	if err := s.Limiter.Reset(ctx, userID); err != nil {
		slogx.FromContext(ctx).Warn("failed to reset MFA failures",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}

// generateBackupCodes returns the plain codes for display and their stored
// fingerprints in the same order.
func generateBackupCodes() ([]string, []string, error) {
	codes := make([]string, domain.BackupCodeCount)
	hashes := make([]string, domain.BackupCodeCount)
	for i := range codes {
		c, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, nil, err
		}
		codes[i] = c
		hashes[i] = cryptox.FingerprintBackupCode(c)
	}
	return codes, hashes, nil
}
