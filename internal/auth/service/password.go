package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/policy"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

const (
	// DefaultHistoryDepth is how many previous hashes are kept.
	DefaultHistoryDepth = 3

	maxPasswordUpdateAttempts = 3
)

// PasswordService owns the password pipeline. It is the only caller of
// store.Users.UpdatePassword.
type PasswordService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Policy *policy.Policy

	// Tokens, when set, lets ChangePassword revoke every session.
	Tokens *TokenService

	HistoryDepth int
	StoreTimeout time.Duration
	Now          func() time.Time

	locks keyedMutex
}

func (s *PasswordService) depth() int {
	if s.HistoryDepth <= 0 {
		return DefaultHistoryDepth
	}
	return s.HistoryDepth
}

// Validate runs the complexity rules.
func (s *PasswordService) Validate(password string, c policy.Context) policy.Result {
	return s.Policy.Validate(password, c)
}

// CheckReuse reports whether candidate may become the new password: it must
// match neither the current hash nor any kept history entry. A failed lookup
// allows the change so a user is never locked out of replacing a
// compromised password.
func (s *PasswordService) CheckReuse(ctx context.Context, userID, candidate string) bool {
	user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, userID)
	})
	if err != nil {
		slogx.FromContext(ctx).Warn("password reuse check skipped",
			slog.String("user_id", userID), slog.Any("error", err))
		return true
	}

	if s.Hasher.Matches(candidate, user.PasswordHash) {
		return false
	}
	for _, h := range lastN(user.PasswordHistory, s.depth()) {
		if s.Hasher.Matches(candidate, h) {
			return false
		}
	}
	return true
}

// UpdatePasswordWithHistory hashes newPassword, pushes the previous hash
// onto the history and truncates it to the configured depth. Writers are
// serialised per principal in-process and by the version check across
// processes; a lost race re-reads and retries.
func (s *PasswordService) UpdatePasswordWithHistory(ctx context.Context, userID, newPassword string) error {
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	for attempt := 0; attempt < maxPasswordUpdateAttempts; attempt++ {
		user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
			return s.Store.Users().GetUserByID(ctx, userID)
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.PasswordHash == hash {
			// an earlier attempt committed but its acknowledgement was lost
			return nil
		}

		history := slices.Clone(user.PasswordHistory)
		if user.PasswordHash != "" {
			history = append(history, user.PasswordHash)
		}
		history = lastN(history, s.depth())

		err = storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
			return s.Store.Users().UpdatePassword(ctx, userID, user.Version, hash, history, nowOrDefault(s.Now))
		})
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		slogx.FromContext(ctx).Debug("password update lost version race",
			slog.String("user_id", userID), slog.Int("attempt", attempt+1))
	}
	return fmt.Errorf("update password: %w", store.ErrConflict)
}

// Reauthenticate checks the principal's current password.
func (s *PasswordService) Reauthenticate(ctx context.Context, userID, password string) error {
	user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !s.Hasher.Matches(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	return nil
}

// ChangePassword replaces the caller's password and ends every session.
func (s *PasswordService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !s.Hasher.Matches(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if res := s.Policy.Validate(next, policy.Context{Email: user.Email, Name: user.Name}); !res.Valid {
		return &WeakPasswordError{Result: res}
	}
	if !s.CheckReuse(ctx, userID, next) {
		return ErrPasswordReused
	}
	if err := s.UpdatePasswordWithHistory(ctx, userID, next); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password changed", slog.String("user_id", userID))
	if s.Tokens != nil {
		return s.Tokens.RevokeAllSessions(ctx, userID)
	}
	return nil
}

func lastN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
