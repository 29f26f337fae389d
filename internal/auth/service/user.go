package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

// UserService covers the administrative account transitions.
type UserService struct {
	Store        store.Store
	Tokens       *TokenService
	StoreTimeout time.Duration
	Now          func() time.Time
}

func (s *UserService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, userID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// Verify marks the principal's email as verified.
func (s *UserService) Verify(ctx context.Context, userID string) (domain.User, error) {
	err := storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Users().SetVerified(ctx, userID, true, nowOrDefault(s.Now))
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("user verified", slog.String("user_id", userID))
	return s.GetUser(ctx, userID)
}

// Deactivate disables the account and revokes every session it holds. The
// actor must outrank the target, or be the target itself. The last active
// admin can never be deactivated.
func (s *UserService) Deactivate(ctx context.Context, actor domain.User, userID string) (domain.User, error) {
	err := storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			target, err := tx.Users().GetUserByID(ctx, userID)
			if err != nil {
				return err
			}
			if target.ID != actor.ID && !actor.Role.Outranks(target.Role) {
				return ErrInsufficientPermissions
			}
			if err := keepLastAdmin(ctx, tx, target); err != nil {
				return err
			}
			return tx.Users().SetActive(ctx, userID, false, nowOrDefault(s.Now))
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if err := s.Tokens.RevokeAllSessions(ctx, userID); err != nil {
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("user deactivated",
		slog.String("user_id", userID), slog.String("actor_id", actor.ID))
	return s.GetUser(ctx, userID)
}

// SetRole assigns role to the account. Only admins may call it, and an admin
// demoting the last active admin is refused.
func (s *UserService) SetRole(ctx context.Context, actor domain.User, userID string, role domain.Role) (domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.User{}, ErrInsufficientPermissions
	}
	if !role.Valid() {
		return domain.User{}, domain.ErrInvalidRole
	}

	err := storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			target, err := tx.Users().GetUserByID(ctx, userID)
			if err != nil {
				return err
			}
			if target.Role == role {
				return nil
			}
			if role != domain.RoleAdmin {
				if err := keepLastAdmin(ctx, tx, target); err != nil {
					return err
				}
			}
			return tx.Users().SetRole(ctx, userID, role, nowOrDefault(s.Now))
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("user role set",
		slog.String("user_id", userID), slog.String("role", string(role)), slog.String("actor_id", actor.ID))
	return s.GetUser(ctx, userID)
}

// keepLastAdmin refuses to take target out of the admin pool when it is the
// only active admin left. It runs inside the write transaction so two admins
// cannot step down at once.
func keepLastAdmin(ctx context.Context, tx store.Tx, target domain.User) error {
	if target.Role != domain.RoleAdmin || !target.Active {
		return nil
	}
	n, err := tx.Users().CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}
