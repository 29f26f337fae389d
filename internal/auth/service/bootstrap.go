package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/policy"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/idx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

var ErrBootstrapAlready = errors.New("system already bootstrapped")

// BootstrapService creates the first administrator on an empty store.
type BootstrapService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Policy *policy.Policy
	Now    func() time.Time
}

// IsBootstrapped reports whether any user exists.
func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// EnsureAdmin creates an active, verified admin when the user table is
// empty. It returns ErrBootstrapAlready otherwise.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	if done, err := s.IsBootstrapped(ctx); err != nil {
		return domain.User{}, err
	} else if done {
		return domain.User{}, ErrBootstrapAlready
	}

	email = domain.NormalizeEmail(email)
	name, _, _ := strings.Cut(email, "@")
	if s.Policy != nil {
		if res := s.Policy.Validate(password, policy.Context{Email: email}); !res.Valid {
			return domain.User{}, &WeakPasswordError{Result: res}
		}
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash admin password: %w", err)
	}

	now := nowOrDefault(s.Now)
	admin := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Verified:     true,
		Active:       true,
		Role:         domain.RoleAdmin,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, admin); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrBootstrapAlready
		}
		return domain.User{}, fmt.Errorf("create admin: %w", err)
	}

	l.Info("bootstrap admin created", slog.String("user_id", admin.ID))
	return admin, nil
}
