package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/policy"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/idx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

// LoginService orchestrates password login, the optional MFA step and
// session creation.
type LoginService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Policy *policy.Policy
	Tokens *TokenService
	MFA    *MFAService

	StoreTimeout time.Duration
	Now          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// RegisterInput is a self-service signup.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginResult holds either tokens or, when a second factor is required, the
// pending challenge.
type LoginResult struct {
	User      domain.User
	Tokens    *domain.SessionTokens
	Challenge *domain.MFAChallenge
}

// MFARequired reports whether the login stopped at the second factor.
func (r *LoginResult) MFARequired() bool { return r.Challenge != nil }

func (s *LoginService) now() time.Time { return nowOrDefault(s.Now) }

// Register creates an unverified member account.
func (s *LoginService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)

	if res := s.Policy.Validate(in.Password, policy.Context{Email: email, Name: name}); !res.Valid {
		return domain.User{}, &WeakPasswordError{Result: res}
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Active:       true,
		Role:         domain.RoleMember,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Users().CreateUser(ctx, user)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Login checks the password. Unknown email, wrong password and an account
// without a local password all return ErrInvalidCredentials after the same
// amount of hashing work.
func (s *LoginService) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	l := slogx.FromContext(ctx)

	user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Hasher.Matches(password, s.dummy())
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.HasPassword() {
		s.Hasher.Matches(password, s.dummy())
		return nil, ErrInvalidCredentials
	}
	if !s.Hasher.Matches(password, user.PasswordHash) {
		l.Info("login failed", slog.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountDeactivated
	}

	if user.MFA.Enabled {
		now := s.now()
		c := domain.MFAChallenge{
			ID:        idx.NewAt(now).String(),
			UserID:    user.ID,
			IP:        ip,
			UserAgent: userAgent,
			CreatedAt: now,
			ExpiresAt: now.Add(domain.MFAChallengeTTL),
		}
		err := storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
			return s.Store.MFAChallenges().CreateMFAChallenge(ctx, c)
		})
		if err != nil {
			return nil, err
		}
		l.Info("login awaiting second factor", slog.String("user_id", user.ID))
		return &LoginResult{User: user, Challenge: &c}, nil
	}

	tokens, err := s.Tokens.CreateSession(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// CompleteMFALogin finishes a challenged login. A challenge tolerates
// domain.MaxMFAChallengeAttempts wrong codes and is consumed on success.
func (s *LoginService) CompleteMFALogin(ctx context.Context, mfaToken, code string, isBackupCode bool, ip, userAgent string) (*LoginResult, error) {
	now := s.now()
	c, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.MFAChallenge, error) {
		return s.Store.MFAChallenges().GetMFAChallenge(ctx, mfaToken, now)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidMFAToken
		}
		return nil, err
	}

	ok, err := s.MFA.Verify(ctx, c.UserID, code, isBackupCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		attempts, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (int, error) {
			return s.Store.MFAChallenges().IncrementMFAChallengeAttempts(ctx, c.ID)
		})
		if err == nil && attempts >= domain.MaxMFAChallengeAttempts {
			s.dropChallenge(ctx, c.ID)
		}
		return nil, ErrInvalidCode
	}
	s.dropChallenge(ctx, c.ID)

	user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, c.UserID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidMFAToken
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDeactivated
	}

	tokens, err := s.Tokens.CreateSession(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (s *LoginService) dropChallenge(ctx context.Context, id string) {
	err := storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.MFAChallenges().DeleteMFAChallenge(ctx, id)
	})
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to delete MFA challenge", slog.Any("error", err))
	}
}

// dummy is a real hash of a throwaway password so that misses cost the same
// as hits.
func (s *LoginService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("workbench-timing-equaliser")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
