package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/idx"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
	"github.com/aussiebroadwan/workbench/pkg/slogx"
)

// DefaultSessionTTL is the absolute lifetime of a session and its refresh
// token.
const DefaultSessionTTL = 7 * 24 * time.Hour

// TokenService is the only writer of session state.
type TokenService struct {
	Keys       *jwtx.KeyManager
	Store      store.Store
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	SessionTTL time.Duration

	// StrictBinding rejects a refresh from a different IP or user agent and
	// deactivates the session when it does.
	StrictBinding bool

	// SingleSession deactivates every other session of a principal when a
	// new one is created.
	SingleSession bool

	StoreTimeout time.Duration
	Now          func() time.Time

	locks keyedMutex
}

func (s *TokenService) now() time.Time { return nowOrDefault(s.Now) }

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return s.AccessTTL
}

func (s *TokenService) sessionTTL() time.Duration {
	if s.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return s.SessionTTL
}

// CreateSession issues a token pair for a principal that has passed every
// required factor.
func (s *TokenService) CreateSession(ctx context.Context, userID, ip, userAgent string) (*domain.SessionTokens, error) {
	l := slogx.FromContext(ctx)

	user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	// Concurrent logins of one principal queue here; the transaction below
	// makes deactivate-then-insert a single unit across processes.
	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.now()
	sess := domain.Session{
		ID:               idx.NewAt(now).String(),
		UserID:           user.ID,
		RefreshTokenHash: cryptox.FingerprintToken(refresh),
		IP:               ip,
		UserAgent:        userAgent,
		Active:           true,
		ExpiresAt:        now.Add(s.sessionTTL()),
		LastAccessedAt:   now,
		CreatedAt:        now,
	}

	access, jti, err := s.signAccess(user, sess.ID, now)
	if err != nil {
		return nil, err
	}
	sess.AccessTokenID = jti

	var replaced int64
	err = storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			replaced = 0
			if s.SingleSession {
				n, err := tx.Sessions().DeactivateUserSessions(ctx, user.ID)
				if err != nil {
					return err
				}
				replaced = n
			}
			return tx.Sessions().CreateSession(ctx, sess)
		})
	})
	if err != nil {
		return nil, err
	}

	l.Info("session created",
		slog.String("user_id", user.ID),
		slog.String("session_id", sess.ID),
		slog.Int64("replaced_sessions", replaced),
	)

	return &domain.SessionTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sess.ID,
		ExpiresIn:    s.accessTTL(),
	}, nil
}

// RefreshAccessToken mints a new access token for the session identified by
// refreshToken. The refresh token itself is not rotated.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken, ip, userAgent string) (*domain.RefreshResult, error) {
	l := slogx.FromContext(ctx)
	if refreshToken == "" {
		return nil, ErrInvalidSession
	}
	now := s.now()

	sess, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.Session, error) {
		return s.Store.Sessions().GetSessionByRefreshHash(ctx, cryptox.FingerprintToken(refreshToken))
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	if !sess.Usable(now) {
		if sess.Active {
			// expired but never logged out
			_ = s.deactivate(ctx, sess.ID)
		}
		return nil, ErrInvalidSession
	}

	if s.StrictBinding && (sess.IP != ip || sess.UserAgent != userAgent) {
		if err := s.deactivate(ctx, sess.ID); err != nil {
			l.Error("failed to deactivate session after binding mismatch",
				slog.String("session_id", sess.ID), slog.Any("error", err))
		}
		l.Warn("session binding mismatch on refresh",
			slog.String("session_id", sess.ID),
			slog.String("user_id", sess.UserID),
			slog.Bool("ip_changed", sess.IP != ip),
			slog.Bool("user_agent_changed", sess.UserAgent != userAgent),
		)
		return nil, ErrSessionSecurityViolation
	}

	user, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, sess.UserID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if !user.Active {
		_ = s.deactivate(ctx, sess.ID)
		return nil, ErrAccountDeactivated
	}

	access, jti, err := s.signAccess(user, sess.ID, now)
	if err != nil {
		return nil, err
	}

	touched, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (bool, error) {
		return s.Store.Sessions().TouchSession(ctx, sess.ID, jti, now)
	})
	if err != nil {
		return nil, err
	}
	if !touched {
		// revoked between the lookup and the touch
		return nil, ErrInvalidSession
	}

	return &domain.RefreshResult{
		AccessToken: access,
		SessionID:   sess.ID,
		ExpiresIn:   s.accessTTL(),
		User:        user,
	}, nil
}

// RevokeSession deactivates the session owning refreshToken. Unknown or
// already inactive tokens are not an error.
func (s *TokenService) RevokeSession(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	sess, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.Session, error) {
		return s.Store.Sessions().GetSessionByRefreshHash(ctx, cryptox.FingerprintToken(refreshToken))
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.deactivate(ctx, sess.ID)
}

// RevokeSessionByID is RevokeSession keyed by session id.
func (s *TokenService) RevokeSessionByID(ctx context.Context, sessionID string) error {
	return s.deactivate(ctx, sessionID)
}

// RevokeAllSessions deactivates every session of a principal.
func (s *TokenService) RevokeAllSessions(ctx context.Context, userID string) error {
	n, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (int64, error) {
		return s.Store.Sessions().DeactivateUserSessions(ctx, userID)
	})
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("sessions revoked",
		slog.String("user_id", userID), slog.Int64("count", n))
	return nil
}

// ListSessions returns the principal's active sessions, newest first.
func (s *TokenService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	now := s.now()
	return storeCall(ctx, s.StoreTimeout, func(ctx context.Context) ([]domain.Session, error) {
		return s.Store.Sessions().ListActiveSessions(ctx, userID, now)
	})
}

// GetSession returns a session by id in any state.
func (s *TokenService) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	sess, err := storeCall(ctx, s.StoreTimeout, func(ctx context.Context) (domain.Session, error) {
		return s.Store.Sessions().GetSessionByID(ctx, sessionID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrSessionNotFound
	}
	return sess, err
}

// VerifyAccessToken checks signature, issuer, audience, type and expiry.
// An otherwise valid token past its expiry yields ErrTokenExpired; anything
// else wrong yields ErrInvalidToken.
func (s *TokenService) VerifyAccessToken(token string) (jwtx.Claims, error) {
	if token == "" {
		return jwtx.Claims{}, ErrInvalidToken
	}
	claims, err := s.Keys.Verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return jwtx.Claims{}, ErrTokenExpired
		}
		return jwtx.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *TokenService) deactivate(ctx context.Context, sessionID string) error {
	return storeExec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Sessions().DeactivateSession(ctx, sessionID)
	})
}

func (s *TokenService) signAccess(user domain.User, sessionID string, now time.Time) (string, string, error) {
	claims := jwtx.NewAccessClaims(user.ID, sessionID, string(user.Role), s.accessTTL(), s.Issuer, s.Audience, now)
	token, err := s.Keys.Signer.Sign(claims)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	return token, claims.ID, nil
}
