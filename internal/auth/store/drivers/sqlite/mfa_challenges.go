package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
)

type mfaChallengesRepo struct {
	db dbtx
}

func (r *mfaChallengesRepo) CreateMFAChallenge(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_challenges (id, user_id, ip, user_agent, attempts, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.IP, c.UserAgent, c.Attempts, millis(c.CreatedAt), millis(c.ExpiresAt),
	)
	return mapErr(err)
}

func (r *mfaChallengesRepo) GetMFAChallenge(ctx context.Context, id string, now time.Time) (domain.MFAChallenge, error) {
	var (
		c                    domain.MFAChallenge
		createdAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, ip, user_agent, attempts, created_at, expires_at
		FROM mfa_challenges WHERE id = ? AND expires_at > ?`,
		id, millis(now),
	).Scan(&c.ID, &c.UserID, &c.IP, &c.UserAgent, &c.Attempts, &createdAt, &expiresAt)
	if err != nil {
		return domain.MFAChallenge{}, mapErr(err)
	}
	c.CreatedAt = fromMillis(createdAt)
	c.ExpiresAt = fromMillis(expiresAt)
	return c, nil
}

func (r *mfaChallengesRepo) IncrementMFAChallengeAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE mfa_challenges SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id,
	).Scan(&attempts)
	return attempts, mapErr(err)
}

func (r *mfaChallengesRepo) DeleteMFAChallenge(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE id = ?`, id)
	return mapErr(err)
}

func (r *mfaChallengesRepo) DeleteExpiredMFAChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE expires_at <= ?`, millis(now))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
