package sqlite

import (
	"context"
	"time"
)

type mfaAttemptsRepo struct {
	db dbtx
}

func (r *mfaAttemptsRepo) GetMFAFailures(ctx context.Context, userID string) (int, time.Time, error) {
	var (
		failures    int
		windowStart int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT failures, window_start FROM mfa_attempts WHERE user_id = ?`, userID,
	).Scan(&failures, &windowStart)
	if err != nil {
		return 0, time.Time{}, mapErr(err)
	}
	return failures, fromMillis(windowStart), nil
}

// RecordMFAFailure is one upsert so concurrent failures never lose a count.
func (r *mfaAttemptsRepo) RecordMFAFailure(ctx context.Context, userID string, now, windowStartBefore time.Time) (int, error) {
	var failures int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO mfa_attempts (user_id, failures, window_start, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			failures = CASE WHEN mfa_attempts.window_start <= ? THEN 1 ELSE mfa_attempts.failures + 1 END,
			window_start = CASE WHEN mfa_attempts.window_start <= ? THEN excluded.window_start ELSE mfa_attempts.window_start END,
			updated_at = excluded.updated_at
		RETURNING failures`,
		userID, millis(now), millis(now),
		millis(windowStartBefore), millis(windowStartBefore),
	).Scan(&failures)
	return failures, mapErr(err)
}

func (r *mfaAttemptsRepo) ResetMFAFailures(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_attempts WHERE user_id = ?`, userID)
	return mapErr(err)
}

func (r *mfaAttemptsRepo) DeleteMFAFailuresBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_attempts WHERE window_start < ?`, millis(t))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
