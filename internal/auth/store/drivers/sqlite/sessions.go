package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, refresh_token_hash, access_token_id, ip, user_agent,
	active, expires_at, last_accessed_at, created_at`

func scanSession(row scanner) (domain.Session, error) {
	var s domain.Session
	var expiresAt, lastAccessed, createdAt int64
	err := row.Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash, &s.AccessTokenID, &s.IP, &s.UserAgent,
		&s.Active, &expiresAt, &lastAccessed, &createdAt,
	)
	if err != nil {
		return domain.Session{}, mapErr(err)
	}
	s.ExpiresAt = fromMillis(expiresAt)
	s.LastAccessedAt = fromMillis(lastAccessed)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash, access_token_id, ip, user_agent,
			active, expires_at, last_accessed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.RefreshTokenHash, s.AccessTokenID, s.IP, s.UserAgent,
		boolInt(s.Active), millis(s.ExpiresAt), millis(s.LastAccessedAt), millis(s.CreatedAt),
	)
	return mapErr(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (r *sessionsRepo) GetSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, hash)
	return scanSession(row)
}

func (r *sessionsRepo) ListActiveSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND active = 1 AND expires_at > ?
		ORDER BY created_at DESC, id DESC`,
		userID, millis(now),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}

func (r *sessionsRepo) DeactivateSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE id = ?`, id)
	return mapErr(err)
}

func (r *sessionsRepo) DeactivateUserSessions(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE user_id = ? AND active = 1`, userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id, accessTokenID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET access_token_id = ?, last_accessed_at = ?
		WHERE id = ? AND active = 1`,
		accessTokenID, millis(at), id,
	)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *sessionsRepo) DeleteStaleSessions(ctx context.Context, now, inactiveBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expires_at <= ? OR (active = 0 AND last_accessed_at < ?)`,
		millis(now), millis(inactiveBefore),
	)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
