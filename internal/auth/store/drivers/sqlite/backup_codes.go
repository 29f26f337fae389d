package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
)

type backupCodesRepo struct {
	db dbtx
}

func (r *backupCodesRepo) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) error {
	if err := r.DeleteAllBackupCodes(ctx, userID); err != nil {
		return err
	}
	for i, h := range hashes {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO backup_codes (user_id, position, code_hash, used, created_at) VALUES (?, ?, ?, 0, ?)`,
			userID, i, h, millis(at))
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r *backupCodesRepo) ListBackupCodes(ctx context.Context, userID string) ([]domain.BackupCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, code_hash, used, used_at, created_at
		FROM backup_codes WHERE user_id = ? ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.BackupCode
	for rows.Next() {
		var (
			c         domain.BackupCode
			usedAt    sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&c.Position, &c.CodeHash, &c.Used, &usedAt, &createdAt); err != nil {
			return nil, mapErr(err)
		}
		c.UsedAt = timePtr(usedAt)
		c.CreatedAt = fromMillis(createdAt)
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

// ClaimBackupCode is a single conditional UPDATE; the used = 0 predicate
// makes concurrent claims of the same code race on the row lock and only
// one of them changes a row.
func (r *backupCodesRepo) ClaimBackupCode(ctx context.Context, userID, hash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE backup_codes SET used = 1, used_at = ?
		WHERE user_id = ? AND code_hash = ? AND used = 0`,
		millis(at), userID, hash,
	)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *backupCodesRepo) CountUnusedBackupCodes(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE user_id = ? AND used = 0`, userID).Scan(&n)
	return n, mapErr(err)
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = ?`, userID)
	return mapErr(err)
}
