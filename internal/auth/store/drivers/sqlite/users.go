package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/domain"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/aussiebroadwan/workbench/pkg/cryptox"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, name, password_hash, password_history,
	external_provider, external_subject, verified, active, role,
	mfa_enabled, mfa_secret_ciphertext, mfa_secret_iv, mfa_secret_tag,
	mfa_setup_at, mfa_last_used_at, version, created_at, updated_at`

func scanUser(row scanner) (domain.User, error) {
	var (
		u                    domain.User
		history, role        string
		ciphertext, iv, tag  []byte
		setupAt, lastUsedAt  sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &history,
		&u.ExternalProvider, &u.ExternalSubject, &u.Verified, &u.Active, &role,
		&u.MFA.Enabled, &ciphertext, &iv, &tag,
		&setupAt, &lastUsedAt, &u.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.User{}, mapErr(err)
	}

	if err := json.Unmarshal([]byte(history), &u.PasswordHistory); err != nil {
		return domain.User{}, fmt.Errorf("decode password history: %w", err)
	}
	u.Role = domain.Role(role)
	if ciphertext != nil {
		u.MFA.Secret = &cryptox.Envelope{Ciphertext: ciphertext, IV: iv, Tag: tag}
	}
	u.MFA.SetupAt = timePtr(setupAt)
	u.MFA.LastUsedAt = timePtr(lastUsedAt)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`,
		domain.NormalizeEmail(email))
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	history, err := encodeHistory(u.PasswordHistory)
	if err != nil {
		return err
	}

	now := millis(u.CreatedAt)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, name, password_hash, password_history,
			external_provider, external_subject, verified, active, role,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		u.ID, domain.NormalizeEmail(u.Email), u.Name, u.PasswordHash, history,
		u.ExternalProvider, u.ExternalSubject, boolInt(u.Verified), boolInt(u.Active), string(u.Role),
		now, now,
	)
	return mapErr(err)
}

func (r *usersRepo) UpdatePassword(
	ctx context.Context,
	userID string,
	expectedVersion int64,
	hash string,
	history []string,
	at time.Time,
) error {
	encoded, err := encodeHistory(history)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?, password_history = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		hash, encoded, millis(at), userID, expectedVersion,
	)
	if err := requireOne(res, err); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// distinguish a missing user from a lost race
			if _, gerr := r.GetUserByID(ctx, userID); gerr == nil {
				return store.ErrConflict
			}
		}
		return err
	}
	return nil
}

func (r *usersRepo) SetVerified(ctx context.Context, userID string, verified bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET verified = ?, updated_at = ? WHERE id = ?`,
		boolInt(verified), millis(at), userID)
	return requireOne(res, err)
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), millis(at), userID)
	return requireOne(res, err)
}

func (r *usersRepo) SetRole(ctx context.Context, userID string, role domain.Role, at time.Time) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), millis(at), userID)
	return requireOne(res, err)
}

func (r *usersRepo) CountActiveAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ? AND active = 1`, string(domain.RoleAdmin),
	).Scan(&n)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string, secret cryptox.Envelope, at time.Time) error {
	if secret.IsZero() {
		return domain.ErrMFAInconsistent
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET mfa_enabled = 1, mfa_secret_ciphertext = ?, mfa_secret_iv = ?, mfa_secret_tag = ?,
		    mfa_setup_at = ?, mfa_last_used_at = NULL, updated_at = ?
		WHERE id = ?`,
		secret.Ciphertext, secret.IV, secret.Tag, millis(at), millis(at), userID,
	)
	return requireOne(res, err)
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET mfa_enabled = 0, mfa_secret_ciphertext = NULL, mfa_secret_iv = NULL, mfa_secret_tag = NULL,
		    mfa_setup_at = NULL, mfa_last_used_at = NULL, updated_at = ?
		WHERE id = ?`,
		millis(at), userID,
	)
	return requireOne(res, err)
}

func (r *usersRepo) TouchMFA(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET mfa_last_used_at = ? WHERE id = ? AND mfa_enabled = 1`,
		millis(at), userID)
	return requireOne(res, err)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, mapErr(err)
	}
	return n == 0, nil
}

func encodeHistory(history []string) (string, error) {
	if history == nil {
		history = []string{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encode password history: %w", err)
	}
	return string(b), nil
}
