package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrmportal/internal/domain/session"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const accountColumns = `id, email, password_hash, kind, name, designation, department, permission_level, admin_role, last_login`

func scanAccount(row pgx.Row) (Account, error) {
	var out Account
	var kind, role string
	err := row.Scan(&out.ID, &out.Email, &out.PasswordHash, &kind, &out.Name, &out.Designation, &out.Department, &out.PermissionLevel, &role, &out.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	out.Kind = AccountKind(kind)
	out.AdminRole = session.Role(role)
	return out, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (Account, error) {
	return scanAccount(s.DB.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = $1`, strings.ToLower(email)))
}

func (s *Store) AccountByID(ctx context.Context, id string) (Account, error) {
	return scanAccount(s.DB.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *Store) CreateAccount(ctx context.Context, a Account) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO accounts (id, email, password_hash, kind, name, designation, department, permission_level, admin_role)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, a.ID, strings.ToLower(a.Email), a.PasswordHash, string(a.Kind), a.Name, a.Designation, a.Department, a.PermissionLevel, string(a.AdminRole))
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, accountID, hash string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE accounts SET password_hash = $1 WHERE id = $2", hash, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE accounts SET last_login = $1 WHERE id = $2", at, accountID)
	return err
}

func scanSession(row pgx.Row) (RefreshSession, error) {
	var out RefreshSession
	err := row.Scan(&out.ID, &out.AccountID, &out.TokenHash, &out.ExpiresAt, &out.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RefreshSession{}, ErrNotFound
	}
	return out, err
}

func (s *Store) CreateSession(ctx context.Context, rs RefreshSession) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO sessions (id, account_id, refresh_token, expires_at)
    VALUES ($1,$2,$3,$4)
  `, rs.ID, rs.AccountID, rs.TokenHash, rs.ExpiresAt)
	return err
}

func (s *Store) SessionByID(ctx context.Context, id string) (RefreshSession, error) {
	return scanSession(s.DB.QueryRow(ctx, `
    SELECT id, account_id, refresh_token, expires_at, revoked_at FROM sessions WHERE id = $1
  `, id))
}

func (s *Store) SessionByToken(ctx context.Context, tokenHash string) (RefreshSession, error) {
	return scanSession(s.DB.QueryRow(ctx, `
    SELECT id, account_id, refresh_token, expires_at, revoked_at FROM sessions WHERE refresh_token = $1
  `, tokenHash))
}

func (s *Store) RotateSession(ctx context.Context, id, newHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE sessions
    SET refresh_token = $1, expires_at = $2, rotated_at = now()
    WHERE id = $3 AND revoked_at IS NULL
  `, newHash, expires, id)
	return err
}

func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL", at, id)
	return err
}

func (s *Store) RevokeAccountSessions(ctx context.Context, accountID, keepID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE sessions SET revoked_at = $1
    WHERE account_id = $2 AND id::text <> $3 AND revoked_at IS NULL
  `, at, accountID, keepID)
	return err
}

func (s *Store) SaveResetCode(ctx context.Context, code ResetCode) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO password_resets (account_id, code_hash, expires_at, verified_at, attempts)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (account_id) DO UPDATE
    SET code_hash = excluded.code_hash, expires_at = excluded.expires_at,
        verified_at = excluded.verified_at, attempts = excluded.attempts
  `, code.AccountID, code.CodeHash, code.ExpiresAt, code.VerifiedAt, code.Attempts)
	return err
}

func (s *Store) ResetCodeFor(ctx context.Context, accountID string) (ResetCode, error) {
	var out ResetCode
	err := s.DB.QueryRow(ctx, `
    SELECT account_id, code_hash, expires_at, verified_at, attempts
    FROM password_resets
    WHERE account_id = $1
  `, accountID).Scan(&out.AccountID, &out.CodeHash, &out.ExpiresAt, &out.VerifiedAt, &out.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return ResetCode{}, ErrNotFound
	}
	return out, err
}

func (s *Store) DeleteResetCode(ctx context.Context, accountID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM password_resets WHERE account_id = $1", accountID)
	return err
}

func (s *Store) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sessions, err := tx.Exec(ctx, "DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	codes, err := tx.Exec(ctx, "DELETE FROM password_resets WHERE expires_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("purge reset codes: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(sessions.RowsAffected() + codes.RowsAffected()), nil
}
