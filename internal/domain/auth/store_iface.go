package auth

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type StoreAPI interface {
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
	CreateAccount(ctx context.Context, account Account) error
	UpdatePassword(ctx context.Context, accountID, hash string) error
	UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error

	CreateSession(ctx context.Context, s RefreshSession) error
	SessionByID(ctx context.Context, id string) (RefreshSession, error)
	SessionByToken(ctx context.Context, tokenHash string) (RefreshSession, error)
	RotateSession(ctx context.Context, id, newHash string, expires time.Time) error
	RevokeSession(ctx context.Context, id string, at time.Time) error
	RevokeAccountSessions(ctx context.Context, accountID, keepID string, at time.Time) error

	SaveResetCode(ctx context.Context, code ResetCode) error
	ResetCodeFor(ctx context.Context, accountID string) (ResetCode, error)
	DeleteResetCode(ctx context.Context, accountID string) error

	// PurgeExpired deletes sessions that expired or were revoked before the
	// cutoff and reset codes that expired before it.
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}
