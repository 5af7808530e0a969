package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	minPasswordLength = 8
	maxCodeAttempts   = 5
)

type CodeSender interface {
	SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error
}

type Service struct {
	Store      StoreAPI
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CodeTTL    time.Duration
	Codes      CodeSender
	Now        func() time.Time
}

func NewService(store StoreAPI, secret string) *Service {
	return &Service{
		Store:      store,
		Secret:     secret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		CodeTTL:    15 * time.Minute,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login authenticates an account of the given kind. Accounts of the other kind
// are rejected with the same error as a wrong password.
func (s *Service) Login(ctx context.Context, kind AccountKind, email, password string) (Grant, error) {
	account, err := s.Store.AccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return Grant{}, ErrInvalidCredentials
	}
	if err != nil {
		return Grant{}, err
	}
	if account.Kind != kind {
		return Grant{}, ErrInvalidCredentials
	}
	if err := CheckPassword(account.PasswordHash, password); err != nil {
		return Grant{}, ErrInvalidCredentials
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return Grant{}, err
	}
	now := s.now()
	rs := RefreshSession{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: now.Add(s.RefreshTTL),
	}
	if err := s.Store.CreateSession(ctx, rs); err != nil {
		return Grant{}, fmt.Errorf("create session: %w", err)
	}
	if err := s.Store.UpdateLastLogin(ctx, account.ID, now); err != nil {
		slog.Warn("update last_login failed", "accountId", account.ID, "err", err)
	}
	return s.grant(account, rs, refresh, now)
}

// Refresh rotates a refresh token. The presented token stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Grant, error) {
	if refreshToken == "" {
		return Grant{}, ErrSessionExpired
	}
	rs, err := s.Store.SessionByToken(ctx, HashToken(refreshToken))
	if errors.Is(err, ErrNotFound) {
		return Grant{}, ErrSessionExpired
	}
	if err != nil {
		return Grant{}, err
	}
	now := s.now()
	if !rs.Active(now) {
		return Grant{}, ErrSessionExpired
	}
	account, err := s.Store.AccountByID(ctx, rs.AccountID)
	if err != nil {
		return Grant{}, ErrSessionExpired
	}

	next, err := newRefreshToken()
	if err != nil {
		return Grant{}, err
	}
	rs.TokenHash = HashToken(next)
	rs.ExpiresAt = now.Add(s.RefreshTTL)
	if err := s.Store.RotateSession(ctx, rs.ID, rs.TokenHash, rs.ExpiresAt); err != nil {
		return Grant{}, fmt.Errorf("rotate session: %w", err)
	}
	return s.grant(account, rs, next, now)
}

func (s *Service) grant(account Account, rs RefreshSession, refresh string, now time.Time) (Grant, error) {
	claims := Claims{AccountID: account.ID, Kind: account.Kind, SessionID: rs.ID}
	if account.Kind == KindAdmin {
		claims.Role = string(account.Admin().Role)
	}
	access, expires, err := GenerateToken(s.Secret, claims, now, s.AccessTTL)
	if err != nil {
		return Grant{}, fmt.Errorf("issue token: %w", err)
	}
	return Grant{
		AccessToken:    access,
		AccessExpires:  expires,
		RefreshToken:   refresh,
		RefreshExpires: rs.ExpiresAt,
		Account:        account,
	}, nil
}

// Authenticate validates an access token and the session behind it.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := ParseToken(s.Secret, accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	rs, err := s.Store.SessionByID(ctx, claims.SessionID)
	if err != nil || !rs.Active(s.now()) {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Logout revokes the session named by either token. Unknown tokens are not an
// error.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	now := s.now()
	if accessToken != "" {
		if claims, err := ParseToken(s.Secret, accessToken); err == nil {
			return s.Store.RevokeSession(ctx, claims.SessionID, now)
		}
	}
	if refreshToken != "" {
		rs, err := s.Store.SessionByToken(ctx, HashToken(refreshToken))
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.Store.RevokeSession(ctx, rs.ID, now)
	}
	return nil
}

func (s *Service) Account(ctx context.Context, id string) (Account, error) {
	return s.Store.AccountByID(ctx, id)
}

func validatePassword(password, confirm string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// ChangePassword replaces the password and ends every session of the account
// except the caller's.
func (s *Service) ChangePassword(ctx context.Context, claims *Claims, oldPassword, newPassword, confirm string) error {
	if err := validatePassword(newPassword, confirm); err != nil {
		return err
	}
	account, err := s.Store.AccountByID(ctx, claims.AccountID)
	if err != nil {
		return ErrUnauthorized
	}
	if err := CheckPassword(account.PasswordHash, oldPassword); err != nil {
		return ErrWrongPassword
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Store.UpdatePassword(ctx, account.ID, hash); err != nil {
		return err
	}
	return s.Store.RevokeAccountSessions(ctx, account.ID, claims.SessionID, s.now())
}

// Cleanup drops sessions and reset codes that can no longer be used.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	return s.Store.PurgeExpired(ctx, s.now())
}
