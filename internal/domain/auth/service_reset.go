package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ForgetPassword mails a fresh verification code. Unknown addresses succeed
// silently so the endpoint cannot be used to probe for accounts.
func (s *Service) ForgetPassword(ctx context.Context, email string) error {
	account, err := s.Store.AccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		slog.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	return s.issueCode(ctx, account)
}

// ResendVerificationCode replaces any pending code with a new one.
func (s *Service) ResendVerificationCode(ctx context.Context, email string) error {
	return s.ForgetPassword(ctx, email)
}

func (s *Service) issueCode(ctx context.Context, account Account) error {
	code, err := newCode()
	if err != nil {
		return err
	}
	record := ResetCode{
		AccountID: account.ID,
		CodeHash:  HashToken(code),
		ExpiresAt: s.now().Add(s.CodeTTL),
	}
	if err := s.Store.SaveResetCode(ctx, record); err != nil {
		return fmt.Errorf("save reset code: %w", err)
	}
	if s.Codes == nil {
		return nil
	}
	if err := s.Codes.SendVerificationCode(ctx, account.Email, code, s.CodeTTL); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// VerifyForgetPasswordCode marks the pending code verified when it matches.
func (s *Service) VerifyForgetPasswordCode(ctx context.Context, email, code string) error {
	account, record, err := s.pendingCode(ctx, email)
	if err != nil {
		return err
	}
	if record.CodeHash != HashToken(strings.TrimSpace(code)) {
		record.Attempts++
		if err := s.Store.SaveResetCode(ctx, record); err != nil {
			return err
		}
		return ErrInvalidCode
	}
	now := s.now()
	record.VerifiedAt = &now
	if err := s.Store.SaveResetCode(ctx, record); err != nil {
		return err
	}
	slog.Info("verification code accepted", "accountId", account.ID)
	return nil
}

// ResetPassword sets a new password once the code has been verified. The code
// is consumed and every session of the account ends.
func (s *Service) ResetPassword(ctx context.Context, email, code, password, confirm string) error {
	if err := validatePassword(password, confirm); err != nil {
		return err
	}
	account, record, err := s.pendingCode(ctx, email)
	if err != nil {
		return err
	}
	if record.CodeHash != HashToken(strings.TrimSpace(code)) {
		return ErrInvalidCode
	}
	if record.VerifiedAt == nil {
		return ErrCodeNotVerified
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.Store.UpdatePassword(ctx, account.ID, hash); err != nil {
		return err
	}
	if err := s.Store.DeleteResetCode(ctx, account.ID); err != nil {
		return err
	}
	return s.Store.RevokeAccountSessions(ctx, account.ID, "", s.now())
}

func (s *Service) pendingCode(ctx context.Context, email string) (Account, ResetCode, error) {
	account, err := s.Store.AccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return Account{}, ResetCode{}, ErrInvalidCode
	}
	if err != nil {
		return Account{}, ResetCode{}, err
	}
	record, err := s.Store.ResetCodeFor(ctx, account.ID)
	if errors.Is(err, ErrNotFound) {
		return Account{}, ResetCode{}, ErrInvalidCode
	}
	if err != nil {
		return Account{}, ResetCode{}, err
	}
	if !s.now().Before(record.ExpiresAt) {
		return Account{}, ResetCode{}, ErrCodeExpired
	}
	if record.Attempts >= maxCodeAttempts {
		return Account{}, ResetCode{}, ErrTooManyAttempts
	}
	return account, record, nil
}
