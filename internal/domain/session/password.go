package session

import (
	"context"
	"errors"
	"strings"
)

const MinPasswordLength = 8

const (
	msgPasswordTooShort = "Password must be at least 8 characters long"
	msgPasswordMismatch = "Passwords don't match"
	msgEmailRequired    = "Email is required"
	msgCodeRequired     = "Verification code is required"
)

type ChangePasswordInput struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ResetPasswordInput struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ValidateNewPassword runs the checks every password form performs before it
// talks to the server.
func ValidateNewPassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return validationFailure(msgPasswordTooShort)
	}
	if password != confirm {
		return validationFailure(msgPasswordMismatch)
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, role Role, in ChangePasswordInput) error {
	if err := ValidateNewPassword(in.NewPassword, in.ConfirmPassword); err != nil {
		s.Store.ApplyError(role, Message(err))
		return err
	}
	sess := s.Store.Session()
	if !sess.Authenticated(role) {
		return ErrNotAuthenticated
	}
	if s.API == nil {
		return networkFailure(nil)
	}
	wasUnverified := sess.State(role) == StateUnverified

	// The endpoint answers a wrong old password with a validation error, so an
	// invalid-credentials answer means the bearer token was refused.
	err := s.API.ChangePassword(ctx, sess.Tokens(role).Access, in)
	if errors.Is(err, ErrInvalidCredentials) {
		s.record(EventAuthFailure)
		tokens, rerr := s.RefreshToken(ctx, role)
		if rerr != nil {
			s.expireAfterAuthFailure(role, wasUnverified, rerr)
			return classify(rerr)
		}
		err = s.API.ChangePassword(ctx, tokens.Access, in)
		if errors.Is(err, ErrInvalidCredentials) {
			s.Logout(ctx, role)
			return classify(err)
		}
	}
	if err != nil {
		err = classify(err)
		s.Store.ApplyError(role, Message(err))
		return err
	}
	s.Store.ApplyVerified(role)
	s.Store.ApplyError(role, "")
	return nil
}

func (s *Service) ForgetPassword(ctx context.Context, role Role, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return s.fail(role, validationFailure(msgEmailRequired))
	}
	return s.call(role, func() error { return s.API.ForgetPassword(ctx, email) })
}

func (s *Service) VerifyForgetPasswordCode(ctx context.Context, role Role, email, code string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return s.fail(role, validationFailure(msgEmailRequired))
	}
	if code == "" {
		return s.fail(role, validationFailure(msgCodeRequired))
	}
	return s.call(role, func() error { return s.API.VerifyForgetPasswordCode(ctx, email, code) })
}

func (s *Service) ResetPassword(ctx context.Context, role Role, in ResetPasswordInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return s.fail(role, validationFailure(msgEmailRequired))
	}
	if err := ValidateNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return s.fail(role, err)
	}
	return s.call(role, func() error { return s.API.ResetPassword(ctx, in) })
}

func (s *Service) ResendVerificationCode(ctx context.Context, role Role, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return s.fail(role, validationFailure(msgEmailRequired))
	}
	return s.call(role, func() error { return s.API.ResendVerificationCode(ctx, email) })
}

func (s *Service) call(role Role, fn func() error) error {
	if s.API == nil {
		return s.fail(role, networkFailure(nil))
	}
	if err := fn(); err != nil {
		return s.fail(role, classify(err))
	}
	s.Store.ApplyError(role, "")
	return nil
}

func (s *Service) fail(role Role, err error) error {
	s.Store.ApplyError(role, Message(err))
	return err
}
