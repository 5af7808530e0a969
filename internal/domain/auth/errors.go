package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionExpired     = errors.New("session expired")
	ErrUnauthorized       = errors.New("authentication required")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrWeakPassword       = errors.New("password must be at least 8 characters long")
	ErrPasswordMismatch   = errors.New("passwords don't match")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrCodeNotVerified    = errors.New("verification code has not been verified")
	ErrTooManyAttempts    = errors.New("too many attempts, request a new code")
)
