package session

import (
	"context"
	"errors"
)

type Kind int

const (
	KindInvalidCredentials Kind = iota + 1
	KindNetworkFailure
	KindValidationFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNetworkFailure:
		return "network_failure"
	case KindValidationFailure:
		return "validation_failure"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Invalid email or password"}
	ErrNetworkFailure     = &Error{Kind: KindNetworkFailure, Message: "Unable to reach the authentication service"}
	ErrValidationFailure  = &Error{Kind: KindValidationFailure, Message: "Invalid input"}

	ErrNotAuthenticated = errors.New("role is not authenticated")
	ErrIdentityMismatch = errors.New("identity does not match role")
	ErrMissingToken     = errors.New("access token is required")
	ErrInvalidRole      = errors.New("unknown role")
	ErrSessionReplaced  = errors.New("session changed while the request was in flight")
)

// Error is the failure surfaced to views. Message is what lands in the role's
// error field.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can use errors.Is(err, ErrValidationFailure).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func invalidCredentials(message string, err error) *Error {
	if message == "" {
		message = ErrInvalidCredentials.Message
	}
	return &Error{Kind: KindInvalidCredentials, Message: message, Err: err}
}

func networkFailure(err error) *Error {
	return &Error{Kind: KindNetworkFailure, Message: ErrNetworkFailure.Message, Err: err}
}

func validationFailure(message string) *Error {
	return &Error{Kind: KindValidationFailure, Message: message}
}

// transient reports failures that say nothing about the session itself, such
// as a caller giving up or a renewal timing out.
func transient(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Message extracts the view-facing message of err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	if err == nil {
		return ""
	}
	return ErrNetworkFailure.Message
}

// NewError builds a typed failure. An empty message falls back to the kind's
// default text.
func NewError(kind Kind, message string, err error) *Error {
	switch kind {
	case KindInvalidCredentials:
		return invalidCredentials(message, err)
	case KindValidationFailure:
		if message == "" {
			message = ErrValidationFailure.Message
		}
		return &Error{Kind: kind, Message: message, Err: err}
	default:
		if message == "" {
			message = ErrNetworkFailure.Message
		}
		return &Error{Kind: KindNetworkFailure, Message: message, Err: err}
	}
}
