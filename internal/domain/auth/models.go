package auth

import (
	"time"

	"hrmportal/internal/domain/session"
)

type AccountKind string

const (
	KindUser  AccountKind = "user"
	KindAdmin AccountKind = "admin"
)

type Account struct {
	ID              string
	Email           string
	PasswordHash    string
	Kind            AccountKind
	Name            string
	Designation     string
	Department      string
	PermissionLevel int
	AdminRole       session.Role
	LastLogin       *time.Time
}

// Profile is the user identity the login endpoint returns.
func (a Account) Profile() session.User {
	return session.User{
		ID:              a.ID,
		Name:            a.Name,
		Designation:     a.Designation,
		Department:      a.Department,
		PermissionLevel: a.PermissionLevel,
	}
}

// Admin is the admin identity the admin-login endpoint returns.
func (a Account) Admin() session.Admin {
	role := a.AdminRole
	if role == "" {
		role = session.RoleAdmin
	}
	return session.Admin{ID: a.ID, FullName: a.Name, Email: a.Email, Role: role}
}

// RefreshSession is one issued refresh token. Only its hash is stored.
type RefreshSession struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (s RefreshSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

type ResetCode struct {
	AccountID  string
	CodeHash   string
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	Attempts   int
}

// Grant is what a successful login or refresh hands back.
type Grant struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
	Account        Account
}
