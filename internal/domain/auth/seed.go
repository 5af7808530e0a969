package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hrmportal/internal/domain/session"
)

// DefaultAccounts are the development logins. admin@example.com is the super
// admin.
func DefaultAccounts() []Account {
	return []Account{
		{Email: "admin@example.com", Kind: KindAdmin, Name: "System Administrator", AdminRole: session.RoleSuperAdmin},
		{Email: "hr@example.com", Kind: KindAdmin, Name: "HR Administrator", AdminRole: session.RoleAdmin},
		{Email: "employee@example.com", Kind: KindUser, Name: "Emma Employee", Designation: "Software Engineer", Department: "Engineering", PermissionLevel: 1},
		{Email: "lead@example.com", Kind: KindUser, Name: "Liam Lead", Designation: "Team Lead", Department: "Engineering", PermissionLevel: 2},
		{Email: "manager@example.com", Kind: KindUser, Name: "Maya Manager", Designation: "Engineering Manager", Department: "Engineering", PermissionLevel: 3},
	}
}

// Seed creates missing accounts with the given password. Existing accounts
// keep their password.
func Seed(ctx context.Context, store StoreAPI, accounts []Account, password string) (int, error) {
	if password == "" {
		return 0, errors.New("seed password is required")
	}
	created := 0
	for _, a := range accounts {
		_, err := store.AccountByEmail(ctx, a.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, err
		}
		hash, err := HashPassword(password)
		if err != nil {
			return created, err
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.PasswordHash = hash
		if err := store.CreateAccount(ctx, a); err != nil {
			return created, fmt.Errorf("seed %s: %w", a.Email, err)
		}
		created++
	}
	return created, nil
}
