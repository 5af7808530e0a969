package session

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Slot maps a role onto the field group it owns. Admins and super admins share
// the admin slot.
func (r Role) Slot() Role {
	if r == RoleAdmin || r == RoleSuperAdmin {
		return RoleAdmin
	}
	return RoleUser
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func ParseRole(value string) (Role, bool) {
	role := Role(value)
	if value == "superadmin" || value == "super-admin" {
		role = RoleSuperAdmin
	}
	return role, role.Valid()
}

type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Designation     string `json:"designation"`
	Department      string `json:"department"`
	PermissionLevel int    `json:"permissionLevel"`
}

type Admin struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Identity carries exactly one of User or Admin, matching the role it is
// applied to.
type Identity struct {
	User  *User
	Admin *Admin
}

type Tokens struct {
	Access         string    `json:"access"`
	Refresh        string    `json:"refresh"`
	AccessExpires  time.Time `json:"accessExpires,omitempty"`
	RefreshExpires time.Time `json:"refreshExpires,omitempty"`
}

// State tags how much the current slot contents can be trusted.
type State int

const (
	StateNone State = iota
	StateUnverified
	StateVerified
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StateVerified:
		return "verified"
	case StateInvalid:
		return "invalid"
	default:
		return "none"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is a read-only snapshot of the process-wide authentication state.
type Session struct {
	User                 *User  `json:"user,omitempty"`
	Admin                *Admin `json:"admin,omitempty"`
	IsAuthenticatedUser  bool   `json:"isAuthenticatedUser"`
	IsAuthenticatedAdmin bool   `json:"isAuthenticatedAdmin"`
	UserToken            string `json:"-"`
	UserRefreshToken     string `json:"-"`
	AdminToken           string `json:"-"`
	AdminRefreshToken    string `json:"-"`
	LoadingUser          bool   `json:"loadingUser"`
	LoadingAdmin         bool   `json:"loadingAdmin"`
	ErrorUser            string `json:"errorUser,omitempty"`
	ErrorAdmin           string `json:"errorAdmin,omitempty"`
	UserState            State  `json:"userState"`
	AdminState           State  `json:"adminState"`
}

func (s Session) Authenticated(role Role) bool {
	if role.Slot() == RoleAdmin {
		return s.IsAuthenticatedAdmin
	}
	return s.IsAuthenticatedUser
}

func (s Session) Tokens(role Role) Tokens {
	if role.Slot() == RoleAdmin {
		return Tokens{Access: s.AdminToken, Refresh: s.AdminRefreshToken}
	}
	return Tokens{Access: s.UserToken, Refresh: s.UserRefreshToken}
}

func (s Session) State(role Role) State {
	if role.Slot() == RoleAdmin {
		return s.AdminState
	}
	return s.UserState
}

func (s Session) Error(role Role) string {
	if role.Slot() == RoleAdmin {
		return s.ErrorAdmin
	}
	return s.ErrorUser
}

// AdminRole reports the active admin role, or "" without an admin session.
func (s Session) AdminRole() Role {
	if !s.IsAuthenticatedAdmin || s.Admin == nil {
		return ""
	}
	return s.Admin.Role
}

// PermissionLevel returns the active user's tier, or 0 without a user session.
func (s Session) PermissionLevel() int {
	if !s.IsAuthenticatedUser || s.User == nil {
		return 0
	}
	return s.User.PermissionLevel
}
