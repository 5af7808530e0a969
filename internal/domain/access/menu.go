package access

import "hrmportal/internal/domain/session"

// Permission tiers carried on a user identity.
const (
	LevelEmployee = 1
	LevelLead     = 2
	LevelManager  = 3
)

type MenuItem struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Path     string `json:"path"`
	MinLevel int    `json:"minLevel,omitempty"`
}

var UserMenu = []MenuItem{
	{Key: "dashboard", Label: "Dashboard", Path: "/user/dashboard"},
	{Key: "attendance", Label: "Attendance", Path: "/user/attendance"},
	{Key: "leave", Label: "Leave", Path: "/user/leave"},
	{Key: "directory", Label: "Employee Directory", Path: "/user/directory"},
	{Key: "holidays", Label: "Holidays", Path: "/user/holidays"},
	{Key: "team", Label: "My Team", Path: "/user/team", MinLevel: LevelLead},
	{Key: "approvals", Label: "Leave Approvals", Path: "/user/approvals", MinLevel: LevelLead},
	{Key: "reports", Label: "Reports", Path: "/user/reports", MinLevel: LevelManager},
	{Key: "change-password", Label: "Change Password", Path: "/user/change-password"},
}

var AdminMenu = []MenuItem{
	{Key: "dashboard", Label: "Dashboard", Path: "/admin/dashboard"},
	{Key: "employees", Label: "Employees", Path: "/admin/employees"},
	{Key: "attendance", Label: "Attendance", Path: "/admin/attendance"},
	{Key: "leave", Label: "Leave Requests", Path: "/admin/leave"},
	{Key: "holidays", Label: "Holidays", Path: "/admin/holidays"},
	{Key: "teams", Label: "Teams", Path: "/admin/teams"},
	{Key: "admins", Label: "Administrators", Path: "/admin/admins"},
	{Key: "settings", Label: "Settings", Path: "/admin/settings"},
	{Key: "change-password", Label: "Change Password", Path: "/admin/change-password"},
}

// Menu returns the items the role may reach, using the same policy the guard
// enforces so a visible item never leads to a redirect.
func (p Policy) Menu(role session.Role, sess session.Session) []MenuItem {
	items := UserMenu
	if role.Slot() == session.RoleAdmin {
		items = AdminMenu
	}
	if !sess.Authenticated(role) {
		return nil
	}
	out := make([]MenuItem, 0, len(items))
	for _, item := range items {
		if p.Decide(item.Path, sess) == Allow {
			out = append(out, item)
		}
	}
	return out
}
