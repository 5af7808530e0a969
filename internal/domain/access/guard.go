package access

import (
	"path"
	"strings"

	"hrmportal/internal/domain/session"
)

type Decision int

const (
	Allow Decision = iota
	RedirectToUserLogin
	RedirectToAdminLogin
	RedirectToUserHome
	RedirectToAdminHome
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToUserLogin:
		return "redirect_user_login"
	case RedirectToAdminLogin:
		return "redirect_admin_login"
	case RedirectToUserHome:
		return "redirect_user_home"
	case RedirectToAdminHome:
		return "redirect_admin_home"
	default:
		return "unknown"
	}
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Area int

const (
	AreaOther Area = iota
	AreaPublicUser
	AreaPublicAdmin
	AreaUser
	AreaAdmin
)

// Rule gates a sub-route on top of the area check.
type Rule struct {
	Prefix   string
	MinLevel int
	Role     session.Role
}

type Policy struct {
	UserPrefix  string
	AdminPrefix string
	UserLogin   string
	AdminLogin  string
	UserHome    string
	AdminHome   string
	PublicUser  []string
	PublicAdmin []string
	Rules       []Rule
}

func DefaultPolicy() Policy {
	return Policy{
		UserPrefix:  "/user",
		AdminPrefix: "/admin",
		UserLogin:   "/login",
		AdminLogin:  "/admin/login",
		UserHome:    "/user/dashboard",
		AdminHome:   "/admin/dashboard",
		PublicUser:  []string{"/login", "/forgot-password", "/verify-code", "/reset-password"},
		PublicAdmin: []string{"/admin/login", "/admin/forgot-password", "/admin/verify-code", "/admin/reset-password"},
		Rules: []Rule{
			{Prefix: "/user/team", MinLevel: LevelLead},
			{Prefix: "/user/approvals", MinLevel: LevelLead},
			{Prefix: "/user/reports", MinLevel: LevelManager},
			{Prefix: "/admin/settings", Role: session.RoleSuperAdmin},
			{Prefix: "/admin/admins", Role: session.RoleSuperAdmin},
		},
	}
}

func (p Policy) Classify(target string) Area {
	clean := cleanPath(target)
	if matchesAny(clean, p.PublicAdmin) {
		return AreaPublicAdmin
	}
	if matchesAny(clean, p.PublicUser) {
		return AreaPublicUser
	}
	if under(clean, p.AdminPrefix) {
		return AreaAdmin
	}
	if under(clean, p.UserPrefix) {
		return AreaUser
	}
	return AreaOther
}

// Decide evaluates one navigation against the current session. Restored
// sessions that are still Unverified are let through; the first protected call
// confirms or tears them down.
func (p Policy) Decide(target string, sess session.Session) Decision {
	clean := cleanPath(target)
	switch p.Classify(clean) {
	case AreaPublicUser:
		if sess.IsAuthenticatedUser {
			return RedirectToUserHome
		}
		return Allow
	case AreaPublicAdmin:
		if sess.IsAuthenticatedAdmin {
			return RedirectToAdminHome
		}
		return Allow
	case AreaUser:
		if !sess.IsAuthenticatedUser {
			return RedirectToUserLogin
		}
		if rule, ok := p.rule(clean); ok && sess.PermissionLevel() < rule.MinLevel {
			return RedirectToUserHome
		}
		return Allow
	case AreaAdmin:
		if !sess.IsAuthenticatedAdmin {
			return RedirectToAdminLogin
		}
		if rule, ok := p.rule(clean); ok && rule.Role == session.RoleSuperAdmin && sess.AdminRole() != session.RoleSuperAdmin {
			return RedirectToAdminHome
		}
		return Allow
	default:
		return Allow
	}
}

// Location is where a redirect decision sends the browser.
func (p Policy) Location(d Decision) string {
	switch d {
	case RedirectToUserLogin:
		return p.UserLogin
	case RedirectToAdminLogin:
		return p.AdminLogin
	case RedirectToUserHome:
		return p.UserHome
	case RedirectToAdminHome:
		return p.AdminHome
	default:
		return ""
	}
}

func (p Policy) rule(clean string) (Rule, bool) {
	for _, r := range p.Rules {
		if under(clean, r.Prefix) {
			return r, true
		}
	}
	return Rule{}, false
}

func cleanPath(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return "/"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return path.Clean(target)
}

func under(clean, prefix string) bool {
	if prefix == "" {
		return false
	}
	return clean == prefix || strings.HasPrefix(clean, prefix+"/")
}

func matchesAny(clean string, paths []string) bool {
	for _, p := range paths {
		if clean == p {
			return true
		}
	}
	return false
}
