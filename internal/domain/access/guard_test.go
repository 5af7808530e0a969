package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrmportal/internal/domain/session"
)

func userSession(level int) session.Session {
	return session.Session{
		User:                &session.User{ID: "u1", PermissionLevel: level},
		IsAuthenticatedUser: true,
		UserToken:           "t",
	}
}

func adminSession(role session.Role) session.Session {
	return session.Session{
		Admin:                &session.Admin{ID: "a1", Role: role},
		IsAuthenticatedAdmin: true,
		AdminToken:           "t",
	}
}

func TestDecide(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name string
		path string
		sess session.Session
		want Decision
	}{
		{name: "anonymous user area", path: "/user/leave", sess: session.Session{}, want: RedirectToUserLogin},
		{name: "anonymous admin area", path: "/admin/employees", sess: session.Session{}, want: RedirectToAdminLogin},
		{name: "anonymous login page", path: "/login", sess: session.Session{}, want: Allow},
		{name: "anonymous admin login page", path: "/admin/login", sess: session.Session{}, want: Allow},
		{name: "anonymous forgot password", path: "/forgot-password", sess: session.Session{}, want: Allow},
		{name: "user on login page forwarded", path: "/login", sess: userSession(1), want: RedirectToUserHome},
		{name: "admin on admin login forwarded", path: "/admin/login", sess: adminSession(session.RoleAdmin), want: RedirectToAdminHome},
		{name: "user cannot enter admin area", path: "/admin/dashboard", sess: userSession(3), want: RedirectToAdminLogin},
		{name: "admin cannot enter user area", path: "/user/dashboard", sess: adminSession(session.RoleAdmin), want: RedirectToUserLogin},
		{name: "user allowed", path: "/user/leave?tab=pending", sess: userSession(1), want: Allow},
		{name: "low level blocked from team", path: "/user/team/members", sess: userSession(1), want: RedirectToUserHome},
		{name: "lead reaches team", path: "/user/team", sess: userSession(2), want: Allow},
		{name: "lead blocked from reports", path: "/user/reports", sess: userSession(2), want: RedirectToUserHome},
		{name: "admin blocked from settings", path: "/admin/settings", sess: adminSession(session.RoleAdmin), want: RedirectToAdminHome},
		{name: "super admin reaches settings", path: "/admin/settings", sess: adminSession(session.RoleSuperAdmin), want: Allow},
		{name: "prefix lookalike is not user area", path: "/users-guide", sess: session.Session{}, want: Allow},
		{name: "dot segments are cleaned", path: "/login/../user/leave", sess: session.Session{}, want: RedirectToUserLogin},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.Decide(tc.path, tc.sess))
		})
	}
}

func TestGuardRoundTrip(t *testing.T) {
	policy := DefaultPolicy()
	store := session.NewStore()

	assert.Equal(t, RedirectToUserLogin, policy.Decide("/user/attendance", store.Session()))
	require.NoError(t, store.ApplyLoginSuccess(session.RoleUser, session.Identity{User: &session.User{ID: "u1", PermissionLevel: 1}}, session.Tokens{Access: "t"}))
	assert.Equal(t, Allow, policy.Decide("/user/attendance", store.Session()))
}

func TestLocation(t *testing.T) {
	policy := DefaultPolicy()
	assert.Equal(t, "/login", policy.Location(RedirectToUserLogin))
	assert.Equal(t, "/admin/login", policy.Location(RedirectToAdminLogin))
	assert.Equal(t, "/user/dashboard", policy.Location(RedirectToUserHome))
	assert.Equal(t, "", policy.Location(Allow))
}

func TestMenuFiltersByLevel(t *testing.T) {
	policy := DefaultPolicy()

	keys := func(items []MenuItem) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.Key)
		}
		return out
	}

	employee := keys(policy.Menu(session.RoleUser, userSession(LevelEmployee)))
	assert.Contains(t, employee, "leave")
	assert.NotContains(t, employee, "team")
	assert.NotContains(t, employee, "reports")

	manager := keys(policy.Menu(session.RoleUser, userSession(LevelManager)))
	assert.Contains(t, manager, "team")
	assert.Contains(t, manager, "reports")

	admin := keys(policy.Menu(session.RoleAdmin, adminSession(session.RoleAdmin)))
	assert.NotContains(t, admin, "settings")
	super := keys(policy.Menu(session.RoleSuperAdmin, adminSession(session.RoleSuperAdmin)))
	assert.Contains(t, super, "settings")

	assert.Empty(t, policy.Menu(session.RoleUser, session.Session{}))
}

func TestMenuPathsAreUnique(t *testing.T) {
	for _, menu := range [][]MenuItem{UserMenu, AdminMenu} {
		seen := map[string]struct{}{}
		for _, item := range menu {
			_, dup := seen[item.Path]
			require.False(t, dup, "duplicate menu path %s", item.Path)
			seen[item.Path] = struct{}{}
		}
	}
}

func TestMonitorReactsToMutations(t *testing.T) {
	policy := DefaultPolicy()
	store := session.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := policy.Monitor(ctx, store, "/user/leave")
	next := func() Change {
		select {
		case c := <-changes:
			return c
		case <-time.After(time.Second):
			t.Fatal("expected guard change")
			return Change{}
		}
	}

	assert.Equal(t, RedirectToUserLogin, next().Decision)

	require.NoError(t, store.ApplyLoginSuccess(session.RoleUser, session.Identity{User: &session.User{ID: "u1"}}, session.Tokens{Access: "t"}))
	assert.Equal(t, Allow, next().Decision)

	store.ApplyLogout(session.RoleUser)
	c := next()
	assert.Equal(t, RedirectToUserLogin, c.Decision)
	assert.Equal(t, "/login", c.Location)
}
