package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hrmportal/internal/domain/access"
	"hrmportal/internal/domain/session"
)

type staticSession session.Session

func (s staticSession) Session() session.Session { return session.Session(s) }

func TestGuardRedirectsAndAllows(t *testing.T) {
	user := &session.User{ID: "u1", PermissionLevel: access.LevelEmployee}
	cases := []struct {
		name     string
		sess     session.Session
		path     string
		status   int
		location string
	}{
		{"anonymous user area", session.Session{}, "/user/leave", http.StatusFound, "/login"},
		{"anonymous admin area", session.Session{}, "/admin/employees", http.StatusFound, "/admin/login"},
		{"signed in user", session.Session{User: user, IsAuthenticatedUser: true}, "/user/leave", http.StatusNoContent, ""},
		{"signed in user on login", session.Session{User: user, IsAuthenticatedUser: true}, "/login", http.StatusFound, "/user/dashboard"},
		{"low level on team", session.Session{User: user, IsAuthenticatedUser: true}, "/user/team", http.StatusFound, "/user/dashboard"},
		{"asset", session.Session{}, "/user/app.js", http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		handler := Guard(access.DefaultPolicy(), staticSession(tc.sess))(noContent())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != tc.location {
			t.Fatalf("%s: expected location %q, got %q", tc.name, tc.location, got)
		}
	}
}
