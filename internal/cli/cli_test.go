package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"hrmportal/internal/app/server"
	"hrmportal/internal/platform/config"
	"hrmportal/internal/platform/email"
	"hrmportal/internal/platform/logging"
)

type harness struct {
	apiURL string
	state  string
	outbox *email.Outbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Defaults()
	cfg.JWTSecret = "cli-test-secret"
	m, err := server.NewMockAuth(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("mock auth: %v", err)
	}
	t.Cleanup(m.Close)
	outbox := &email.Outbox{}
	m.Service.Codes = email.CodeSender{Mailer: outbox, From: cfg.EmailFrom}

	srv := httptest.NewServer(m.Router(cfg, logging.Discard()))
	t.Cleanup(srv.Close)
	return &harness{apiURL: srv.URL, state: filepath.Join(t.TempDir(), "session.json"), outbox: outbox}
}

// run executes one hrm invocation. Every call starts from the persisted state
// like a fresh process would.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--api", h.apiURL, "--state", h.state, "--state-backend", "file", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, "", args...)
	if err != nil {
		t.Fatalf("hrm %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestLoginStatusLogout(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "login", "--email", "lead@example.com", "--password", "password123")
	if !strings.Contains(out, "Liam Lead (level 2)") {
		t.Fatalf("unexpected login output: %q", out)
	}

	out = h.mustRun(t, "status")
	if !strings.Contains(out, "Liam Lead") || !strings.Contains(out, "unverified") {
		t.Fatalf("status should show the restored user: %q", out)
	}

	h.mustRun(t, "logout")
	out = h.mustRun(t, "status")
	if strings.Contains(out, "Liam Lead") {
		t.Fatalf("user still present after logout: %q", out)
	}
}

func TestLoginPromptsForCredentials(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "admin@example.com\npassword123\n", "login", "--admin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Email: ") || !strings.Contains(out, "(super_admin)") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "login", "--email", "employee@example.com", "--password", "wrong-password")
	if err == nil || !strings.Contains(err.Error(), "Invalid email or password") {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	_, err = h.run(t, "", "login", "--super-admin", "--email", "hr@example.com", "--password", "password123")
	if err == nil {
		t.Fatal("hr admin must not pass the super admin login")
	}
}

func TestCanAndMenu(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "can", "/user/leave")
	if !strings.Contains(out, "redirect_user_login -> /login") {
		t.Fatalf("unexpected decision: %q", out)
	}

	h.mustRun(t, "login", "--email", "employee@example.com", "--password", "password123")
	out = h.mustRun(t, "can", "/user/leave")
	if !strings.Contains(out, "allow") {
		t.Fatalf("expected allow: %q", out)
	}
	out = h.mustRun(t, "can", "/user/team")
	if !strings.Contains(out, "redirect_user_home") {
		t.Fatalf("level 1 must not reach the team page: %q", out)
	}

	out = h.mustRun(t, "menu")
	if !strings.Contains(out, "Attendance") || strings.Contains(out, "My Team") {
		t.Fatalf("unexpected menu: %q", out)
	}
	out = h.mustRun(t, "menu", "--admin")
	if !strings.Contains(out, "No admin session") {
		t.Fatalf("unexpected admin menu: %q", out)
	}
}

func TestRefreshAndAPI(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "--admin", "--email", "hr@example.com", "--password", "password123")

	out := h.mustRun(t, "refresh", "admin")
	if !strings.Contains(out, "Tokens refreshed (admin)") {
		t.Fatalf("unexpected refresh output: %q", out)
	}

	out = h.mustRun(t, "api", "get", "/api/me", "--role", "admin")
	if !strings.HasPrefix(out, "200 OK") || !strings.Contains(out, "HR Administrator") {
		t.Fatalf("unexpected api output: %q", out)
	}

	if _, err := h.run(t, "", "api", "get", "/api/me"); err == nil {
		t.Fatal("user role has no session")
	}
	if _, err := h.run(t, "", "refresh", "nobody"); err == nil {
		t.Fatal("unknown role must fail")
	}
}

func TestChangePasswordValidation(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "--email", "employee@example.com", "--password", "password123")

	_, err := h.run(t, "", "change-password", "--old", "password123", "--new", "short", "--confirm", "short")
	if err == nil || !strings.Contains(err.Error(), "Password must be at least 8 characters long") {
		t.Fatalf("expected length error, got %v", err)
	}
	_, err = h.run(t, "", "change-password", "--old", "password123", "--new", "abcdefgh", "--confirm", "xyz")
	if err == nil || !strings.Contains(err.Error(), "Passwords don't match") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	h.mustRun(t, "change-password", "--old", "password123", "--new", "new-password-1", "--confirm", "new-password-1")
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func TestPasswordRecovery(t *testing.T) {
	h := newHarness(t)
	addr := "manager@example.com"

	h.mustRun(t, "password", "forget", "--email", addr)
	msg, ok := h.outbox.Last(addr)
	if !ok {
		t.Fatal("no code mailed")
	}
	code := codePattern.FindString(msg.Body)

	h.mustRun(t, "password", "verify", "--email", addr, "--code", code)
	h.mustRun(t, "password", "reset", "--email", addr, "--code", code, "--password", "recovered-pw", "--confirm", "recovered-pw")

	out := h.mustRun(t, "login", "--email", addr, "--password", "recovered-pw")
	if !strings.Contains(out, "Maya Manager") {
		t.Fatalf("login with the new password failed: %q", out)
	}
}
