package authhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrmportal/internal/domain/auth"
	"hrmportal/internal/domain/session"
	"hrmportal/internal/platform/authapi"
	"hrmportal/internal/platform/email"
	"hrmportal/internal/transport/http/middleware"
)

const seedPassword = "password123"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	auth    *auth.Service
	outbox  *email.Outbox
	clock   *clock
	client  *authapi.Client
	session *session.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := auth.NewMemoryStore()
	_, err := auth.Seed(context.Background(), store, auth.DefaultAccounts(), seedPassword)
	require.NoError(t, err)

	clk := &clock{now: time.Now()}
	outbox := &email.Outbox{}
	svc := auth.NewService(store, "test-secret")
	svc.Now = clk.Now
	svc.Codes = email.CodeSender{Mailer: outbox, From: "noreply@example.com"}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(svc))
	NewHandler(svc).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := authapi.New(srv.URL, 5*time.Second)
	sess := session.NewService(session.NewStore(), client, nil)
	sess.Backend = client
	return &fixture{auth: svc, outbox: outbox, clock: clk, client: client, session: sess}
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func (f *fixture) lastCode(t *testing.T, addr string) string {
	t.Helper()
	msg, ok := f.outbox.Last(addr)
	require.True(t, ok, "no mail for %s", addr)
	code := codePattern.FindString(msg.Body)
	require.NotEmpty(t, code)
	return code
}

func TestUserLoginAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.session.LoginUser(ctx, "lead@example.com", seedPassword)
	require.NoError(t, err)
	require.True(t, sess.IsAuthenticatedUser)
	assert.Equal(t, "Liam Lead", sess.User.Name)
	assert.Equal(t, 2, sess.PermissionLevel())
	assert.False(t, sess.IsAuthenticatedAdmin)

	access := sess.UserToken
	_, err = f.auth.Authenticate(ctx, access)
	require.NoError(t, err)

	sess = f.session.LogoutUser(ctx)
	assert.False(t, sess.IsAuthenticatedUser)
	_, err = f.auth.Authenticate(ctx, access)
	assert.ErrorIs(t, err, auth.ErrUnauthorized, "logout revokes the server session")
}

func TestAdminLoginResolvesSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.session.LoginAdmin(ctx, "admin@example.com", seedPassword)
	require.NoError(t, err)
	assert.Equal(t, session.RoleSuperAdmin, sess.AdminRole())

	sess, err = f.session.LoginAdmin(ctx, "hr@example.com", seedPassword)
	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, sess.AdminRole())
}

func TestLoginThroughWrongPortal(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.LoginUser(context.Background(), "admin@example.com", seedPassword)
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	assert.Equal(t, "Invalid email or password", f.session.Session().ErrorUser)
}

func TestWrongPasswordKeepsSessionEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.LoginUser(context.Background(), "employee@example.com", "nope-nope")
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	assert.False(t, f.session.Session().IsAuthenticatedUser)
}

func TestDoRefreshesExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Now().Add(-time.Hour))
	_, err := f.session.LoginUser(ctx, "employee@example.com", seedPassword)
	require.NoError(t, err)
	stale := f.session.Session().UserToken
	f.clock.Set(time.Now())

	resp, err := f.session.Do(ctx, session.RoleUser, session.Request{Path: "/api/me"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	var body struct {
		Data struct {
			Profile session.User `json:"profile"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.Equal(t, "Emma Employee", body.Data.Profile.Name)

	sess := f.session.Session()
	assert.NotEqual(t, stale, sess.UserToken)
	assert.Equal(t, session.StateVerified, sess.UserState)
}

func TestDoLogsOutWhenRefreshIsRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.LoginUser(ctx, "employee@example.com", seedPassword)
	require.NoError(t, err)
	tokens := f.session.Session().Tokens(session.RoleUser)
	require.NoError(t, f.auth.Logout(ctx, "", tokens.Refresh))

	resp, err := f.session.Do(ctx, session.RoleUser, session.Request{Path: "/api/me"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.False(t, f.session.Session().IsAuthenticatedUser)
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.LoginAdmin(ctx, "hr@example.com", seedPassword)
	require.NoError(t, err)
	before := f.session.Session().Tokens(session.RoleAdmin)

	after, err := f.session.RefreshToken(ctx, session.RoleAdmin)
	require.NoError(t, err)
	assert.NotEqual(t, before.Refresh, after.Refresh)

	_, err = f.client.Refresh(ctx, before.Refresh)
	assert.ErrorIs(t, err, session.ErrInvalidCredentials, "rotated refresh tokens are single use")
}

func TestChangePasswordFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.LoginUser(ctx, "manager@example.com", seedPassword)
	require.NoError(t, err)

	err = f.session.ChangePassword(ctx, session.RoleUser, session.ChangePasswordInput{OldPassword: "wrong-one", NewPassword: "brand-new-pw", ConfirmPassword: "brand-new-pw"})
	require.ErrorIs(t, err, session.ErrValidationFailure)
	assert.Equal(t, "Current password is incorrect", session.Message(err))

	require.NoError(t, f.session.ChangePassword(ctx, session.RoleUser, session.ChangePasswordInput{OldPassword: seedPassword, NewPassword: "brand-new-pw", ConfirmPassword: "brand-new-pw"}))
	assert.True(t, f.session.Session().IsAuthenticatedUser)

	f.session.LogoutUser(ctx)
	_, err = f.session.LoginUser(ctx, "manager@example.com", "brand-new-pw")
	require.NoError(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := "employee@example.com"

	require.NoError(t, f.session.ForgetPassword(ctx, session.RoleUser, addr))
	code := f.lastCode(t, addr)

	err := f.session.ResetPassword(ctx, session.RoleUser, session.ResetPasswordInput{Email: addr, Code: code, Password: "reset-pw-123", ConfirmPassword: "reset-pw-123"})
	require.ErrorIs(t, err, session.ErrValidationFailure, "reset requires a verified code")

	err = f.session.VerifyForgetPasswordCode(ctx, session.RoleUser, addr, "000000")
	if code != "000000" {
		require.ErrorIs(t, err, session.ErrValidationFailure)
	}

	require.NoError(t, f.session.ResendVerificationCode(ctx, session.RoleUser, addr))
	code = f.lastCode(t, addr)
	require.NoError(t, f.session.VerifyForgetPasswordCode(ctx, session.RoleUser, addr, code))
	require.NoError(t, f.session.ResetPassword(ctx, session.RoleUser, session.ResetPasswordInput{Email: addr, Code: code, Password: "reset-pw-123", ConfirmPassword: "reset-pw-123"}))

	_, err = f.session.LoginUser(ctx, addr, "reset-pw-123")
	require.NoError(t, err)
}

func TestForgetPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.ForgetPassword(context.Background(), session.RoleUser, "ghost@example.com"))
	_, ok := f.outbox.Last("ghost@example.com")
	assert.False(t, ok)
}

func TestEnvelopeOnBadPayload(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodPost, f.client.BaseURL+"/auth/login", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var env struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
		RequestID string `json:"requestId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, "invalid_payload", env.Error.Code)
	assert.NotEmpty(t, env.RequestID)
}

func TestMeRequiresBearer(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.Do(context.Background(), "", session.Request{Path: "/api/me"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestValidationIssuesListFields(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.client.BaseURL+"/auth/login", "application/json", strings.NewReader(`{"email":"not-an-email"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var env struct {
		Message string `json:"message"`
		Data    struct {
			Fields []struct {
				Field  string `json:"field"`
				Reason string `json:"reason"`
			} `json:"fields"`
		} `json:"data"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Equal(t, "email must be a valid email address", env.Message)
	require.Len(t, env.Data.Fields, 2)
	assert.Equal(t, "email", env.Data.Fields[0].Field)
	assert.Equal(t, "password", env.Data.Fields[1].Field)
}
