package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrmportal/internal/domain/session"
	"hrmportal/internal/platform/config"
	"hrmportal/internal/platform/jobs"
	"hrmportal/internal/platform/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.JWTSecret = "server-test-secret"
	cfg.StateBackend = "file"
	cfg.StatePath = filepath.Join(t.TempDir(), "session.json")
	cfg.FrontendDir = t.TempDir()
	cfg.MetricsEnabled = true
	return cfg
}

func startMockAuth(t *testing.T, cfg config.Config) string {
	t.Helper()
	m, err := NewMockAuth(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	srv := httptest.NewServer(m.Router(cfg, logging.Discard()))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestMockAuthHealth(t *testing.T) {
	url := startMockAuth(t, testConfig(t))
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(url + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestPortalAgainstMockAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIBaseURL = startMockAuth(t, cfg)
	ctx := context.Background()

	sessions, err := NewSessions(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer sessions.Close()
	portal := httptest.NewServer(NewPortalRouter(cfg, sessions, logging.Discard()))
	defer portal.Close()

	resp, err := http.Post(portal.URL+"/portal/admin/login", "application/json", strings.NewReader(`{"email":"admin@example.com","password":"password123"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	// A second process restores the persisted admin session unverified.
	restored, err := NewSessions(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer restored.Close()
	sess := restored.Service.Session()
	require.True(t, sess.IsAuthenticatedAdmin)
	assert.Equal(t, "super_admin", string(sess.AdminRole()))
	assert.Equal(t, "unverified", sess.AdminState.String())

	resp, err = http.Get(portal.URL + "/portal/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewSessionsRejectsBadKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataEncryptionKey = "too-short"
	_, err := NewSessions(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
}

func TestRunPortalValidatesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIBaseURL = "not a url"
	err := RunPortal(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
}

func TestRunMockAuthRequiresSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = ""
	err := RunMockAuth(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), logging.Discard())
	assert.NoError(t, err)
}

func TestPortalJobsRenewAccessTokens(t *testing.T) {
	cfg := testConfig(t)
	cfg.AccessTokenTTL = time.Minute
	cfg.RefreshAhead = 5 * time.Minute
	cfg.RefreshInterval = 20 * time.Millisecond
	cfg.APIBaseURL = startMockAuth(t, cfg)

	sessions, err := NewSessions(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer sessions.Close()
	_, err = sessions.Service.Login(context.Background(), session.RoleUser, "employee@example.com", "password123")
	require.NoError(t, err)
	first := sessions.Service.Session().UserRefreshToken

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	js := PortalJobs(cfg, sessions, logging.Discard())
	js.Start(ctx)

	require.Eventually(t, func() bool {
		run, ok := js.LastRun(jobs.JobTokenRefresh)
		return ok && run.Status == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	sess := sessions.Service.Session()
	assert.True(t, sess.IsAuthenticatedUser)
	assert.NotEqual(t, first, sess.UserRefreshToken)
}

func TestMockAuthJobsPurgeSessions(t *testing.T) {
	cfg := testConfig(t)
	cfg.CleanupInterval = 20 * time.Millisecond
	m, err := NewMockAuth(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	js := m.Jobs(cfg, logging.Discard())
	js.Start(ctx)

	require.Eventually(t, func() bool {
		run, ok := js.LastRun(jobs.JobSessionCleanup)
		return ok && run.Status == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}
