package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrmportal/internal/domain/access"
	"hrmportal/internal/domain/auth"
	"hrmportal/internal/domain/session"
	"hrmportal/internal/platform/authapi"
	"hrmportal/internal/platform/config"
	"hrmportal/internal/platform/crypto"
	"hrmportal/internal/platform/db"
	"hrmportal/internal/platform/email"
	"hrmportal/internal/platform/jobs"
	"hrmportal/internal/platform/metrics"
	"hrmportal/internal/platform/persist"
	authhandler "hrmportal/internal/transport/http/handlers/auth"
	portalhandler "hrmportal/internal/transport/http/handlers/portal"
	"hrmportal/internal/transport/http/middleware"
)

const shutdownTimeout = 5 * time.Second

// Sessions is the process-wide session manager with its durable state and
// counters.
type Sessions struct {
	Service *session.Service
	KV      persist.KV
	Metrics *metrics.Collector
}

// NewSessions wires the session manager to the Auth API client and the
// configured persistence backend, then restores any persisted session.
func NewSessions(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Sessions, error) {
	kv, err := persist.Open(cfg.StateBackend, cfg.StatePath)
	if err != nil {
		return nil, err
	}
	sealer, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	bridge := persist.NewBridge(kv, sealer)
	bridge.Logger = logger

	client := authapi.New(cfg.APIBaseURL, cfg.RequestTimeout)
	client.Logger = logger
	collector := metrics.New()

	svc := session.NewService(session.NewStore(), client, bridge)
	svc.Backend = client
	svc.Metrics = collector
	svc.Logger = logger
	svc.LogoutTimeout = cfg.LogoutTimeout
	svc.RefreshTimeout = cfg.RequestTimeout

	if err := svc.Restore(ctx); err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return &Sessions{Service: svc, KV: kv, Metrics: collector}, nil
}

func (s *Sessions) Close() error {
	return s.KV.Close()
}

func NewPortalRouter(cfg config.Config, sessions *Sessions, logger *slog.Logger) http.Handler {
	policy := access.DefaultPolicy()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger, sessions.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production", "/portal", "/api"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.PortalRateRules))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	h := portalhandler.NewHandler(sessions.Service, policy)
	h.Logger = logger
	if cfg.MetricsEnabled {
		h.Metrics = sessions.Metrics
	}
	h.RegisterRoutes(router)

	router.With(middleware.Guard(policy, sessions.Service)).
		Handle("/*", portalhandler.SPA{StaticPath: cfg.FrontendDir, IndexPath: "index.html"})
	return router
}

// PortalJobs renews access tokens that expire within cfg.RefreshAhead.
func PortalJobs(cfg config.Config, sessions *Sessions, logger *slog.Logger) *jobs.Service {
	js := jobs.New(logger)
	js.Every(jobs.JobTokenRefresh, cfg.RefreshInterval, func(ctx context.Context) (any, error) {
		renewed, err := sessions.Service.RefreshExpiring(ctx, cfg.RefreshAhead)
		return map[string]any{"renewed": renewed}, err
	})
	return js
}

// RunPortal serves the portal until ctx ends.
func RunPortal(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sessions, err := NewSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sessions.Close()
	PortalJobs(cfg, sessions, logger).Start(ctx)

	logger.Info("portal listening", "addr", cfg.Addr, "api", cfg.APIBaseURL)
	return serve(ctx, cfg.Addr, NewPortalRouter(cfg, sessions, logger), logger)
}

// MockAuth is the development Auth API: accounts, sessions and reset codes in
// Postgres when DATABASE_URL is set, in memory otherwise.
type MockAuth struct {
	Service *auth.Service
	Pool    *pgxpool.Pool
	Metrics *metrics.Collector
}

func NewMockAuth(ctx context.Context, cfg config.Config, logger *slog.Logger) (*MockAuth, error) {
	m := &MockAuth{Metrics: metrics.New()}

	var store auth.StoreAPI
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, db.Migrations); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		if err := db.Seed(ctx, auth.NewStore(pool), cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
		m.Pool = pool
		store = auth.NewStore(pool)
	} else {
		mem := auth.NewMemoryStore()
		if _, err := auth.Seed(ctx, mem, auth.DefaultAccounts(), cfg.SeedPassword); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		store = mem
	}

	var mailer email.Mailer = email.LogMailer{Logger: logger}
	if cfg.EmailEnabled {
		mailer = email.New(cfg)
	}

	svc := auth.NewService(store, cfg.JWTSecret)
	svc.AccessTTL = cfg.AccessTokenTTL
	svc.RefreshTTL = cfg.RefreshTokenTTL
	svc.CodeTTL = cfg.ResetCodeTTL
	svc.Codes = email.CodeSender{Mailer: mailer, From: cfg.EmailFrom}
	m.Service = svc
	return m, nil
}

func (m *MockAuth) Close() {
	if m.Pool != nil {
		m.Pool.Close()
	}
}

// Jobs purges dead refresh sessions and reset codes on a schedule.
func (m *MockAuth) Jobs(cfg config.Config, logger *slog.Logger) *jobs.Service {
	js := jobs.New(logger)
	js.Every(jobs.JobSessionCleanup, cfg.CleanupInterval, func(ctx context.Context) (any, error) {
		purged, err := m.Service.Cleanup(ctx)
		return map[string]int{"purged": purged}, err
	})
	return js
}

func (m *MockAuth) Router(cfg config.Config, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger, m.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(false, "/auth", "/api"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.AuthAPIRateRules))
	router.Use(middleware.Auth(m.Service))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if m.Pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := m.Pool.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	authhandler.NewHandler(m.Service).RegisterRoutes(router)
	return router
}

// RunMockAuth serves the mock Auth API until ctx ends.
func RunMockAuth(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.ValidateMockAuth(); err != nil {
		return err
	}
	m, err := NewMockAuth(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	m.Jobs(cfg, logger).Start(ctx)

	logger.Info("mock auth api listening", "addr", cfg.MockAuthAddr, "postgres", m.Pool != nil)
	return serve(ctx, cfg.MockAuthAddr, m.Router(cfg, logger), logger)
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
