package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr               string        `yaml:"addr"`
	APIBaseURL         string        `yaml:"api_base_url"`
	MockAuthAddr       string        `yaml:"mock_auth_addr"`
	DatabaseURL        string        `yaml:"database_url"`
	JWTSecret          string        `yaml:"jwt_secret"`
	DataEncryptionKey  string        `yaml:"data_encryption_key"`
	FrontendDir        string        `yaml:"frontend_dir"`
	Environment        string        `yaml:"environment"`
	StateBackend       string        `yaml:"state_backend"`
	StatePath          string        `yaml:"state_path"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	LogoutTimeout      time.Duration `yaml:"logout_timeout"`
	RefreshInterval    time.Duration `yaml:"refresh_interval"`
	RefreshAhead       time.Duration `yaml:"refresh_ahead"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	ResetCodeTTL       time.Duration `yaml:"reset_code_ttl"`
	SeedPassword       string        `yaml:"seed_password"`
	EmailFrom          string        `yaml:"email_from"`
	EmailEnabled       bool          `yaml:"email_enabled"`
	SMTPHost           string        `yaml:"smtp_host"`
	SMTPPort           int           `yaml:"smtp_port"`
	SMTPUser           string        `yaml:"smtp_user"`
	SMTPPassword       string        `yaml:"smtp_password"`
	SMTPUseTLS         bool          `yaml:"smtp_use_tls"`
	RunMigrations      bool          `yaml:"run_migrations"`
	RunSeed            bool          `yaml:"run_seed"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	MetricsEnabled     bool          `yaml:"metrics_enabled"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
}

func Defaults() Config {
	return Config{
		Addr:               ":8080",
		APIBaseURL:         "http://localhost:8081",
		MockAuthAddr:       ":8081",
		FrontendDir:        "frontend/dist",
		Environment:        "development",
		StateBackend:       "file",
		StatePath:          defaultStatePath(),
		RequestTimeout:     15 * time.Second,
		LogoutTimeout:      5 * time.Second,
		RefreshInterval:    time.Minute,
		RefreshAhead:       2 * time.Minute,
		CleanupInterval:    time.Hour,
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		ResetCodeTTL:       15 * time.Minute,
		SeedPassword:       "password123",
		EmailFrom:          "no-reply@example.com",
		SMTPPort:           587,
		SMTPUseTLS:         true,
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 60,
		MetricsEnabled:     true,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load layers the YAML file named by HRM_CONFIG (if any) over the defaults and
// the environment over both.
func Load() (Config, error) {
	return LoadFile(os.Getenv("HRM_CONFIG"))
}

// LoadFile is Load with an explicit YAML file. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.merge(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("APP_ADDR", c.Addr)
	c.APIBaseURL = getEnv("HRM_API_URL", c.APIBaseURL)
	c.MockAuthAddr = getEnv("MOCK_AUTH_ADDR", c.MockAuthAddr)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.DataEncryptionKey = getEnv("DATA_ENCRYPTION_KEY", c.DataEncryptionKey)
	c.FrontendDir = getEnv("FRONTEND_DIR", c.FrontendDir)
	c.Environment = getEnv("APP_ENV", c.Environment)
	c.StateBackend = getEnv("HRM_STATE_BACKEND", c.StateBackend)
	c.StatePath = getEnv("HRM_STATE_PATH", c.StatePath)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.LogoutTimeout = getEnvDuration("LOGOUT_TIMEOUT", c.LogoutTimeout)
	c.RefreshInterval = getEnvDuration("TOKEN_REFRESH_INTERVAL", c.RefreshInterval)
	c.RefreshAhead = getEnvDuration("TOKEN_REFRESH_AHEAD", c.RefreshAhead)
	c.CleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", c.CleanupInterval)
	c.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", c.AccessTokenTTL)
	c.RefreshTokenTTL = getEnvDuration("REFRESH_TOKEN_TTL", c.RefreshTokenTTL)
	c.ResetCodeTTL = getEnvDuration("RESET_CODE_TTL", c.ResetCodeTTL)
	c.SeedPassword = getEnv("SEED_PASSWORD", c.SeedPassword)
	c.EmailFrom = getEnv("EMAIL_FROM", c.EmailFrom)
	c.EmailEnabled = getEnvBool("EMAIL_ENABLED", c.EmailEnabled)
	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getEnvInt("SMTP_PORT", c.SMTPPort)
	c.SMTPUser = getEnv("SMTP_USER", c.SMTPUser)
	c.SMTPPassword = getEnv("SMTP_PASSWORD", c.SMTPPassword)
	c.SMTPUseTLS = getEnvBool("SMTP_USE_TLS", c.SMTPUseTLS)
	c.RunMigrations = getEnvBool("RUN_MIGRATIONS", c.RunMigrations)
	c.RunSeed = getEnvBool("RUN_SEED", c.RunSeed)
	c.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(c.MaxBodyBytes)))
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".hrm", "session.json")
	}
	return filepath.Join(home, ".hrm", "session.json")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Validate checks what the session client and the portal need.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("HRM_API_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	switch c.StateBackend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("HRM_STATE_BACKEND must be file, sqlite or memory")
	}
	if c.StateBackend != "memory" && strings.TrimSpace(c.StatePath) == "" {
		return errors.New("HRM_STATE_PATH is required")
	}
	if c.RequestTimeout <= 0 || c.LogoutTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT and LOGOUT_TIMEOUT must be positive")
	}
	if c.Environment == "production" && strings.TrimSpace(c.DataEncryptionKey) == "" {
		return errors.New("DATA_ENCRYPTION_KEY must be set in production so tokens are encrypted at rest")
	}
	if c.MaxBodyBytes < 1024 {
		return errors.New("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// ValidateMockAuth checks the extra settings of the mock Auth API server.
func (c Config) ValidateMockAuth() error {
	if c.Environment == "production" {
		return errors.New("the mock auth server must not run in production")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= c.AccessTokenTTL {
		return errors.New("REFRESH_TOKEN_TTL must exceed a positive ACCESS_TOKEN_TTL")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return errors.New("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
