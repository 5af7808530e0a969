package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hrmportal/internal/transport/http/api"
)

// RateScope says which limiters guard a route.
type RateScope int

const (
	// ScopeNone is not limited.
	ScopeNone RateScope = iota
	// ScopeCredentials covers requests that carry a password, a code or an
	// email. They are limited per client IP and per email.
	ScopeCredentials
	// ScopeAccount covers token-bearing mutations, limited per account.
	ScopeAccount
)

// RateRule binds a path, or every path under a prefix, to a scope. Only
// mutating methods are matched.
type RateRule struct {
	Path   string
	Prefix bool
	Scope  RateScope
}

// AuthAPIRateRules are the mock Auth API routes that need throttling.
var AuthAPIRateRules = []RateRule{
	{Path: "/auth/login", Scope: ScopeCredentials},
	{Path: "/auth/admin-login", Scope: ScopeCredentials},
	{Path: "/auth/forget-password", Scope: ScopeCredentials},
	{Path: "/auth/verify-forget-password-code", Scope: ScopeCredentials},
	{Path: "/auth/reset-password", Scope: ScopeCredentials},
	{Path: "/auth/resend-verification-code", Scope: ScopeCredentials},
	{Path: "/auth/change-password", Scope: ScopeAccount},
	{Path: "/auth/refresh-token", Scope: ScopeAccount},
}

// PortalRateRules are the portal routes that reach the Auth API.
var PortalRateRules = []RateRule{
	{Path: "/portal/login", Scope: ScopeCredentials},
	{Path: "/portal/admin/login", Scope: ScopeCredentials},
	{Path: "/portal/super-admin/login", Scope: ScopeCredentials},
	{Path: "/portal/password/", Prefix: true, Scope: ScopeCredentials},
	{Path: "/portal/change-password", Scope: ScopeAccount},
	{Path: "/portal/refresh/", Prefix: true, Scope: ScopeAccount},
}

type RateLimitKeyFunc func(r *http.Request) string

type rateBucket struct {
	count int
	reset time.Time
}

// Limiter is a fixed-window counter per key.
type Limiter struct {
	limit  int
	window time.Duration
	keyFn  RateLimitKeyFunc
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*rateBucket
	lastSweep time.Time
}

func NewLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *Limiter {
	if keyFn == nil {
		keyFn = accountOrIPKey
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		now:     time.Now,
		buckets: map[string]*rateBucket{},
	}
}

// Quota is the state of one key after a hit.
type Quota struct {
	Limit     int
	Remaining int
	ResetIn   int
}

// Hit counts one request for key and reports whether it is within the limit.
func (l *Limiter) Hit(key string) (Quota, bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)
	bucket, ok := l.buckets[key]
	if !ok || !now.Before(bucket.reset) {
		bucket = &rateBucket{reset: now.Add(l.window)}
		l.buckets[key] = bucket
	}
	bucket.count++
	q := Quota{
		Limit:     l.limit,
		Remaining: max(l.limit-bucket.count, 0),
		ResetIn:   durationSeconds(bucket.reset.Sub(now)),
	}
	return q, bucket.count <= l.limit
}

// sweep drops expired buckets at most once per window so that one-off keys
// such as mistyped emails do not accumulate.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if !now.Before(b.reset) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	key := l.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	q, ok := l.Hit(key)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(q.ResetIn))
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(max(q.ResetIn, 1)))
	slog.Warn("rate limit exceeded",
		"key", key,
		"path", r.URL.Path,
		"method", r.Method,
		"limit", l.limit,
		"windowSec", int(l.window.Seconds()),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "Too many attempts, try again later", GetRequestID(r.Context()))
	return false
}

// SensitiveMutationRateLimit throttles the routes named by rules. Credential
// routes get a quarter of baseLimit per IP and per email; account routes get
// half of it per account.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration, rules []RateRule) func(http.Handler) http.Handler {
	credentialLimit := max(baseLimit/4, 1)
	accountLimit := max(baseLimit/2, 1)
	byIP := NewLimiter(credentialLimit, window, clientIPKey)
	byEmail := NewLimiter(credentialLimit, window, emailOrIPKey("email"))
	byAccount := NewLimiter(accountLimit, window, accountOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch scopeFor(rules, r) {
			case ScopeCredentials:
				if !byIP.enforce(w, r) || !byEmail.enforce(w, r) {
					return
				}
			case ScopeAccount:
				if !byAccount.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func scopeFor(rules []RateRule, r *http.Request) RateScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return ScopeNone
	}
	path := strings.TrimRight(r.URL.Path, "/")
	for _, rule := range rules {
		if rule.Prefix {
			if strings.HasPrefix(path+"/", rule.Path) {
				return rule.Scope
			}
			continue
		}
		if path == strings.TrimRight(rule.Path, "/") {
			return rule.Scope
		}
	}
	return ScopeNone
}

// emailOrIPKey keys on a JSON body field, falling back to the client IP. The
// body is restored for the next handler.
func emailOrIPKey(field string) RateLimitKeyFunc {
	return func(r *http.Request) string {
		email := jsonField(r, field)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func accountOrIPKey(r *http.Request) string {
	if claims, ok := GetClaims(r.Context()); ok && claims.AccountID != "" {
		return "account:" + claims.AccountID
	}
	if role := r.URL.Query().Get("role"); role != "" {
		return "role:" + role + ":" + clientIPKey(r)
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return max(int(d.Seconds()), 1)
}

func jsonField(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}
