package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	EventLoginSuccess   = "login_success"
	EventLoginFailure   = "login_failure"
	EventLogout         = "logout"
	EventRefresh        = "refresh"
	EventRefreshFailure = "refresh_failure"
	EventAuthFailure    = "auth_failure"
	EventRestore        = "restore"
)

const (
	defaultLogoutTimeout  = 5 * time.Second
	defaultRefreshTimeout = 15 * time.Second
)

const msgSessionExpired = "Session expired, please log in again"

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserGrant struct {
	Tokens  Tokens
	Profile User
}

type AdminGrant struct {
	Tokens Tokens
	Admin  Admin
}

// AuthAPI is the external authentication service.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (UserGrant, error)
	AdminLogin(ctx context.Context, creds Credentials) (AdminGrant, error)
	Logout(ctx context.Context, tokens Tokens) error
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
	ChangePassword(ctx context.Context, accessToken string, in ChangePasswordInput) error
	ForgetPassword(ctx context.Context, email string) error
	VerifyForgetPasswordCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
	ResendVerificationCode(ctx context.Context, email string) error
}

type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Backend performs protected calls against the HRM REST API.
type Backend interface {
	Do(ctx context.Context, accessToken string, req Request) (Response, error)
}

type Restored struct {
	Role     Role
	Identity Identity
	Tokens   Tokens
}

// Persister mirrors token material to durable storage.
type Persister interface {
	Save(ctx context.Context, role Role, identity Identity, tokens Tokens) error
	SaveTokens(ctx context.Context, role Role, tokens Tokens) error
	Remove(ctx context.Context, role Role) error
	Load(ctx context.Context) ([]Restored, error)
}

type Recorder interface {
	RecordSession(event string)
}

type Service struct {
	Store          *Store
	API            AuthAPI
	Backend        Backend
	Bridge         Persister
	Metrics        Recorder
	Logger         *slog.Logger
	LogoutTimeout  time.Duration
	RefreshTimeout time.Duration
	Now            func() time.Time

	refreshes singleflight.Group
}

func NewService(store *Store, api AuthAPI, bridge Persister) *Service {
	if store == nil {
		store = NewStore()
	}
	return &Service{Store: store, API: api, Bridge: bridge}
}

func (s *Service) Session() Session {
	return s.Store.Session()
}

func (s *Service) LoginUser(ctx context.Context, email, password string) (Session, error) {
	return s.login(ctx, RoleUser, email, password)
}

func (s *Service) LoginAdmin(ctx context.Context, email, password string) (Session, error) {
	return s.login(ctx, RoleAdmin, email, password)
}

func (s *Service) LoginSuperAdmin(ctx context.Context, email, password string) (Session, error) {
	return s.login(ctx, RoleSuperAdmin, email, password)
}

// Login dispatches to the role-specific login flow.
func (s *Service) Login(ctx context.Context, role Role, email, password string) (Session, error) {
	if !role.Valid() {
		return s.Store.Session(), ErrInvalidRole
	}
	return s.login(ctx, role, email, password)
}

func (s *Service) login(ctx context.Context, role Role, email, password string) (Session, error) {
	creds := Credentials{Email: strings.TrimSpace(email), Password: password}
	if creds.Email == "" || creds.Password == "" {
		verr := validationFailure("Email and password are required")
		s.Store.ApplyLoginFailure(role, verr.Message)
		return s.Store.Session(), verr
	}

	s.Store.ApplyLoginStart(role)
	settled := false
	defer func() {
		if !settled {
			s.Store.clearLoading(role)
		}
	}()

	identity, tokens, err := s.authenticate(ctx, role, creds)
	if err == nil {
		err = s.Store.ApplyLoginSuccess(role, identity, tokens)
		if err != nil {
			err = networkFailure(err)
		}
	}
	if err != nil {
		s.Store.ApplyLoginFailure(role, Message(err))
		settled = true
		s.record(EventLoginFailure)
		s.logger().Info("login failed", "role", role, "email", creds.Email, "err", err)
		return s.Store.Session(), err
	}
	settled = true
	s.record(EventLoginSuccess)

	if s.Bridge != nil {
		if perr := s.Bridge.Save(ctx, role, identity, tokens); perr != nil {
			s.logger().Warn("session persist failed", "role", role, "err", perr)
		}
	}
	return s.Store.Session(), nil
}

func (s *Service) authenticate(ctx context.Context, role Role, creds Credentials) (Identity, Tokens, error) {
	if s.API == nil {
		return Identity{}, Tokens{}, networkFailure(errors.New("auth api not configured"))
	}
	if role == RoleUser {
		grant, err := s.API.Login(ctx, creds)
		if err != nil {
			return Identity{}, Tokens{}, classify(err)
		}
		profile := grant.Profile
		return Identity{User: &profile}, grant.Tokens, nil
	}

	grant, err := s.API.AdminLogin(ctx, creds)
	if err != nil {
		return Identity{}, Tokens{}, classify(err)
	}
	admin := grant.Admin
	if admin.Role == "" {
		admin.Role = RoleAdmin
	}
	if role == RoleSuperAdmin && admin.Role != RoleSuperAdmin {
		return Identity{}, Tokens{}, invalidCredentials("Super admin access required", nil)
	}
	return Identity{Admin: &admin}, grant.Tokens, nil
}

func (s *Service) LogoutUser(ctx context.Context) Session {
	return s.Logout(ctx, RoleUser)
}

func (s *Service) LogoutAdmin(ctx context.Context) Session {
	return s.Logout(ctx, RoleAdmin)
}

// Logout asks the server to revoke the role's tokens and then clears the role
// locally. Local teardown does not depend on the server answer.
func (s *Service) Logout(ctx context.Context, role Role) Session {
	tokens := s.Store.Session().Tokens(role)
	if s.API != nil && (tokens.Access != "" || tokens.Refresh != "") {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logoutTimeout())
		if err := s.API.Logout(callCtx, tokens); err != nil {
			s.logger().Warn("server logout failed", "role", role.Slot(), "err", err)
		}
		cancel()
	}
	s.teardown(ctx, role)
	s.record(EventLogout)
	return s.Store.Session()
}

func (s *Service) teardown(ctx context.Context, role Role) {
	s.Store.ApplyLogout(role)
	s.forget(ctx, role)
}

func (s *Service) forget(ctx context.Context, role Role) {
	if s.Bridge == nil {
		return
	}
	if err := s.Bridge.Remove(context.WithoutCancel(ctx), role); err != nil {
		s.logger().Warn("session removal failed", "role", role.Slot(), "err", err)
	}
}

// RefreshToken swaps the role's tokens for fresh ones. Overlapping calls for the
// same role share one network round trip, which runs detached from any single
// caller and is bounded by RefreshTimeout. A caller that gives up gets a
// network failure and leaves the session alone. A rejected or missing refresh
// token ends the session.
func (s *Service) RefreshToken(ctx context.Context, role Role) (Tokens, error) {
	if !role.Valid() {
		return Tokens{}, ErrInvalidRole
	}
	slot := role.Slot()
	ch := s.refreshes.DoChan(string(slot), func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout())
		defer cancel()
		return s.refresh(callCtx, slot)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Tokens{}, res.Err
		}
		return res.Val.(Tokens), nil
	case <-ctx.Done():
		return Tokens{}, networkFailure(ctx.Err())
	}
}

func (s *Service) refresh(ctx context.Context, role Role) (Tokens, error) {
	sess := s.Store.Session()
	if !sess.Authenticated(role) {
		return Tokens{}, ErrNotAuthenticated
	}
	current := sess.Tokens(role)
	if current.Refresh == "" || s.API == nil {
		s.record(EventRefreshFailure)
		s.logoutIfCurrent(ctx, role, current.Refresh)
		return Tokens{}, invalidCredentials(msgSessionExpired, ErrMissingToken)
	}

	next, err := s.API.Refresh(ctx, current.Refresh)
	if err == nil && next.Access == "" {
		err = ErrMissingToken
	}
	if err != nil {
		s.record(EventRefreshFailure)
		s.logger().Info("token refresh failed", "role", role, "err", err)
		if !transient(err) {
			s.logoutIfCurrent(ctx, role, current.Refresh)
		}
		return Tokens{}, classify(err)
	}
	if next.Refresh == "" {
		next.Refresh = current.Refresh
	}
	if err := s.Store.ApplyTokenRefreshIf(role, current.Refresh, next); err != nil {
		return Tokens{}, err
	}
	s.record(EventRefresh)

	if s.Bridge != nil {
		if perr := s.Bridge.SaveTokens(ctx, role, next); perr != nil {
			s.logger().Warn("token persist failed", "role", role, "err", perr)
		}
	}
	return next, nil
}

// logoutIfCurrent ends the session only while the slot still holds the
// refresh token that failed, so a newer login survives an old renewal.
func (s *Service) logoutIfCurrent(ctx context.Context, role Role, refresh string) {
	if s.Store.Session().Tokens(role).Refresh != refresh {
		return
	}
	s.Logout(ctx, role)
}

// expireAfterAuthFailure handles a refresh that could not rescue a 401. The
// renewal already logged the role out; an optimistically restored slot is
// additionally tagged Invalid. Transient failures and a slot that was logged
// out or replaced while the renewal ran are left alone.
func (s *Service) expireAfterAuthFailure(role Role, wasUnverified bool, rerr error) {
	if transient(rerr) || errors.Is(rerr, ErrSessionReplaced) || errors.Is(rerr, ErrNotAuthenticated) {
		return
	}
	if wasUnverified && !s.Store.Session().Authenticated(role) {
		s.Store.ApplyInvalid(role, msgSessionExpired)
	}
}

// RefreshExpiring renews every signed-in role whose access token expires
// within ahead. Tokens without a readable expiry are left alone. It returns the
// roles that were renewed.
func (s *Service) RefreshExpiring(ctx context.Context, ahead time.Duration) ([]Role, error) {
	sess := s.Store.Session()
	deadline := s.now().Add(ahead)
	var (
		renewed []Role
		errs    []error
	)
	for _, role := range []Role{RoleUser, RoleAdmin} {
		if !sess.Authenticated(role) {
			continue
		}
		exp, ok := TokenExpiry(sess.Tokens(role).Access)
		if !ok || exp.After(deadline) {
			continue
		}
		if _, err := s.RefreshToken(ctx, role); err != nil {
			errs = append(errs, err)
			continue
		}
		renewed = append(renewed, role)
	}
	return renewed, errors.Join(errs...)
}

// Restore seeds the store from durable storage. Restored roles are
// Unverified; roles whose refresh token has already expired are discarded.
func (s *Service) Restore(ctx context.Context) error {
	if s.Bridge == nil {
		return nil
	}
	restored, err := s.Bridge.Load(ctx)
	if err != nil {
		return err
	}
	for _, r := range restored {
		if expired(r.Tokens, s.now()) {
			s.Store.ApplyInvalid(r.Role, msgSessionExpired)
			s.forget(ctx, r.Role)
			continue
		}
		if err := s.Store.ApplyRestore(r.Role, r.Identity, r.Tokens); err != nil {
			s.logger().Warn("discarding persisted session", "role", r.Role, "err", err)
			s.forget(ctx, r.Role)
			continue
		}
		s.record(EventRestore)
	}
	return nil
}

// Do performs a protected backend call with the role's bearer token. An auth
// failure triggers one refresh and a retry; when that is not possible the role
// is logged out.
func (s *Service) Do(ctx context.Context, role Role, req Request) (Response, error) {
	if s.Backend == nil {
		return Response{}, networkFailure(errors.New("backend not configured"))
	}
	sess := s.Store.Session()
	if !sess.Authenticated(role) {
		return Response{}, ErrNotAuthenticated
	}
	wasUnverified := sess.State(role) == StateUnverified

	resp, err := s.Backend.Do(ctx, sess.Tokens(role).Access, req)
	if err != nil {
		return Response{}, networkFailure(err)
	}
	if resp.Status != http.StatusUnauthorized {
		if resp.Status < 400 {
			s.Store.ApplyVerified(role)
		}
		return resp, nil
	}

	s.record(EventAuthFailure)
	tokens, rerr := s.RefreshToken(ctx, role)
	if rerr != nil {
		s.expireAfterAuthFailure(role, wasUnverified, rerr)
		return resp, nil
	}
	resp, err = s.Backend.Do(ctx, tokens.Access, req)
	if err != nil {
		return Response{}, networkFailure(err)
	}
	if resp.Status == http.StatusUnauthorized {
		s.Logout(ctx, role)
		return resp, nil
	}
	if resp.Status < 400 {
		s.Store.ApplyVerified(role)
	}
	return resp, nil
}

func (s *Service) record(event string) {
	if s.Metrics != nil {
		s.Metrics.RecordSession(event)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) refreshTimeout() time.Duration {
	if s.RefreshTimeout > 0 {
		return s.RefreshTimeout
	}
	return defaultRefreshTimeout
}

func (s *Service) logoutTimeout() time.Duration {
	if s.LogoutTimeout > 0 {
		return s.LogoutTimeout
	}
	return defaultLogoutTimeout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// classify keeps typed failures and degrades everything else to a network
// failure so raw transport or parse errors never reach a view.
func classify(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return networkFailure(err)
}
