package portalhandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrmportal/internal/domain/access"
	"hrmportal/internal/domain/session"
	"hrmportal/internal/transport/http/api"
	"hrmportal/internal/transport/http/middleware"
)

// Snapshotter exposes collected counters.
type Snapshotter interface {
	Snapshot() map[string]any
}

// Handler exposes the process-wide session to the SPA. Views read and mutate
// it only through these endpoints.
type Handler struct {
	Sessions *session.Service
	Policy   access.Policy
	Metrics  Snapshotter
	Logger   *slog.Logger
}

func NewHandler(sessions *session.Service, policy access.Policy) *Handler {
	return &Handler{Sessions: sessions, Policy: policy}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portal", func(r chi.Router) {
		r.Get("/session", h.HandleSession)
		r.Get("/menu", h.HandleMenu)
		r.Get("/guard", h.HandleGuard)
		r.Get("/events", h.HandleEvents)
		r.Get("/metrics", h.HandleMetrics)

		r.Post("/login", h.login(session.RoleUser))
		r.Post("/admin/login", h.login(session.RoleAdmin))
		r.Post("/super-admin/login", h.login(session.RoleSuperAdmin))
		r.Post("/logout", h.logout(session.RoleUser))
		r.Post("/admin/logout", h.logout(session.RoleAdmin))
		r.Post("/refresh/{role}", h.HandleRefresh)

		r.Put("/change-password", h.HandleChangePassword)
		r.Put("/password/{action}", h.HandlePassword)
	})
	r.HandleFunc("/api/*", h.HandleProxy)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Sessions.Session(), middleware.GetRequestID(r.Context()))
}

// HandleMenu answers the visible menu of one role, or of every authenticated
// role when none is named.
func (h *Handler) HandleMenu(w http.ResponseWriter, r *http.Request) {
	sess := h.Sessions.Session()
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, ok := session.ParseRole(raw)
		if !ok {
			api.Fail(w, http.StatusBadRequest, "invalid_role", "Unknown role", middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, map[string]any{"items": h.Policy.Menu(role, sess)}, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{
		"user":  h.Policy.Menu(session.RoleUser, sess),
		"admin": h.Policy.Menu(session.RoleAdmin, sess),
	}, middleware.GetRequestID(r.Context()))
}

type guardResult struct {
	Path     string          `json:"path"`
	Decision access.Decision `json:"decision"`
	Location string          `json:"location,omitempty"`
}

func (h *Handler) HandleGuard(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("path")
	if target == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_path", "path is required", middleware.GetRequestID(r.Context()))
		return
	}
	d := h.Policy.Decide(target, h.Sessions.Session())
	api.Success(w, guardResult{Path: target, Decision: d, Location: h.Policy.Location(d)}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		http.NotFound(w, r)
		return
	}
	api.Success(w, h.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(role session.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload credentialsRequest
		if err := api.Decode(r, &payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
		sess, err := h.Sessions.Login(r.Context(), role, payload.Email, payload.Password)
		if err != nil {
			h.writeError(w, r, err, sess)
			return
		}
		api.OK(w, "Login successful", sess, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) logout(role session.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := h.Sessions.Logout(r.Context(), role)
		api.OK(w, "Logged out", sess, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	role, ok := session.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_role", "Unknown role", middleware.GetRequestID(r.Context()))
		return
	}
	if _, err := h.Sessions.RefreshToken(r.Context(), role); err != nil {
		h.writeError(w, r, err, h.Sessions.Session())
		return
	}
	api.OK(w, "Token refreshed", h.Sessions.Session(), middleware.GetRequestID(r.Context()))
}

// roleParam reads ?role=, defaulting to the user portal.
func roleParam(r *http.Request) (session.Role, bool) {
	raw := r.URL.Query().Get("role")
	if raw == "" {
		return session.RoleUser, true
	}
	return session.ParseRole(raw)
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_role", "Unknown role", middleware.GetRequestID(r.Context()))
		return
	}
	var payload session.ChangePasswordInput
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Sessions.ChangePassword(r.Context(), role, payload); err != nil {
		h.writeError(w, r, err, h.Sessions.Session())
		return
	}
	api.OK(w, "Password changed", nil, middleware.GetRequestID(r.Context()))
}

type passwordRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// HandlePassword runs one step of the recovery flow: forget, verify, reset or
// resend.
func (h *Handler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_role", "Unknown role", middleware.GetRequestID(r.Context()))
		return
	}
	var payload passwordRequest
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	ctx := r.Context()
	var (
		err     error
		message string
	)
	switch chi.URLParam(r, "action") {
	case "forget":
		err = h.Sessions.ForgetPassword(ctx, role, payload.Email)
		message = "If the account exists a verification code has been sent"
	case "verify":
		err = h.Sessions.VerifyForgetPasswordCode(ctx, role, payload.Email, payload.Code)
		message = "Code verified"
	case "reset":
		err = h.Sessions.ResetPassword(ctx, role, session.ResetPasswordInput{
			Email:           payload.Email,
			Code:            payload.Code,
			Password:        payload.Password,
			ConfirmPassword: payload.ConfirmPassword,
		})
		message = "Password has been reset"
	case "resend":
		err = h.Sessions.ResendVerificationCode(ctx, role, payload.Email)
		message = "Verification code sent"
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.writeError(w, r, err, h.Sessions.Session())
		return
	}
	api.OK(w, message, nil, middleware.GetRequestID(ctx))
}

// writeError answers with the failure and the session as it stands after it,
// so views can render the role error without a second round trip.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, sess session.Session) {
	reqID := middleware.GetRequestID(r.Context())
	var se *session.Error
	switch {
	case errors.As(err, &se):
		status := http.StatusBadGateway
		switch se.Kind {
		case session.KindInvalidCredentials:
			status = http.StatusUnauthorized
		case session.KindValidationFailure:
			status = http.StatusBadRequest
		}
		api.FailWith(w, status, se.Kind.String(), se.Message, sess, reqID)
	case errors.Is(err, session.ErrNotAuthenticated):
		api.FailWith(w, http.StatusUnauthorized, "not_authenticated", "Please log in first", sess, reqID)
	case errors.Is(err, session.ErrInvalidRole):
		api.Fail(w, http.StatusBadRequest, "invalid_role", "Unknown role", reqID)
	default:
		h.logger().Error("portal request failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "Something went wrong", reqID)
	}
}
