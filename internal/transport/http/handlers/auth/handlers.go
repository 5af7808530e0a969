package authhandler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrmportal/internal/domain/auth"
	"hrmportal/internal/transport/http/api"
	"hrmportal/internal/transport/http/middleware"
	"hrmportal/internal/transport/http/shared"
)

// Handler serves the Auth API contract the session manager talks to, plus a
// protected /api/me endpoint standing in for the HRM REST API.
type Handler struct {
	Service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Post("/admin-login", h.HandleAdminLogin)
		r.Post("/logout", h.HandleLogout)
		r.Post("/refresh-token", h.HandleRefresh)
		r.Put("/forget-password", h.HandleForgetPassword)
		r.Put("/verify-forget-password-code", h.HandleVerifyCode)
		r.Put("/reset-password", h.HandleResetPassword)
		r.Put("/resend-verification-code", h.HandleResendCode)
		r.With(middleware.RequireAuth).Put("/change-password", h.HandleChangePassword)
	})
	r.With(middleware.RequireAuth).Get("/api/me", h.HandleMe)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type tokenPayload struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

func tokens(g auth.Grant) map[string]any {
	return map[string]any{
		"access":  tokenPayload{Token: g.AccessToken, Expires: g.AccessExpires.UTC().Format(time.RFC3339)},
		"refresh": tokenPayload{Token: g.RefreshToken, Expires: g.RefreshExpires.UTC().Format(time.RFC3339)},
	}
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, auth.KindUser)
}

func (h *Handler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, auth.KindAdmin)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, kind auth.AccountKind) {
	var payload credentialsRequest
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Email("email", payload.Email)
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	grant, err := h.Service.Login(r.Context(), kind, payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data := tokens(grant)
	if kind == auth.KindAdmin {
		data["admin"] = grant.Account.Admin()
	} else {
		data["profile"] = grant.Account.Profile()
	}
	api.OK(w, "Login successful", data, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var payload logoutRequest
	_ = api.Decode(r, &payload)
	access := middleware.BearerToken(r)
	if access == "" {
		access = payload.AccessToken
	}
	if err := h.Service.Logout(r.Context(), access, payload.RefreshToken); err != nil {
		slog.Warn("logout session revoke failed", "err", err)
	}
	api.OK(w, "Logged out", nil, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload refreshRequest
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("refresh_token", payload.RefreshToken, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	grant, err := h.Service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, "Token refreshed", tokens(grant), middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleForgetPassword(w http.ResponseWriter, r *http.Request) {
	var payload emailRequest
	if !decode(w, r, &payload) || rejectEmail(w, r, payload.Email) {
		return
	}
	if err := h.Service.ForgetPassword(r.Context(), payload.Email); err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, "If the account exists a verification code has been sent", nil, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleResendCode(w http.ResponseWriter, r *http.Request) {
	var payload emailRequest
	if !decode(w, r, &payload) || rejectEmail(w, r, payload.Email) {
		return
	}
	if err := h.Service.ResendVerificationCode(r.Context(), payload.Email); err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, "Verification code sent", nil, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var payload verifyRequest
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("code", payload.Code, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	if err := h.Service.VerifyForgetPasswordCode(r.Context(), payload.Email, payload.Code); err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, "Code verified", nil, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload resetRequest
	if !decode(w, r, &payload) || rejectEmail(w, r, payload.Email) {
		return
	}
	if err := h.Service.ResetPassword(r.Context(), payload.Email, payload.Code, payload.Password, payload.ConfirmPassword); err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, "Password has been reset", nil, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetClaims(r.Context())
	var payload changePasswordRequest
	if !decode(w, r, &payload) {
		return
	}
	if err := h.Service.ChangePassword(r.Context(), claims, payload.OldPassword, payload.NewPassword, payload.ConfirmPassword); err != nil {
		writeError(w, r, err)
		return
	}
	api.OK(w, "Password changed", nil, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetClaims(r.Context())
	account, err := h.Service.Account(r.Context(), claims.AccountID)
	if err != nil {
		writeError(w, r, auth.ErrUnauthorized)
		return
	}
	if account.Kind == auth.KindAdmin {
		api.Success(w, map[string]any{"admin": account.Admin()}, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"profile": account.Profile()}, middleware.GetRequestID(r.Context()))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := api.Decode(r, v); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func rejectEmail(w http.ResponseWriter, r *http.Request, email string) bool {
	v := shared.NewValidator()
	v.Required("email", email, "is required")
	v.Email("email", email)
	return v.Reject(w, middleware.GetRequestID(r.Context()))
}

var errorMap = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"},
	{auth.ErrSessionExpired, http.StatusUnauthorized, "session_expired", "Session expired, please log in again"},
	{auth.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication required"},
	{auth.ErrWrongPassword, http.StatusBadRequest, "wrong_password", "Current password is incorrect"},
	{auth.ErrWeakPassword, http.StatusBadRequest, "weak_password", "Password must be at least 8 characters long"},
	{auth.ErrPasswordMismatch, http.StatusBadRequest, "password_mismatch", "Passwords don't match"},
	{auth.ErrInvalidCode, http.StatusBadRequest, "invalid_code", "Invalid verification code"},
	{auth.ErrCodeExpired, http.StatusBadRequest, "code_expired", "Verification code expired, request a new one"},
	{auth.ErrCodeNotVerified, http.StatusBadRequest, "code_not_verified", "Verify the code before resetting the password"},
	{auth.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts", "Too many attempts, request a new code"},
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMap {
		if errors.Is(err, m.err) {
			api.Fail(w, m.status, m.code, m.message, middleware.GetRequestID(r.Context()))
			return
		}
	}
	slog.Error("auth request failed", "path", r.URL.Path, "err", err)
	api.Fail(w, http.StatusInternalServerError, "internal_error", "Something went wrong", middleware.GetRequestID(r.Context()))
}
