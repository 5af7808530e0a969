package portalhandler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"hrmportal/internal/domain/session"
	"hrmportal/internal/transport/http/api"
	"hrmportal/internal/transport/http/middleware"
)

// RoleHeader picks the session a proxied call runs under.
const RoleHeader = "X-Portal-Role"

const maxProxyBody = 4 << 20

var forwardedHeaders = []string{"Accept", "Content-Type", "Accept-Language"}

// HandleProxy forwards /api/* to the HRM REST API with the bearer token of
// the chosen role. Without a role header the user session is used when there
// is one, then the admin session.
func (h *Handler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	role, ok := h.proxyRole(r)
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_role", "Unknown role", reqID)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "unable to read request body", reqID)
		return
	}
	header := http.Header{}
	for _, k := range forwardedHeaders {
		if v := r.Header.Get(k); v != "" {
			header.Set(k, v)
		}
	}

	resp, err := h.Sessions.Do(r.Context(), role, session.Request{
		Method: r.Method,
		Path:   r.URL.RequestURI(),
		Header: header,
		Body:   body,
	})
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			api.FailWith(w, http.StatusUnauthorized, "not_authenticated", "Please log in first", h.Sessions.Session(), reqID)
			return
		}
		h.writeError(w, r, err, h.Sessions.Session())
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (h *Handler) proxyRole(r *http.Request) (session.Role, bool) {
	if raw := strings.TrimSpace(r.Header.Get(RoleHeader)); raw != "" {
		return session.ParseRole(raw)
	}
	sess := h.Sessions.Session()
	if !sess.IsAuthenticatedUser && sess.IsAuthenticatedAdmin {
		return sess.AdminRole(), true
	}
	return session.RoleUser, true
}
