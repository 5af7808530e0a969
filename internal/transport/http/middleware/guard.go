package middleware

import (
	"net/http"
	"path"

	"hrmportal/internal/domain/access"
	"hrmportal/internal/domain/session"
)

type SessionSource interface {
	Session() session.Session
}

// Guard runs the route guard on page navigations. Redirect decisions become
// 302s; asset requests (anything with a file extension) pass straight through.
func Guard(policy access.Policy, src SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (r.Method != http.MethodGet && r.Method != http.MethodHead) || path.Ext(r.URL.Path) != "" {
				next.ServeHTTP(w, r)
				return
			}
			decision := policy.Decide(r.URL.Path, src.Session())
			w.Header().Set("X-Guard-Decision", decision.String())
			if decision == access.Allow {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, policy.Location(decision), http.StatusFound)
		})
	}
}
