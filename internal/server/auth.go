package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminTokenHeader carries the admin token as an alternative to a bearer token.
const AdminTokenHeader = "X-Admin-Token"

// Authorizer guards mutating routes with a shared admin token. An empty token
// disables those routes.
type Authorizer struct {
	token []byte
}

// NewAuthorizer returns an Authorizer for token.
func NewAuthorizer(token string) *Authorizer {
	return &Authorizer{token: []byte(token)}
}

// Enabled reports whether a token is configured.
func (a *Authorizer) Enabled() bool {
	return len(a.token) > 0
}

// Allowed reports whether r presents the admin token.
func (a *Authorizer) Allowed(r *http.Request) bool {
	if !a.Enabled() {
		return false
	}
	given := r.Header.Get(AdminTokenHeader)
	if auth := r.Header.Get("Authorization"); given == "" && strings.HasPrefix(auth, "Bearer ") {
		given = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(given), a.token) == 1
}

// Middleware rejects requests without the admin token.
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case !a.Enabled():
			writeError(w, http.StatusForbidden, "deletes are disabled; set server.admin_token")
		case !a.Allowed(r):
			w.Header().Set("WWW-Authenticate", `Bearer realm="readora"`)
			writeError(w, http.StatusUnauthorized, "admin token required")
		default:
			next.ServeHTTP(w, r)
		}
	})
}
