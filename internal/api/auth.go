package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminTokenHeader carries the admin token as an alternative to a bearer Authorization header.
const AdminTokenHeader = "X-Admin-Token"

// requireToken rejects requests that do not present token. An empty token disables the check.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokensEqual(requestToken(r), token) {
				RecordConnectionRejected("auth")
				writeError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestToken extracts the presented token from the bearer header or X-Admin-Token.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get(AdminTokenHeader)
}

// tokensEqual compares in constant time.
func tokensEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
