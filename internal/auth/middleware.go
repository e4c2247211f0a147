// Package auth guards the plugin API with a shared bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenFromRequest returns the bearer token of r, or "" when there is none
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Middleware returns an HTTP middleware that rejects requests whose bearer token does
// not match token. An empty token disables the check.
func Middleware(token string, writeError func(w http.ResponseWriter, status int, code, message string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Preflight requests never carry credentials
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			got := TokenFromRequest(r)
			if got == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
