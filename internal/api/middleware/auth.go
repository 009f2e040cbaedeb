// Package middleware holds HTTP middleware for the API server.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ballast/internal/api/response"
	"ballast/internal/core"
)

// errUnauthorized is local to the HTTP layer; auth failure is not a
// domain condition.
var errUnauthorized = &core.Error{
	Code:    "UNAUTHORIZED",
	Message: "invalid or missing API key",
}

// APIKeyAuth returns middleware that validates the configured API key
// against the X-API-Key header or an "Authorization: Bearer" token.
// If apiKey is empty, authentication is disabled.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					provided = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if provided == "" {
				response.Error(w, http.StatusUnauthorized, errUnauthorized)
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				response.Error(w, http.StatusUnauthorized, errUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
