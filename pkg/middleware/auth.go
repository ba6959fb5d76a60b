package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// Auth middleware gates requests behind a static API key set. Keys are
// accepted either as "Authorization: Bearer <key>" or "X-API-Key: <key>".
// An empty key set disables authentication entirely.
func Auth(keys []string) func(http.Handler) http.Handler {
	keySet := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			keySet[key] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keySet) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get("X-API-Key")
			if presented == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					presented = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if !keyAccepted(keySet, presented) {
				slog.Warn("Request rejected: invalid or missing API key",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"correlation_id", GetCorrelationID(r.Context()),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func keyAccepted(keySet map[string]struct{}, presented string) bool {
	if presented == "" {
		return false
	}
	// Constant-time comparison against each configured key
	for key := range keySet {
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 {
			return true
		}
	}
	return false
}
