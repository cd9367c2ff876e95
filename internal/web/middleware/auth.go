package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/tuitiondesk/internal/config"
	"github.com/JonMunkholm/tuitiondesk/internal/core"
)

// APIKeyAuth returns middleware that validates the X-API-Key header against
// configured keys. If RequireAPIKey is false, all requests pass through.
// If RequireAPIKey is true but no keys are configured, all requests are rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				deny(w, core.ErrUnauthorized, http.StatusUnauthorized)
				return
			}
			if !isValidAPIKey(apiKey, cfg.APIKeys) {
				slog.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				deny(w, core.ErrForbidden, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isValidAPIKey checks the key against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

// deny writes the same JSON error shape the handlers use.
func deny(w http.ResponseWriter, err error, status int) {
	msg := core.MapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  msg.Message,
		"code":   msg.Code,
		"action": msg.Action,
	})
}
