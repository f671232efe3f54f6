package httpapi

import (
	"crypto/subtle"
	"net/http"

	"feedback-app/internal/config"
)

// APIKeyAuth guards the JSON read API. Requests must carry one of the
// configured keys in X-API-Key.
func APIKeyAuth(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, "api key required", http.StatusUnauthorized)
				return
			}
			ok := false
			for _, k := range cfg.APIKeys {
				if k.Key != "" && subtle.ConstantTimeCompare([]byte(k.Key), []byte(key)) == 1 {
					ok = true
					break
				}
			}
			if !ok {
				http.Error(w, "invalid api key", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
