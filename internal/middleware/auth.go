package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// APIKeyAuth authorizes server API requests. API key is extracted from
// X-API-Key header, then from Authorization header (Authorization: apikey
// <KEY>), then from api_key URL query parameter.
type APIKeyAuth struct {
	key string
}

func NewAPIKeyAuth(key string) *APIKeyAuth {
	return &APIKeyAuth{key: key}
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (a *APIKeyAuth) valid(r *http.Request) bool {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return secureCompare(a.key, key)
	}
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) == 2 && strings.EqualFold(parts[0], "apikey") {
			return secureCompare(a.key, parts[1])
		}
	}
	if r.URL.RawQuery != "" {
		return secureCompare(a.key, r.URL.Query().Get("api_key"))
	}
	return false
}

func (a *APIKeyAuth) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.key == "" {
			log.Error().Msg("API key is empty")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !a.valid(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}
