package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// Post checks that handler called via POST HTTP method.
func Post(h http.Handler) http.Handler {
	return Method(h, http.MethodPost)
}

// Method allows only listed methods. OPTIONS passes through for CORS preflight.
func Method(h http.Handler, methods ...string) http.Handler {
	allow := strings.Join(methods, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && !slices.Contains(methods, r.Method) {
			w.Header().Set("Allow", allow)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}
