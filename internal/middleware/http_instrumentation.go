package middleware

import (
	"net/http"
	"strconv"

	"github.com/windi-messenger/chathub/internal/metrics"
)

// HTTPServerInstrumentation counts incoming HTTP requests. Durations are not
// collected since WebSocket handler serves long-living connections.
func HTTPServerInstrumentation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &logResponseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rw.Status())).Inc()
	})
}
