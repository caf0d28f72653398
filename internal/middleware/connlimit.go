package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/windi-messenger/chathub/internal/metrics"
)

// ConnLimit rejects new connections when server already has limit of
// clients or when connection rate is exceeded.
type ConnLimit struct {
	numClients func() int
	limit      int
	limiter    *rate.Limiter
}

// NewConnLimit creates ConnLimit. Zero limit or rate disables corresponding check.
func NewConnLimit(numClients func() int, limit int, ratePerSecond int) *ConnLimit {
	c := &ConnLimit{numClients: numClients, limit: limit}
	if ratePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond)
	}
	return c
}

func (c *ConnLimit) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.limit > 0 && c.numClients() >= c.limit {
			metrics.ConnLimitReached.Inc()
			log.Warn().Int("limit", c.limit).Msg("node connection limit reached")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			metrics.ConnLimitReached.Inc()
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		h.ServeHTTP(w, r)
	})
}
