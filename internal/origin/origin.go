// Package origin checks Origin header of WebSocket upgrade requests.
package origin

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// PatternChecker allows origins matching one of glob patterns. Without
// patterns only same host origins are allowed.
type PatternChecker struct {
	allowedOrigins []glob.Glob
}

func NewPatternChecker(allowedOrigins []string) (*PatternChecker, error) {
	globs := make([]glob.Glob, 0, len(allowedOrigins))
	for _, pattern := range allowedOrigins {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("malformed origin pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return &PatternChecker{allowedOrigins: globs}, nil
}

// Check returns error when request Origin is not authorized. Requests
// without Origin header are from non-browser clients and allowed.
func (c *PatternChecker) Check(r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	if len(c.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err == nil && strings.EqualFold(u.Host, r.Host) {
			return nil
		}
		return fmt.Errorf("request Origin %s does not match host %s", origin, r.Host)
	}
	lowered := strings.ToLower(origin)
	for _, pattern := range c.allowedOrigins {
		if pattern.Match(lowered) {
			return nil
		}
	}
	return fmt.Errorf("request Origin %s is not authorized", origin)
}

// CheckOrigin fits websocket.Upgrader.
func (c *PatternChecker) CheckOrigin(r *http.Request) bool {
	return c.Check(r) == nil
}
