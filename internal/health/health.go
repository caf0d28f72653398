// Package health serves liveness endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check returns error when component is unhealthy.
type Check func(ctx context.Context) error

// Handler responds 200 when all checks pass and 503 otherwise.
type Handler struct {
	checks  map[string]Check
	timeout time.Duration
}

func NewHandler(checks map[string]Check) *Handler {
	return &Handler{checks: checks, timeout: 5 * time.Second}
}

type response struct {
	Status string            `json:"status"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	resp := response{Status: "ok"}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[name] = err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if len(resp.Errors) > 0 {
		resp.Status = "unavailable"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
