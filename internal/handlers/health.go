package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/clipstream/backend/internal/logging"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler responds with service health information.
type HealthHandler struct {
	Checks  map[string]HealthCheck
	Timeout time.Duration
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := h.Checks[name](checkCtx)
		cancel()
		if err != nil {
			logging.FromContext(ctx).Warn("health check failed", "check", name, "error", err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	payload := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		payload["status"] = "degraded"
	}
	if len(results) > 0 {
		payload["checks"] = results
	}

	respondJSON(ctx, w, status, payload)
}
