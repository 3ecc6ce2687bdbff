package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/artpar/trustmeter/ports"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks map[string]ports.Pinger
}

// NewHealthHandler creates a health handler over named backends.
func NewHealthHandler(checks map[string]ports.Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Liveness returns a simple liveness check.
//
//	@Summary		Liveness check
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string	"status: ok"
//	@Router			/health [get]
//	@Router			/health/live [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness pings every backend and reports 503 if any is down.
//
//	@Summary		Readiness check
//	@Description	Pings the database and chain node
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}	"status: ok"
//	@Failure		503	{object}	map[string]interface{}	"status: unhealthy"
//	@Router			/health/ready [get]
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	writeJSON(w, status, body)
}

// VersionInfo describes the running build.
type VersionInfo struct {
	Version string `json:"version"`
	Service string `json:"service"`
	Mode    string `json:"settlement_mode,omitempty"`
}

// NewVersionHandler returns the /version handler.
func NewVersionHandler(info VersionInfo) http.HandlerFunc {
	if info.Service == "" {
		info.Service = "trustmeter"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, info)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
