package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/peerix/ixsync/pkg/registry/store"
)

// HealthHandler handles the unauthenticated health probes.
type HealthHandler struct {
	store *store.GORMStore
}

// NewHealthHandler creates a new health handler. The store may be nil,
// in which case readiness reports unhealthy.
func NewHealthHandler(st *store.GORMStore) *HealthHandler {
	return &HealthHandler{store: st}
}

// Liveness handles GET /health. It succeeds as long as the HTTP server
// is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "ixsync",
	}))
}

// Readiness handles GET /health/ready. Ready means the registry
// database answers a ping.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry database not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry database unreachable: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"database_latency": time.Since(start).String(),
	}))
}
