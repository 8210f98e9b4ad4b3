package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/peerix/ixsync/internal/logger"
	"github.com/peerix/ixsync/pkg/api/handlers"
	"github.com/peerix/ixsync/pkg/importer"
	"github.com/peerix/ixsync/pkg/metrics"
	"github.com/peerix/ixsync/pkg/registry/store"
)

// Deps are the collaborators the HTTP surface exposes.
type Deps struct {
	Store      *store.GORMStore
	Importer   *importer.Importer
	PostMortem *importer.PostMortem
	Metrics    *metrics.Metrics
}

// NewRouter creates and configures the chi router with all middleware
// and routes.
//
// Routes:
//   - GET  /health - Liveness probe
//   - GET  /health/ready - Readiness probe (database ping)
//   - GET  /metrics - Prometheus metrics
//   - POST /api/v1/ixlans/{id}/import - Trigger a reconciliation run
//   - GET  /api/v1/networks/{asn}/postmortem - Import history of a network
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.Store)
	importHandler := handlers.NewImportHandler(deps.Importer, deps.PostMortem)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ixlans/{id}/import", importHandler.TriggerImport)
		r.Get("/networks/{asn}/postmortem", importHandler.Postmortem)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the
// internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		)
	})
}
