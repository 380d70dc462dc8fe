package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nftform/internal/platform/metrics"
	"nftform/internal/registration/handler"
	"nftform/pkg/platform/httputil"
	"nftform/pkg/platform/middleware/cors"
	"nftform/pkg/platform/middleware/metadata"
	"nftform/pkg/platform/middleware/request"
	"nftform/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

// NewRouter wires the public endpoints behind the shared middleware chain.
// CORS runs before routing so preflight requests never reach a handler.
func NewRouter(h *handler.Handler, logger *slog.Logger, httpMetrics *metrics.HTTPMetrics, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))
	r.Use(request.Recovery(logger))
	r.Use(request.Latency(httpMetrics))
	r.Use(cors.AllowAll)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(handler.MethodNotAllowed)

	h.Register(r)
	r.Get("/healthz", healthHandler(logger, checks))
	return r
}

func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, status)
	}
}
