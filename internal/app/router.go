package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	aginghttp "github.com/odyssey-erp/odyssey-aging/internal/aging/http"
	"github.com/odyssey-erp/odyssey-aging/internal/observability"
	"github.com/odyssey-erp/odyssey-aging/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-aging/jobs"
)

// HealthCheck checks one backing service.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Metrics      *observability.Metrics
	AgingHandler *aginghttp.Handler
	JobHandler   *jobs.Handler
	// Checks are reported by /healthz; a failing check degrades but does not
	// fail the health check because every backing service is optional.
	Checks map[string]HealthCheck
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.Checks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	limit := aginghttp.RateLimit{}
	if params.Config != nil {
		limit = aginghttp.RateLimit{Requests: params.Config.ReportRateLimit, Window: params.Config.ReportRateWindow}
	}
	params.AgingHandler.MountRoutes(r, limit)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := "ok"
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = "degraded"
				continue
			}
			deps[name] = "ok"
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"status": status, "dependencies": deps})
	}
}
