package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/roster-app/roster/internal/auth"
	"github.com/roster-app/roster/internal/observability"
	"github.com/roster-app/roster/internal/persons"
	"github.com/roster-app/roster/internal/platform/httpx"
	"github.com/roster-app/roster/internal/shared"
	"github.com/roster-app/roster/jobs"
)

const healthTimeout = 2 * time.Second

// HealthCheck probes a dependency; a non-nil error marks it unhealthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Sessions       *auth.Sessions
	AuthHandler    *auth.Handler
	PersonsHandler *persons.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	HealthChecks   []HealthCheck
}

// NewRouter constructs the chi.Router with Roster defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.HealthChecks, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate(params.Sessions, params.Logger))
		params.AuthHandler.MountRoutes(r)
		r.Route("/persons", params.PersonsHandler.MountRoutes)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	return r
}

func healthHandler(checks []HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		results := make([]string, len(checks))
		g, gctx := errgroup.WithContext(ctx)
		for i, check := range checks {
			g.Go(func() error {
				if err := check.Check(gctx); err != nil {
					results[i] = "down"
					return err
				}
				results[i] = "ok"
				return nil
			})
		}
		err := g.Wait()

		body := map[string]any{"status": "ok"}
		deps := make(map[string]string, len(checks))
		for i, check := range checks {
			if results[i] == "" {
				results[i] = "unknown"
			}
			deps[check.Name] = results[i]
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		status := http.StatusOK
		if err != nil {
			logger.Warn("health check failed", slog.Any("error", err))
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
		httpx.JSON(w, status, body)
	}
}
