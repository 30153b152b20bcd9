// Package httptransport assembles the HTTP surface: the shared middleware
// chain, the authenticated /api group, the admin-token /admin group and the
// operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeledger/internal/platform/metrics"
	"tradeledger/pkg/platform/httputil"
	"tradeledger/pkg/platform/middleware/admin"
	authmw "tradeledger/pkg/platform/middleware/auth"
	"tradeledger/pkg/platform/middleware/metadata"
	"tradeledger/pkg/platform/middleware/ratelimit"
	"tradeledger/pkg/platform/middleware/request"
	"tradeledger/pkg/platform/middleware/requesttime"
)

// Registrar mounts a module's routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Validator  authmw.JWTValidator
	AdminToken string
	// AdminTokenHash, when set, replaces AdminToken with a bcrypt check.
	AdminTokenHash string

	// RateLimiter, when set, throttles /api per authenticated user.
	RateLimiter *ratelimit.Limiter
	// API handlers are mounted under /api behind bearer authentication.
	API []Registrar
	// Admin handlers are mounted under /admin behind the admin token.
	Admin  []Registrar
	Health map[string]HealthCheck
}

func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(request.AccessLog(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(requesttime.Middleware)

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Validator, cfg.Logger))
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware(cfg.Logger))
		}
		for _, h := range cfg.API {
			h.Register(r)
		}
	})

	r.Route("/admin", func(r chi.Router) {
		if cfg.AdminTokenHash != "" {
			r.Use(admin.RequireAdminTokenHash(cfg.AdminTokenHash, cfg.Logger))
		} else {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		}
		for _, h := range cfg.Admin {
			h.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
