// Package httptransport composes the HTTP surface. Handlers own their
// routes; this package only decides which middleware guards them.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	compliancehandler "clearance/internal/compliance/handler"
	gatehandler "clearance/internal/gate/handler"
	overridehandler "clearance/internal/override/handler"
	"clearance/pkg/platform/httputil"
	adminmw "clearance/pkg/platform/middleware/admin"
	authmw "clearance/pkg/platform/middleware/auth"
	"clearance/pkg/platform/middleware/metadata"
	request "clearance/pkg/platform/middleware/request"
	"clearance/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces the router mounts.
type Deps struct {
	Logger          *slog.Logger
	Validator       authmw.JWTValidator
	Metrics         http.Handler
	Compliance      *compliancehandler.Handler
	Gate            *gatehandler.Handler
	Overrides       *overridehandler.Handler
	Health          map[string]HealthCheck
	// OverrideLimiter throttles the override routes per caller. Optional.
	OverrideLimiter func(http.Handler) http.Handler
}

// NewRouter wires all public endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(d.Logger))
	r.Use(request.Recover(d.Logger))

	r.Get("/healthz", healthHandler(d.Health))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Validator, d.Logger))
		d.Compliance.Register(r)
		d.Gate.Register(r)

		r.Group(func(r chi.Router) {
			if d.OverrideLimiter != nil {
				r.Use(d.OverrideLimiter)
			}
			d.Overrides.Register(r)

			r.Group(func(r chi.Router) {
				r.Use(adminmw.RequireOverrideManager(d.Logger))
				d.Overrides.RegisterAdmin(r)
			})
		})
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
