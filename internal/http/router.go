// Package httpapi assembles the chi router: shared middleware, the public
// API, the admin-token routes and the operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"unitedhelp/pkg/platform/httputil"
	"unitedhelp/pkg/platform/middleware/admin"
	"unitedhelp/pkg/platform/middleware/auth"
	"unitedhelp/pkg/platform/middleware/metadata"
	"unitedhelp/pkg/platform/middleware/request"
	"unitedhelp/pkg/platform/middleware/requesttime"
)

// Registrar mounts a feature's public routes.
type Registrar interface {
	Register(r chi.Router)
}

// AdminRegistrar mounts routes guarded by the admin token.
type AdminRegistrar interface {
	RegisterAdmin(r chi.Router)
}

type Config struct {
	CORSOrigins []string
	AdminToken  string
	Validator   auth.TokenValidator
	Logger      *slog.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// ReadyChecks back /readyz. Any failing check reports 503.
	ReadyChecks map[string]func(context.Context) error
}

// NewRouter builds the server handler. Public routes authenticate bearer
// tokens when present; handlers that need a user reject anonymous calls.
func NewRouter(cfg Config, public []Registrar, admins []AdminRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recoverer(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(cors.Handler(corsOptions(cfg.CORSOrigins)))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.ReadyChecks, cfg.Logger))
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)

	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(cfg.Validator, cfg.Logger))
		for _, reg := range public {
			reg.Register(r)
		}
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		for _, reg := range admins {
			reg.RegisterAdmin(r)
		}
	})
	return r
}

func readiness(checks map[string]func(context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := make(map[string]string, len(checks))
		code := http.StatusOK
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
				status[name] = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httputil.WriteJSON(w, code, status)
	}
}

func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			request.HeaderRequestID,
		},
		ExposedHeaders:   []string{request.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}
	// Credentials cannot be combined with a wildcard origin.
	for _, o := range origins {
		if o == "*" {
			opts.AllowCredentials = false
		}
	}
	return opts
}
