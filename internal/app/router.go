package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viper-platform/raps/internal/audit"
	"github.com/viper-platform/raps/internal/auth"
	"github.com/viper-platform/raps/internal/members"
	"github.com/viper-platform/raps/internal/observability"
	"github.com/viper-platform/raps/internal/permissions"
	"github.com/viper-platform/raps/internal/roles"
	"github.com/viper-platform/raps/internal/rsop"
	"github.com/viper-platform/raps/internal/shared"
	"github.com/viper-platform/raps/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	RSOPHandler        *rsop.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *permissions.Handler
	MembersHandler     *members.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
	Pool               *pgxpool.Pool
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with RAPS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.RSOPHandler != nil {
		r.Route("/rsop", func(r chi.Router) {
			params.RSOPHandler.MountRoutes(r)
		})
	}
	if params.RolesHandler != nil {
		r.Route("/roles", func(r chi.Router) {
			params.RolesHandler.MountRoutes(r)
		})
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", func(r chi.Router) {
			params.PermissionsHandler.MountRoutes(r)
		})
	}
	if params.MembersHandler != nil {
		r.Route("/members", func(r chi.Router) {
			params.MembersHandler.MountRoutes(r)
		})
	}
	if params.AuditHandler != nil {
		r.Route("/audit", func(r chi.Router) {
			params.AuditHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
