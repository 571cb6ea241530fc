package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-crm/internal/analytics"
	"github.com/odyssey-erp/odyssey-crm/internal/auth"
	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/deals"
	"github.com/odyssey-erp/odyssey-crm/internal/observability"
	"github.com/odyssey-erp/odyssey-crm/internal/password"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/tasks"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
	"github.com/odyssey-erp/odyssey-crm/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Authenticator func(http.Handler) http.Handler
	Metrics       *observability.Metrics

	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	PasswordHandler  *password.Handler
	ClientsHandler   *clients.Handler
	DealsHandler     *deals.Handler
	TasksHandler     *tasks.Handler
	AnalyticsHandler *analytics.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with the CRM defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:        params.Logger,
		Config:        params.Config,
		Authenticator: params.Authenticator,
		Metrics:       params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "no route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "method "+r.Method+" not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	authLimit := 10
	if params.Config != nil && params.Config.AuthRateLimit > 0 {
		authLimit = params.Config.AuthRateLimit
	}

	if params.AuthHandler != nil || params.UsersHandler != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Use(AnonymousLimiter(authLimit))
			if params.AuthHandler != nil {
				params.AuthHandler.MountRoutes(r)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
		})
	}
	if params.PasswordHandler != nil {
		r.Route("/password", func(r chi.Router) {
			r.Use(AnonymousLimiter(authLimit))
			params.PasswordHandler.MountRoutes(r)
		})
	}
	if params.ClientsHandler != nil {
		r.Route("/clients", params.ClientsHandler.MountRoutes)
	}
	if params.DealsHandler != nil {
		r.Route("/deals", params.DealsHandler.MountRoutes)
	}
	if params.TasksHandler != nil {
		r.Route("/tasks", params.TasksHandler.MountRoutes)
	}
	if params.AnalyticsHandler != nil {
		r.Route("/analytics", params.AnalyticsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
