package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/signon/internal/api/handler"
	"github.com/daap14/signon/internal/api/middleware"
	"github.com/daap14/signon/internal/auth"
	"github.com/daap14/signon/internal/session"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Auth     *auth.Module
	Sessions *session.Manager
	DBPinger handler.DBPinger
	Gatherer prometheus.Gatherer
	Version  string
}

// NewRouter creates and configures a Chi router with all middleware and routes.
// The sign-in and sign-out routes are not registered here; the auth
// middleware wires them per request.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(deps.Sessions.Middleware)
	r.Use(middleware.Auth(deps.Auth))

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if deps.Gatherer != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	formHandler := handler.NewFormHandler()
	r.Get("/auth/form", formHandler.ServeHTTP)

	meHandler := handler.NewMeHandler()
	r.Route("/me", func(r chi.Router) {
		r.Use(middleware.RequireAuth())
		r.Get("/", meHandler.Get)
		r.Get("/permissions/{name}", meHandler.Permission)
	})

	return r
}
