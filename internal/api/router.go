package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nekidev/nekos-api/docs/swagger"
	"github.com/nekidev/nekos-api/internal/apply"
	"github.com/nekidev/nekos-api/internal/auth"
	"github.com/nekidev/nekos-api/internal/logging"
	"github.com/nekidev/nekos-api/internal/ratelimit"
	"github.com/nekidev/nekos-api/internal/registry"
)

// Deps holds all dependencies required to build the HTTP router.
type Deps struct {
	Registry *registry.Registry
	// Engine is optional; without it the status endpoint answers 404.
	Engine     *apply.Engine
	BearerAuth *auth.BearerMiddleware
	// Limiter is optional; without it the /v2 routes are not rate limited.
	Limiter        *ratelimit.Limiter
	APIVersion     string
	AllowedOrigins []string
}

// NewRouter assembles the full chi router with all middleware and routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "Location"},
		AllowCredentials: true,
	}).Handler)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Mount("/v2", NewAPIRouter(deps))
	return r
}

// NewAPIRouter creates the chi sub-router mounted at /v2. Every route shares
// the "api" rate-limit group.
func NewAPIRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Middleware)
	}

	r.Get("/", newEndpointsAPIHandler(deps.APIVersion).Get)
	r.Route("/schema", func(r chi.Router) {
		registerLineageRoutes(r, deps.Registry, deps.Engine, deps.BearerAuth)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed here")
	})
	return r
}
