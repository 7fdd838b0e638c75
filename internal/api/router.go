// Package api wires the HTTP surface: public probes and metrics, and the
// authenticated /api/v1 routes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/brandaudit/internal/analysis"
	"github.com/nikhilbhutani/brandaudit/internal/api/handlers"
	"github.com/nikhilbhutani/brandaudit/internal/api/middleware"
	"github.com/nikhilbhutani/brandaudit/internal/auth"
	"github.com/nikhilbhutani/brandaudit/internal/config"
)

// Store is the persistence the API handlers use.
type Store interface {
	handlers.AuditStore
	handlers.RecommendationStore
}

// Deps are the services behind the routes. Generator may be nil, which
// limits ad-hoc analysis to supplied answers.
type Deps struct {
	Store     Store
	Queue     handlers.AuditQueue
	Reports   handlers.Reporter
	Templates handlers.TemplateLister
	Analyzer  *analysis.Analyzer
	Generator handlers.AnswerGenerator
	Models    handlers.ModelLister
	Health    map[string]handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	jwt  *auth.JWTMiddleware
	rl   *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
		jwt:  auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		rl:   middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// RateLimiter exposes the limiter so the caller can run its cleanup loop.
func (rt *Router) RateLimiter() *middleware.RateLimiter {
	return rt.rl
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	// Probes and metrics (no auth, no rate limit)
	health := handlers.NewHealthHandler(rt.deps.Health)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	auditH := handlers.NewAuditHandler(rt.deps.Store, rt.deps.Queue, rt.deps.Reports)
	recH := handlers.NewRecommendationHandler(rt.deps.Store)
	templateH := handlers.NewTemplateHandler(rt.deps.Templates)
	analyzeH := handlers.NewAnalyzeHandler(rt.deps.Analyzer, rt.deps.Generator)
	modelH := handlers.NewModelHandler(rt.deps.Models)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.rl.Limit)
		r.Use(rt.jwt.Authenticate)
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Route("/audits", func(r chi.Router) {
			r.Post("/", auditH.Create)
			r.Get("/", auditH.List)
			r.Get("/{id}", auditH.Get)
			r.Post("/{id}/run", auditH.Run)
			r.Get("/{id}/dashboard", auditH.Dashboard)
			r.Get("/{id}/trend", auditH.Trend)
			r.Get("/{id}/recommendations", auditH.Recommendations)
		})

		r.Patch("/recommendations/{id}", recH.UpdateStatus)
		r.Get("/templates", templateH.List)
		r.Get("/models", modelH.List)
		r.Post("/analyze", analyzeH.Analyze)
	})

	return r
}
