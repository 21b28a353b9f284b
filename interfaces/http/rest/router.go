package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"mindo/application/services"
	"mindo/interfaces/http/rest/handlers"
	"mindo/interfaces/http/rest/middleware"
	"mindo/pkg/auth"
	"mindo/pkg/errors"
	"mindo/pkg/observability"
)

// RouterConfig holds the HTTP surface settings
type RouterConfig struct {
	EnableCORS      bool
	AllowedOrigins  []string
	Lambda          bool
	Debug           bool
	RateLimit       int
	RateLimitWindow string
}

// Router creates and configures the HTTP router
type Router struct {
	cfg        RouterConfig
	workspaces *services.Workspaces
	layout     *services.LayoutService
	reviews    *services.ReviewService
	analytics  *services.AnalyticsService
	assets     *services.AssetService
	validator  *auth.JWTValidator
	limiter    auth.RateLimiter
	metrics    *observability.Collector
	files      http.Handler
	ready      func(ctx context.Context) error
	logger     *zap.Logger
}

// RouterOption customises a Router
type RouterOption func(*Router)

// WithMetrics exposes /metrics and records every request
func WithMetrics(c *observability.Collector) RouterOption {
	return func(rt *Router) { rt.metrics = c }
}

// WithAssetFiles serves locally stored media under /assets
func WithAssetFiles(h http.Handler) RouterOption {
	return func(rt *Router) { rt.files = h }
}

// WithReadiness sets the check behind /ready
func WithReadiness(check func(ctx context.Context) error) RouterOption {
	return func(rt *Router) { rt.ready = check }
}

// NewRouter creates a new router instance
func NewRouter(
	cfg RouterConfig,
	workspaces *services.Workspaces,
	layout *services.LayoutService,
	reviews *services.ReviewService,
	analytics *services.AnalyticsService,
	assets *services.AssetService,
	validator *auth.JWTValidator,
	limiter auth.RateLimiter,
	logger *zap.Logger,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:        cfg,
		workspaces: workspaces,
		layout:     layout,
		reviews:    reviews,
		analytics:  analytics,
		assets:     assets,
		validator:  validator,
		limiter:    limiter,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errs := errors.NewErrorHandler(rt.logger, rt.cfg.Debug)
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.cfg.EnableCORS {
		origins := rt.cfg.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000", "http://localhost:5173"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	if rt.files != nil {
		router.Mount("/assets", http.StripPrefix("/assets", rt.files))
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.Lambda {
			r.Use(middleware.AuthenticateForLambda(errs))
		} else {
			r.Use(middleware.Authenticate(rt.validator, errs, rt.logger))
		}
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter, errs, rt.cfg.RateLimit, rt.cfg.RateLimitWindow, rt.logger))
		}

		graphHandler := handlers.NewGraphHandler(rt.workspaces, rt.layout, errs, rt.logger)
		r.Route("/graph", func(r chi.Router) {
			r.Get("/", graphHandler.GetGraph)
			r.Post("/reload", graphHandler.ReloadGraph)
			r.Post("/due", graphHandler.MarkDue)
			r.Post("/organize", graphHandler.Organize)
		})

		nodeHandler := handlers.NewNodeHandler(rt.workspaces, rt.assets, errs, rt.logger)
		unitHandler := handlers.NewMemoryUnitHandler(rt.workspaces, errs, rt.logger)
		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodeHandler.CreateNode)
			r.Post("/bulk-delete", nodeHandler.BulkDeleteNodes)
			r.Route("/{nodeID}", func(r chi.Router) {
				r.Get("/", nodeHandler.GetNode)
				r.Patch("/", nodeHandler.UpdateNode)
				r.Delete("/", nodeHandler.DeleteNode)
				r.Put("/position", nodeHandler.MoveNode)
				r.Put("/dimensions", nodeHandler.ResizeNode)
				r.Post("/activate", nodeHandler.ActivateNode)
				r.Post("/unlock", nodeHandler.UnlockNode)
				r.Post("/media", nodeHandler.UploadMedia)

				r.Post("/memory-units", unitHandler.CreateMemoryUnit)
				r.Patch("/memory-units/{unitID}", unitHandler.UpdateMemoryUnit)
				r.Delete("/memory-units/{unitID}", unitHandler.DeleteMemoryUnit)
			})
		})

		edgeHandler := handlers.NewEdgeHandler(rt.workspaces, errs, rt.logger)
		r.Route("/edges", func(r chi.Router) {
			r.Post("/", edgeHandler.CreateEdge)
			r.Route("/{edgeID}", func(r chi.Router) {
				r.Put("/", edgeHandler.UpdateEdge)
				r.Delete("/", edgeHandler.DeleteEdge)
				r.Post("/solidify", edgeHandler.SolidifyEdge)
				r.Post("/cancel", edgeHandler.CancelEdge)
				r.Put("/handles", edgeHandler.UpdateHandles)
			})
		})

		reviewHandler := handlers.NewReviewHandler(rt.reviews, errs, rt.logger)
		r.Route("/review", func(r chi.Router) {
			r.Get("/", reviewHandler.GetState)
			r.Post("/selection", reviewHandler.StartSelection)
			r.Delete("/selection", reviewHandler.CancelSelection)
			r.Post("/selection/toggle", reviewHandler.ToggleDraft)
			r.Post("/selection/confirm", reviewHandler.ConfirmSelection)
			r.Post("/sessions", reviewHandler.StartSession)
			r.Delete("/sessions/current", reviewHandler.EndSession)
			r.Post("/next", reviewHandler.Next)
			r.Post("/prev", reviewHandler.Prev)
			r.Post("/grade", reviewHandler.SubmitGrade)
			r.Post("/mastery", reviewHandler.ConfirmMastery)
		})

		analyticsHandler := handlers.NewAnalyticsHandler(rt.analytics, errs, rt.logger)
		r.Get("/analytics", analyticsHandler.GetDashboard)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports whether the remote store is reachable
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.ready != nil {
		if err := rt.ready(req.Context()); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
