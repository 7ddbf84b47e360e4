package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"mindboard/application/commands/bus"
	"mindboard/application/ports"
	querybus "mindboard/application/queries/bus"
	"mindboard/interfaces/http/rest/handlers"
	"mindboard/interfaces/http/rest/middleware"
	"mindboard/pkg/clock"
	"mindboard/pkg/common"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/observability"
	"mindboard/pkg/ratelimit"
)

// readyTimeout bounds the dependency probe behind /ready
const readyTimeout = 3 * time.Second

// Options tune the router's outer surface
type Options struct {
	EnableCORS    bool
	CORSOrigins   []string
	EnableMetrics bool
	// Debug exposes error causes in responses
	Debug bool
	// Ready probes dependencies; nil means always ready
	Ready func(ctx context.Context) error
	// SuggestLimiter bounds suggestion generation per session; nil disables it
	SuggestLimiter ratelimit.Limiter
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	store      ports.BoardStore
	clock      clock.Clock
	metrics    *observability.Collector
	opts       Options
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	store ports.BoardStore,
	clk clock.Clock,
	metrics *observability.Collector,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		store:      store,
		clock:      clk,
		metrics:    metrics,
		opts:       opts,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	errs := pkgerrors.NewErrorHandler(rt.logger.Named("http"), rt.opts.Debug)
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.opts.EnableMetrics {
		router.Use(middleware.Metrics(rt.metrics))
	}
	router.Use(versionMiddleware)

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", common.SessionHeader},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Stored boards, independent of any session
		r.Route("/boards", func(r chi.Router) {
			storeHandler := handlers.NewStoreHandler(rt.store, rt.queryBus, rt.clock, errs, rt.logger)
			r.Get("/", storeHandler.ListBoards)
			r.Get("/{boardID}", storeHandler.GetBoard)
			r.Put("/{boardID}", storeHandler.PutBoard)
		})

		// The active board of the session named by X-Session-ID
		r.Route("/session/board", func(r chi.Router) {
			r.Use(middleware.RequireSession(errs))

			boardHandler := handlers.NewBoardHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
			r.Post("/", boardHandler.OpenBoard)
			r.Get("/", boardHandler.GetBoard)
			r.Delete("/", boardHandler.CloseBoard)
			r.Post("/save", boardHandler.SaveBoard)
			r.Put("/name", boardHandler.RenameBoard)
			r.Post("/undo", boardHandler.Undo)
			r.Post("/redo", boardHandler.Redo)
			r.Post("/layout", boardHandler.ApplyLayout)

			nodeHandler := handlers.NewNodeHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
			r.Post("/nodes", nodeHandler.AddNode)
			r.Put("/nodes/{nodeID}", nodeHandler.UpdateNode)
			r.Delete("/nodes/{nodeID}", nodeHandler.DeleteNode)
			r.Post("/edges", nodeHandler.ConnectNodes)
			r.Get("/surface", nodeHandler.GetSurface)
			r.Post("/changes", nodeHandler.ApplyChanges)

			suggestionHandler := handlers.NewSuggestionHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
			r.Get("/context", suggestionHandler.GetContext)
			generate := http.Handler(http.HandlerFunc(suggestionHandler.Generate))
			if rt.opts.SuggestLimiter != nil {
				generate = middleware.RateLimit(rt.opts.SuggestLimiter, errs, rt.logger)(generate)
			}
			r.Method(http.MethodPost, "/suggestions", generate)
			r.Post("/suggestions/apply", suggestionHandler.Apply)

			transferHandler := handlers.NewTransferHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
			r.Get("/export", transferHandler.Export)
			r.Post("/import", transferHandler.Import)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck probes the remote store
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
		defer cancel()
		if err := rt.opts.Ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v1")
		next.ServeHTTP(w, r)
	})
}
