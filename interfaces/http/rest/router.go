package rest

import (
	"context"
	"net/http"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/application/services"
	"bobbin-backend/interfaces/http/rest/handlers"
	"bobbin-backend/interfaces/http/rest/middleware"
	"bobbin-backend/pkg/auth"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// Options tunes the HTTP surface
type Options struct {
	Version            string
	EnableCORS         bool
	AllowedOrigins     []string
	EnableMetrics      bool
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	IdempotencyTTL     time.Duration
}

// Router creates and configures the HTTP router
type Router struct {
	graph       *services.KnowledgeGraph
	store       ports.GraphStore
	verifier    ports.TokenVerifier
	idempotency ports.IdempotencyStore
	limiter     auth.RateLimiter
	breaker     *gobreaker.CircuitBreaker
	errors      *pkgerrors.ErrorHandler
	metrics     *observability.Collector
	options     Options
	logger      *zap.Logger
}

// NewRouter creates a new router instance. limiter, breaker and metrics
// may be nil.
func NewRouter(
	graph *services.KnowledgeGraph,
	store ports.GraphStore,
	verifier ports.TokenVerifier,
	idempotency ports.IdempotencyStore,
	limiter auth.RateLimiter,
	breaker *gobreaker.CircuitBreaker,
	errs *pkgerrors.ErrorHandler,
	metrics *observability.Collector,
	options Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		graph:       graph,
		store:       store,
		verifier:    verifier,
		idempotency: idempotency,
		limiter:     limiter,
		breaker:     breaker,
		errors:      errs,
		metrics:     metrics,
		options:     options,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger, rt.metrics))
	router.Use(rt.errors.Middleware)
	router.Use(rt.versionMiddleware)

	if rt.options.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.options.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.IdempotencyKeyHeader},
			ExposedHeaders:   []string{"X-Request-ID", middleware.IdempotentReplayedHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.options.EnableMetrics && rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.options.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(rt.options.RequestTimeout))
		}
		if rt.breaker != nil {
			r.Use(middleware.CircuitBreaker(rt.breaker, rt.errors))
		}
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(auth.NewIPRateLimiter(rt.limiter), middleware.ByClientIP, rt.options.RateLimitPerMinute, rt.errors, rt.logger))
		}
		r.Use(middleware.Authenticate(rt.verifier, rt.errors, rt.logger))
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(auth.NewUserRateLimiter(rt.limiter), middleware.ByUser, rt.options.RateLimitPerMinute, rt.errors, rt.logger))
		}
		if rt.idempotency != nil {
			r.Use(middleware.Idempotency(rt.idempotency, rt.options.IdempotencyTTL, rt.errors, rt.logger))
		}

		r.Get("/me", rt.currentUser)

		r.Route("/artifacts", func(r chi.Router) {
			h := handlers.NewArtifactHandler(rt.graph, rt.errors, rt.logger)
			r.Get("/", h.ListArtifacts)
			r.Post("/", h.CreateArtifact)
			r.Get("/{artifactID}", h.GetArtifact)
			r.Patch("/{artifactID}", h.UpdateArtifact)
			r.Delete("/{artifactID}", h.DeleteArtifact)
			r.Post("/{artifactID}/concepts", h.DeriveConcepts)
		})

		r.Route("/concepts", func(r chi.Router) {
			h := handlers.NewConceptHandler(rt.graph, rt.errors, rt.logger)
			r.Get("/", h.ListConcepts)
			r.Post("/", h.CreateConcept)
			r.Get("/{conceptID}", h.GetConcept)
			r.Patch("/{conceptID}", h.UpdateConcept)
			r.Delete("/{conceptID}", h.DeleteConcept)
		})

		connections := handlers.NewConnectionHandler(rt.graph, rt.errors, rt.logger)
		r.Route("/connections", func(r chi.Router) {
			r.Get("/", connections.ListConnections)
			r.Post("/", connections.CreateConnection)
			r.Get("/{connectionID}", connections.GetConnection)
			r.Patch("/{connectionID}", connections.UpdateConnection)
			r.Delete("/{connectionID}", connections.DeleteConnection)
			r.Post("/{connectionID}/confirm", connections.ConfirmConnection)
		})
		r.Post("/suggestions", connections.SuggestConnections)

		r.Route("/conversations", func(r chi.Router) {
			h := handlers.NewConversationHandler(rt.graph, rt.errors, rt.logger)
			r.Get("/", h.ListConversations)
			r.Post("/", h.CreateConversation)
			r.Get("/{conversationID}", h.GetConversation)
			r.Patch("/{conversationID}", h.UpdateConversation)
			r.Delete("/{conversationID}", h.DeleteConversation)
			r.Post("/{conversationID}/messages", h.AppendMessage)
		})
	})

	return router
}

// healthCheck handles liveness requests
func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports ready only when the store answers
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := rt.store.Ping(ctx); err != nil {
		rt.logger.Warn("Readiness check failed", zap.Error(err))
		rt.errors.Handle(w, r, pkgerrors.NewUnavailableError("store").WithCause(err))
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// currentUser echoes the verified caller
func (rt *Router) currentUser(w http.ResponseWriter, r *http.Request) {
	user, err := rt.graph.CurrentUser(r.Context())
	if err != nil {
		rt.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, user)
}

// versionMiddleware adds the API version header to all responses
func (rt *Router) versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v1")
		if rt.options.Version != "" {
			w.Header().Set("X-Server-Version", rt.options.Version)
		}
		next.ServeHTTP(w, r)
	})
}
