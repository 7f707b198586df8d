package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/boloapp/order-service/internal/actor"
	"github.com/boloapp/order-service/internal/clients"
	"github.com/boloapp/order-service/internal/config"
	"github.com/boloapp/order-service/internal/service"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/pkg/logger"
	"github.com/boloapp/order-service/pkg/middleware"
)

// Dependencies are the collaborators the HTTP layer serves. The composition
// root in cmd/api wires them; tests substitute the memory backend.
type Dependencies struct {
	OrderService *service.OrderService
	DeadLetters  store.DeadLetterStore
	Notifier     *clients.NotifierClient
	Verifier     *actor.TokenVerifier
	RateLimiter  *middleware.RateLimiter
}

// Server is the HTTP front of the order service.
type Server struct {
	config      *config.Config
	logger      logger.Logger
	router      *mux.Router
	httpServer  *http.Server
	orders      *service.OrderService
	deadLetters store.DeadLetterStore
	notifier    *clients.NotifierClient
	verifier    *actor.TokenVerifier
	rateLimiter *middleware.RateLimiter
}

// NewServer creates the API server around the given dependencies.
func NewServer(cfg *config.Config, deps Dependencies, log logger.Logger) *Server {
	r := mux.NewRouter()

	server := &Server{
		config: cfg,
		logger: log,
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		orders:      deps.OrderService,
		deadLetters: deps.DeadLetters,
		notifier:    deps.Notifier,
		verifier:    deps.Verifier,
		rateLimiter: deps.RateLimiter,
	}

	server.setupRoutes()
	return server
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	if s.rateLimiter != nil {
		s.router.Use(s.rateLimiter.Middleware)
	}
	if s.verifier != nil {
		s.router.Use(actor.Middleware(s.verifier, s.logger))
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	api.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.getOrderByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/history", s.getOrderHistoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", s.updateOrderStatusHandler).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id}/payment-status", s.updatePaymentStatusHandler).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id}/payment-method", s.updatePaymentMethodHandler).Methods(http.MethodPatch)

	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()
	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breakers/notifier", s.getNotifierBreakerHandler).Methods(http.MethodGet)
	admin.HandleFunc("/rate-limits", s.getRateLimitMetricsHandler).Methods(http.MethodGet)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
