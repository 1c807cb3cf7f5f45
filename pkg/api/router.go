// Package api provides HTTP API server components.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ekagra1602/NeuraVault-MCP/config"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/handlers"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/middleware"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/response"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Memory handles timeline and retrieval endpoints
	Memory *handlers.MemoryHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Utils handles text utility endpoints
	Utils *handlers.UtilsHandler

	// WebSocket streams store mutation events
	WebSocket *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound,
			"resource not found", middleware.GetRequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, response.ErrCodeMethodNotAllowed,
			"method not allowed", middleware.GetRequestID(r.Context()))
	})

	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Memory != nil {
			r.Route("/memory/{userID}", func(r chi.Router) {
				r.Post("/", handlers.Memory.StoreMemory)
				r.Get("/", handlers.Memory.GetTimeline)
				r.Delete("/", handlers.Memory.DeleteAll)
				r.Get("/search", handlers.Memory.SearchMemory)
				r.Get("/relevant", handlers.Memory.Relevant)
				r.Get("/relevant_diverse", handlers.Memory.RelevantDiverse)
				r.Get("/relevant_decay", handlers.Memory.RelevantDecay)
				r.Get("/relevant_window", handlers.Memory.RelevantWindow)
				r.Get("/relevant_pack", handlers.Memory.RelevantPack)
				r.Get("/stats", handlers.Memory.GetStats)
			})
			r.Get("/users", handlers.Memory.ListUsers)
		}

		if handlers.Utils != nil {
			r.Post("/utils/text-stats", handlers.Utils.TextStats)
		}

		if handlers.WebSocket != nil {
			r.Get("/ws", handlers.WebSocket.ServeHTTP)
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
		r.Get("/version", handlers.Health.Version)
	}
}
