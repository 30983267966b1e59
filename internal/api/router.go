package api

import (
	"net/http"

	"github.com/Priya8975/billing-reconciler/internal/config"
	"github.com/Priya8975/billing-reconciler/internal/engine"
	"github.com/Priya8975/billing-reconciler/internal/reconciler"
	"github.com/Priya8975/billing-reconciler/internal/store"
	ws "github.com/Priya8975/billing-reconciler/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, pgStore *store.PostgresStore, rec *reconciler.Reconciler, rl *engine.RateLimiter, rq *engine.RetryQueue, cb *engine.CircuitBreaker, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Handlers
	webhookHandler := NewWebhookHandler(rec, rl, cfg.WebhookSecret, cfg.WebhookRatePerSecond)
	eventHandler := NewEventHandler(pgStore, rec)
	subHandler := NewSubscriptionHandler(pgStore)
	metricsHandler := NewMetricsHandler(pgStore, rq, cb, hub)

	// Vendor-facing webhook endpoint
	r.Post("/webhooks/billing", webhookHandler.Receive)

	// WebSocket endpoint for the ops dashboard
	r.Get("/ws", hub.HandleWebSocket)

	// Admin API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)
			r.Get("/{id}", eventHandler.Get)
			r.Post("/{id}/replay", eventHandler.Replay)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", subHandler.List)
			r.Get("/{userID}", subHandler.Get)
		})

		r.Get("/metrics", metricsHandler.Metrics)
	})

	return r
}
