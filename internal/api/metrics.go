package api

import (
	"net/http"

	"github.com/Priya8975/billing-reconciler/internal/engine"
	"github.com/Priya8975/billing-reconciler/internal/reconciler"
	"github.com/Priya8975/billing-reconciler/internal/store"
	ws "github.com/Priya8975/billing-reconciler/internal/websocket"
)

type MetricsHandler struct {
	store   *store.PostgresStore
	retries *engine.RetryQueue
	cb      *engine.CircuitBreaker
	hub     *ws.Hub
}

func NewMetricsHandler(s *store.PostgresStore, rq *engine.RetryQueue, cb *engine.CircuitBreaker, hub *ws.Hub) *MetricsHandler {
	return &MetricsHandler{store: s, retries: rq, cb: cb, hub: hub}
}

// Metrics returns aggregated system metrics for the ops dashboard.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetReconcilerMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get metrics")
		return
	}

	// Get retry queue depth from Redis
	queueDepth, err := h.retries.Depth(r.Context())
	if err != nil {
		queueDepth = 0
	}

	type metricsResponse struct {
		store.ReconcilerMetrics
		RetryQueueDepth  int64                      `json:"retry_queue_depth"`
		WebSocketClients int                        `json:"websocket_clients"`
		VendorAPICircuit engine.CircuitBreakerState `json:"vendor_api_circuit"`
	}

	respondJSON(w, http.StatusOK, metricsResponse{
		ReconcilerMetrics: *metrics,
		RetryQueueDepth:   queueDepth,
		WebSocketClients:  h.hub.ClientCount(),
		VendorAPICircuit:  h.cb.GetState(r.Context(), reconciler.VendorAPIDependency),
	})
}
