package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Priya8975/billing-reconciler/internal/reconciler"
	"github.com/Priya8975/billing-reconciler/internal/store"
	"github.com/go-chi/chi/v5"
)

// Reprocessor replays recorded events on operator request.
type Reprocessor interface {
	Reprocess(ctx context.Context, eventID string, attempt int) (reconciler.Outcome, error)
}

type EventHandler struct {
	store       *store.PostgresStore
	reprocessor Reprocessor
}

func NewEventHandler(s *store.PostgresStore, rp Reprocessor) *EventHandler {
	return &EventHandler{store: s, reprocessor: rp}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("event_type")
	limitStr := r.URL.Query().Get("limit")

	var processed *bool
	if p := r.URL.Query().Get("processed"); p != "" {
		b, err := strconv.ParseBool(p)
		if err != nil {
			respondError(w, http.StatusBadRequest, "processed must be a boolean")
			return
		}
		processed = &b
	}

	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.store.ListEvents(r.Context(), eventType, processed, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	respondJSON(w, http.StatusOK, event)
}

type replayResponse struct {
	EventID string `json:"event_id"`
	Outcome string `json:"outcome"`
}

// Replay forces a reconcile attempt for a recorded event. Intended for
// operators working through unprocessed rows after retries are exhausted.
func (h *EventHandler) Replay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	outcome, err := h.reprocessor.Reprocess(r.Context(), id, 1)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "replay failed")
		return
	}

	respondJSON(w, http.StatusOK, replayResponse{
		EventID: id,
		Outcome: string(outcome),
	})
}
