package api

import (
	"net/http"
	"strconv"

	"github.com/Priya8975/billing-reconciler/internal/store"
	"github.com/go-chi/chi/v5"
)

type SubscriptionHandler struct {
	store *store.PostgresStore
}

func NewSubscriptionHandler(s *store.PostgresStore) *SubscriptionHandler {
	return &SubscriptionHandler{store: s}
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	plan := r.URL.Query().Get("plan")
	limitStr := r.URL.Query().Get("limit")

	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	subs, err := h.store.ListSubscriptions(r.Context(), plan, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	respondJSON(w, http.StatusOK, subs)
}

// Get returns the subscription record for a user. Absence of a record is the
// free plan, reported as 404 so callers can distinguish "never purchased".
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sub, err := h.store.GetSubscriptionByUserID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "no subscription for user")
		return
	}

	respondJSON(w, http.StatusOK, sub)
}
