package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/Priya8975/billing-reconciler/internal/billing"
	"github.com/Priya8975/billing-reconciler/internal/domain"
	"github.com/Priya8975/billing-reconciler/internal/engine"
	"github.com/Priya8975/billing-reconciler/internal/reconciler"
)

// maxWebhookBody caps how much of a delivery we read. Vendor event envelopes
// are small; anything larger is not one.
const maxWebhookBody = 1 << 20

// Processor is the slice of the reconciler the webhook endpoint uses.
type Processor interface {
	Process(ctx context.Context, env *domain.Envelope, raw json.RawMessage) (reconciler.Outcome, error)
}

type WebhookHandler struct {
	processor   Processor
	rateLimiter *engine.RateLimiter
	secret      string
	ratePerSec  int
}

func NewWebhookHandler(p Processor, rl *engine.RateLimiter, secret string, ratePerSec int) *WebhookHandler {
	return &WebhookHandler{
		processor:   p,
		rateLimiter: rl,
		secret:      secret,
		ratePerSec:  ratePerSec,
	}
}

type webhookResponse struct {
	EventID string `json:"event_id"`
	Outcome string `json:"outcome"`
}

// Receive handles one webhook delivery from the billing vendor.
//
// Response contract: 2xx acknowledges the event (including duplicates and
// no-ops — redelivery would change nothing); 4xx rejects deliveries that
// failed authentication or parsing before anything was recorded; 5xx signals
// a retryable processing failure so the vendor redelivers.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimiter.Allow(r.Context(), webhookSource(r), h.ratePerSec) {
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := billing.VerifySignature(body, r.Header.Get(billing.SignatureHeader), h.secret); err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	env, err := domain.ParseEnvelope(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed event")
		return
	}

	outcome, err := h.processor.Process(r.Context(), env, body)
	if err != nil {
		// The event is at worst recorded-unprocessed; redelivery is safe.
		respondError(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	respondJSON(w, http.StatusOK, webhookResponse{
		EventID: env.ID,
		Outcome: string(outcome),
	})
}

// webhookSource keys the rate limiter by sender address.
func webhookSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
