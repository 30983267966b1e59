package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types sent by the billing vendor. Anything outside this set is
// recorded and acknowledged but produces no state change.
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
	EventPaymentFailed       = "payment.failed"
)

// BillingEvent is one row in the append-only event log. Immutable after
// insert except for the processed fields.
type BillingEvent struct {
	ID          string          `json:"id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	Processed   bool            `json:"processed"`
	ReceivedAt  time.Time       `json:"received_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// Envelope is the wire format of a vendor webhook delivery.
type Envelope struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData carries whichever fields the event type guarantees. Which fields
// are required per type is the mapper's concern; parsing accepts any subset.
type EventData struct {
	UserID             string `json:"user_id,omitempty"`
	CustomerID         string `json:"customer_id,omitempty"`
	SubscriptionID     string `json:"subscription_id,omitempty"`
	PriceID            string `json:"price_id,omitempty"`
	Status             string `json:"status,omitempty"`
	Interval           string `json:"interval,omitempty"`
	CurrentPeriodStart int64  `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   int64  `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end,omitempty"`
}

// OccurredAt returns the vendor-assigned event timestamp.
func (e *Envelope) OccurredAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// ParseEnvelope decodes and validates a raw webhook body. Id, type and the
// created timestamp are required for every event type: without created the
// ordering guard on applies has nothing to compare, and a zero timestamp
// would lose against any previously applied patch.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("event envelope missing id")
	}
	if env.Type == "" {
		return nil, fmt.Errorf("event envelope missing type")
	}
	if env.Created == 0 {
		return nil, fmt.Errorf("event envelope missing created timestamp")
	}
	return &env, nil
}
