package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/billing-reconciler/internal/billing"
	"github.com/Priya8975/billing-reconciler/internal/domain"
	"github.com/Priya8975/billing-reconciler/internal/engine"
	"github.com/Priya8975/billing-reconciler/internal/store"
	ws "github.com/Priya8975/billing-reconciler/internal/websocket"
)

// VendorAPIDependency names the circuit the breaker tracks for subscription
// detail lookups.
const VendorAPIDependency = "vendor-api"

const (
	maxRetries     = 5
	baseRetryDelay = 30 * time.Second
)

// Outcome classifies how an event was handled. Every outcome except a
// returned error is acknowledged to the vendor as success.
type Outcome string

const (
	// OutcomeApplied means a patch was computed and written.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoOp means the event was recorded but produced no state change.
	OutcomeNoOp Outcome = "noop"
	// OutcomeDuplicate means the event was already recorded and fully
	// processed (or is being handled by a concurrent delivery).
	OutcomeDuplicate Outcome = "duplicate"
)

// EventStore is the slice of the Postgres store the reconciler needs for the
// append-only event log.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*domain.BillingEvent, error)
	InsertEvent(ctx context.Context, id, eventType string, payload json.RawMessage) (*domain.BillingEvent, error)
	MarkEventProcessed(ctx context.Context, id string) error
}

// SubscriptionStore applies computed patches atomically.
type SubscriptionStore interface {
	ApplySubscriptionPatch(ctx context.Context, patch *domain.SubscriptionPatch) error
}

// RetryScheduler queues recorded-but-unprocessed events for another attempt.
type RetryScheduler interface {
	Enqueue(ctx context.Context, job engine.RetryJob, at time.Time) error
}

// Broadcaster pushes reconcile outcomes to dashboard clients.
type Broadcaster interface {
	Broadcast(event ws.ReconcileEvent)
}

// Breaker guards calls to the vendor API.
type Breaker interface {
	AllowRequest(ctx context.Context, dependency string) (string, bool)
	RecordSuccess(ctx context.Context, dependency string)
	RecordFailure(ctx context.Context, dependency string)
}

// Reconciler converts the vendor's at-least-once webhook stream into
// at-most-one side effect per event. The gate is the existence of the event
// row, not its processed flag: a duplicate delivery of a fully processed
// event is skipped, while redelivery of an event that was recorded but failed
// mid-processing re-runs the (idempotent) apply path.
type Reconciler struct {
	events  EventStore
	subs    SubscriptionStore
	vendor  billing.Client
	breaker Breaker
	retries RetryScheduler
	hub     Broadcaster
	logger  *slog.Logger
}

func New(events EventStore, subs SubscriptionStore, vendor billing.Client, breaker Breaker, retries RetryScheduler, hub Broadcaster, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		events:  events,
		subs:    subs,
		vendor:  vendor,
		breaker: breaker,
		retries: retries,
		hub:     hub,
		logger:  logger,
	}
}

// Process handles one inbound webhook delivery. raw is the verified envelope
// body, persisted verbatim for audit and replay.
//
// Any returned error means the event is either not recorded at all or
// recorded and unprocessed; in both cases vendor redelivery is safe.
func (r *Reconciler) Process(ctx context.Context, env *domain.Envelope, raw json.RawMessage) (Outcome, error) {
	existing, err := r.events.GetEvent(ctx, env.ID)
	if err != nil {
		// Fail closed: treating an unreachable store as "new event" could
		// double-apply a payment event after redelivery.
		return "", fmt.Errorf("checking event %s: %w", env.ID, err)
	}

	if existing != nil {
		if existing.Processed {
			r.logger.Info("duplicate event skipped", "event_id", env.ID, "event_type", env.Type)
			r.notify(ws.OutcomeDuplicate, env, nil, "")
			return OutcomeDuplicate, nil
		}
		// Recorded but never fully applied — redelivery is our second chance.
		r.logger.Info("reprocessing recorded event", "event_id", env.ID, "event_type", env.Type)
		return r.apply(ctx, env, 1)
	}

	if _, err := r.events.InsertEvent(ctx, env.ID, env.Type, raw); err != nil {
		if errors.Is(err, store.ErrDuplicateEvent) {
			// Lost the insert race to a concurrent delivery of the same
			// event: it is already being handled, acknowledge and stop.
			r.logger.Info("concurrent duplicate delivery", "event_id", env.ID)
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("recording event %s: %w", env.ID, err)
	}

	return r.apply(ctx, env, 1)
}

// Reprocess re-runs the apply path for an already-recorded event, used by the
// retry worker and the operator replay endpoint.
func (r *Reconciler) Reprocess(ctx context.Context, eventID string, attempt int) (Outcome, error) {
	event, err := r.events.GetEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("loading event %s: %w", eventID, err)
	}
	if event == nil {
		return "", fmt.Errorf("event %s not found", eventID)
	}
	if event.Processed {
		return OutcomeDuplicate, nil
	}

	env, err := domain.ParseEnvelope(event.Payload)
	if err != nil {
		// A recorded payload that no longer parses is unreconcilable; leave
		// it unprocessed for the audit trail rather than retry forever.
		return "", fmt.Errorf("parsing recorded event %s: %w", eventID, err)
	}

	return r.apply(ctx, env, attempt)
}

// apply maps the event and writes the result. The event row already exists;
// on failure it stays unprocessed and a retry is scheduled.
func (r *Reconciler) apply(ctx context.Context, env *domain.Envelope, attempt int) (Outcome, error) {
	detail, err := r.lookupDetail(ctx, env)
	if err != nil {
		r.scheduleRetry(ctx, env.ID, attempt)
		r.notify(ws.OutcomeFailed, env, nil, err.Error())
		return "", err
	}

	patch := MapEvent(env, detail)
	if patch == nil {
		if err := r.events.MarkEventProcessed(ctx, env.ID); err != nil {
			r.scheduleRetry(ctx, env.ID, attempt)
			return "", err
		}
		r.logger.Info("event produced no state change",
			"event_id", env.ID,
			"event_type", env.Type,
		)
		r.notify(ws.OutcomeNoOp, env, nil, "")
		return OutcomeNoOp, nil
	}

	if err := r.subs.ApplySubscriptionPatch(ctx, patch); err != nil {
		r.scheduleRetry(ctx, env.ID, attempt)
		r.notify(ws.OutcomeFailed, env, patch, err.Error())
		return "", fmt.Errorf("applying patch for event %s: %w", env.ID, err)
	}

	if err := r.events.MarkEventProcessed(ctx, env.ID); err != nil {
		// The patch landed; redelivery will re-apply it, which the guarded
		// upsert absorbs.
		r.scheduleRetry(ctx, env.ID, attempt)
		return "", err
	}

	r.logger.Info("event applied",
		"event_id", env.ID,
		"event_type", env.Type,
		"user_id", patch.UserID,
		"plan", patch.Plan,
		"status", patch.Status,
	)
	r.notify(ws.OutcomeApplied, env, patch, "")
	return OutcomeApplied, nil
}

// lookupDetail fetches vendor subscription detail when the event type needs
// it. Only checkout completions require a lookup; the call sits behind the
// circuit breaker so a down vendor API sheds load instead of queueing
// timeouts.
func (r *Reconciler) lookupDetail(ctx context.Context, env *domain.Envelope) (*billing.Subscription, error) {
	if env.Type != domain.EventCheckoutCompleted {
		return nil, nil
	}
	if env.Data.UserID == "" || env.Data.SubscriptionID == "" {
		// The mapper will turn this into a no-op; nothing to fetch.
		return nil, nil
	}

	if state, allowed := r.breaker.AllowRequest(ctx, VendorAPIDependency); !allowed {
		return nil, fmt.Errorf("vendor API circuit %s, lookup for %s rejected", state, env.Data.SubscriptionID)
	}

	detail, err := r.vendor.RetrieveSubscription(ctx, env.Data.SubscriptionID)
	if err != nil {
		r.breaker.RecordFailure(ctx, VendorAPIDependency)
		return nil, fmt.Errorf("looking up subscription %s: %w", env.Data.SubscriptionID, err)
	}
	r.breaker.RecordSuccess(ctx, VendorAPIDependency)

	return detail, nil
}

// scheduleRetry queues the next attempt after a failed one. attempt is the
// attempt that just failed; backoff doubles per attempt until maxRetries,
// after which the row is left unprocessed for operator replay.
func (r *Reconciler) scheduleRetry(ctx context.Context, eventID string, attempt int) {
	if attempt >= maxRetries {
		r.logger.Error("event exhausted retries, left unprocessed for operator replay",
			"event_id", eventID,
			"attempts", attempt,
		)
		return
	}

	delay := baseRetryDelay * (1 << (attempt - 1))
	job := engine.RetryJob{
		EventID:    eventID,
		Attempt:    attempt + 1,
		MaxRetries: maxRetries,
	}
	if err := r.retries.Enqueue(ctx, job, time.Now().Add(delay)); err != nil {
		// Vendor redelivery still covers us; the queue is belt and braces.
		r.logger.Error("failed to schedule retry", "error", err, "event_id", eventID)
	}
}

func (r *Reconciler) notify(outcome string, env *domain.Envelope, patch *domain.SubscriptionPatch, errMsg string) {
	event := ws.ReconcileEvent{
		Type:      outcome,
		EventID:   env.ID,
		EventType: env.Type,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	}
	if patch != nil {
		event.UserID = patch.UserID
		event.Plan = patch.Plan
		event.Status = patch.Status
	}
	r.hub.Broadcast(event)
}
