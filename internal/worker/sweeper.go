package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/billing-reconciler/internal/domain"
	"github.com/Priya8975/billing-reconciler/internal/engine"
)

const (
	sweepCutoff = 5 * time.Minute
	sweepLimit  = 200
)

// UnprocessedLister finds events that were recorded but never marked processed.
type UnprocessedLister interface {
	ListUnprocessed(ctx context.Context, olderThan time.Duration, limit int) ([]domain.BillingEvent, error)
}

// RetryEnqueuer schedules a reconcile retry.
type RetryEnqueuer interface {
	Enqueue(ctx context.Context, job engine.RetryJob, at time.Time) error
}

// Sweeper requeues events that a previous process recorded but never finished,
// typically after a crash between the insert and the subscription upsert. It
// runs once at startup; anything failing after that is rescheduled by the
// reconciler's own retry path.
type Sweeper struct {
	events  UnprocessedLister
	retries RetryEnqueuer
	logger  *slog.Logger
}

func NewSweeper(events UnprocessedLister, retries RetryEnqueuer, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		events:  events,
		retries: retries,
		logger:  logger,
	}
}

// Sweep enqueues an immediate retry for every stale unprocessed event.
func (s *Sweeper) Sweep(ctx context.Context) error {
	events, err := s.events.ListUnprocessed(ctx, sweepCutoff, sweepLimit)
	if err != nil {
		return fmt.Errorf("listing unprocessed events: %w", err)
	}

	now := time.Now()
	for _, event := range events {
		job := engine.RetryJob{
			EventID:    event.ID,
			Attempt:    1,
			MaxRetries: 5,
		}
		if err := s.retries.Enqueue(ctx, job, now); err != nil {
			return fmt.Errorf("requeuing event %s: %w", event.ID, err)
		}
	}

	if len(events) > 0 {
		s.logger.Info("requeued stale unprocessed events", "count", len(events))
	}

	return nil
}
