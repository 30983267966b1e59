package worker

import (
	"context"
	"log/slog"

	"github.com/Priya8975/billing-reconciler/internal/engine"
	"github.com/Priya8975/billing-reconciler/internal/reconciler"
)

// Reprocessor re-runs the reconcile path for one recorded event.
type Reprocessor interface {
	Reprocess(ctx context.Context, eventID string, attempt int) (reconciler.Outcome, error)
}

// Applier re-runs the reconcile path for events that were recorded but failed
// mid-processing. Failure handling lives in the reconciler itself: a failed
// attempt schedules the next one with backoff, so the applier only executes
// and logs.
type Applier struct {
	reprocessor Reprocessor
	logger      *slog.Logger
}

func NewApplier(rp Reprocessor, logger *slog.Logger) *Applier {
	return &Applier{
		reprocessor: rp,
		logger:      logger,
	}
}

// Apply performs one retry attempt for the job's event.
func (a *Applier) Apply(ctx context.Context, job engine.RetryJob) {
	outcome, err := a.reprocessor.Reprocess(ctx, job.EventID, job.Attempt)
	if err != nil {
		a.logger.Warn("retry attempt failed",
			"event_id", job.EventID,
			"attempt", job.Attempt,
			"error", err,
		)
		return
	}

	a.logger.Info("retry attempt succeeded",
		"event_id", job.EventID,
		"attempt", job.Attempt,
		"outcome", string(outcome),
	)
}
