package store

import (
	"context"
	"fmt"
)

// ReconcilerMetrics holds aggregate statistics over the event log and the
// subscription records.
type ReconcilerMetrics struct {
	TotalEvents        int     `json:"total_events"`
	ProcessedEvents    int     `json:"processed_events"`
	UnprocessedEvents  int     `json:"unprocessed_events"`
	ProcessedRate      float64 `json:"processed_rate"`
	TotalSubscriptions int     `json:"total_subscriptions"`
	ProSubscriptions   int     `json:"pro_subscriptions"`
	PastDueCount       int     `json:"past_due_count"`
	CanceledCount      int     `json:"canceled_count"`
}

// GetReconcilerMetrics returns aggregated statistics from the database.
func (s *PostgresStore) GetReconcilerMetrics(ctx context.Context) (*ReconcilerMetrics, error) {
	var m ReconcilerMetrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE processed) AS processed,
			COUNT(*) FILTER (WHERE NOT processed) AS unprocessed
		FROM billing_events
	`).Scan(&m.TotalEvents, &m.ProcessedEvents, &m.UnprocessedEvents)
	if err != nil {
		return nil, fmt.Errorf("querying event metrics: %w", err)
	}

	if m.TotalEvents > 0 {
		m.ProcessedRate = float64(m.ProcessedEvents) / float64(m.TotalEvents) * 100
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE plan = 'pro') AS pro,
			COUNT(*) FILTER (WHERE status = 'past_due') AS past_due,
			COUNT(*) FILTER (WHERE status = 'canceled') AS canceled
		FROM subscriptions
	`).Scan(&m.TotalSubscriptions, &m.ProSubscriptions, &m.PastDueCount, &m.CanceledCount)
	if err != nil {
		return nil, fmt.Errorf("querying subscription metrics: %w", err)
	}

	return &m, nil
}
