package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Priya8975/billing-reconciler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateEvent is returned by InsertEvent when the vendor event id is
// already recorded. Under concurrent delivery of the same webhook the unique
// constraint is the tie-break: exactly one insert wins.
var ErrDuplicateEvent = errors.New("event already recorded")

const uniqueViolation = "23505"

// InsertEvent appends one billing event to the log, unprocessed.
func (s *PostgresStore) InsertEvent(ctx context.Context, id, eventType string, payload json.RawMessage) (*domain.BillingEvent, error) {
	var event domain.BillingEvent
	err := s.pool.QueryRow(ctx, `
		INSERT INTO billing_events (id, event_type, payload)
		VALUES ($1, $2, $3)
		RETURNING id, event_type, payload, processed, received_at, processed_at
	`, id, eventType, payload).Scan(
		&event.ID, &event.EventType, &event.Payload, &event.Processed, &event.ReceivedAt, &event.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEvent
		}
		return nil, fmt.Errorf("inserting billing event: %w", err)
	}
	return &event, nil
}

// MarkEventProcessed flags an event as fully applied.
func (s *PostgresStore) MarkEventProcessed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE billing_events SET processed = true, processed_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}
	return nil
}

// GetEvent returns the event with the given vendor id, or nil if absent.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*domain.BillingEvent, error) {
	var event domain.BillingEvent
	err := s.pool.QueryRow(ctx, `
		SELECT id, event_type, payload, processed, received_at, processed_at
		FROM billing_events WHERE id = $1
	`, id).Scan(
		&event.ID, &event.EventType, &event.Payload, &event.Processed, &event.ReceivedAt, &event.ProcessedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying billing event: %w", err)
	}
	return &event, nil
}

// ListEvents returns recent events, optionally filtered by type and by
// processed state.
func (s *PostgresStore) ListEvents(ctx context.Context, eventType string, processed *bool, limit int) ([]domain.BillingEvent, error) {
	query := `SELECT id, event_type, payload, processed, received_at, processed_at FROM billing_events`
	args := []interface{}{}
	conds := []string{}
	argIdx := 1

	if eventType != "" {
		conds = append(conds, fmt.Sprintf("event_type = $%d", argIdx))
		args = append(args, eventType)
		argIdx++
	}
	if processed != nil {
		conds = append(conds, fmt.Sprintf("processed = $%d", argIdx))
		args = append(args, *processed)
		argIdx++
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY received_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying billing events: %w", err)
	}
	defer rows.Close()

	var events []domain.BillingEvent
	for rows.Next() {
		var e domain.BillingEvent
		err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Processed, &e.ReceivedAt, &e.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning billing event: %w", err)
		}
		events = append(events, e)
	}

	if events == nil {
		events = []domain.BillingEvent{}
	}

	return events, nil
}

// ListUnprocessed returns events recorded before the cutoff that were never
// fully applied. These are the rows an operator (or the retry worker)
// reconciles by replay.
func (s *PostgresStore) ListUnprocessed(ctx context.Context, olderThan time.Duration, limit int) ([]domain.BillingEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, payload, processed, received_at, processed_at
		FROM billing_events
		WHERE processed = false AND received_at < NOW() - $1::interval
		ORDER BY received_at ASC
		LIMIT $2
	`, olderThan.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []domain.BillingEvent
	for rows.Next() {
		var e domain.BillingEvent
		err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Processed, &e.ReceivedAt, &e.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning unprocessed event: %w", err)
		}
		events = append(events, e)
	}

	if events == nil {
		events = []domain.BillingEvent{}
	}

	return events, nil
}
