package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/billing-reconciler/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApplySubscriptionPatch writes one patch as a single atomic statement.
//
// Full patches upsert by vendor_subscription_id; the whole row is replaced so
// concurrent deliveries can never interleave partial field updates. Status-only
// patches (payment failures) update the record matching the vendor customer id
// without touching plan or period fields.
//
// Full patches without a vendor subscription id (lifecycle events that only
// carry the user id) update the user's existing record instead; a user with
// no record is already on the free plan, so there is nothing to insert.
//
// All paths carry a monotonic guard: a patch whose OccurredAt is older than
// the record's last_event_at is silently not applied, so a stale update
// delivered after a newer deletion cannot resurrect a canceled subscription.
func (s *PostgresStore) ApplySubscriptionPatch(ctx context.Context, patch *domain.SubscriptionPatch) error {
	if patch.StatusOnly {
		_, err := s.pool.Exec(ctx, `
			UPDATE subscriptions
			SET status = $1, last_event_at = $2, updated_at = NOW()
			WHERE vendor_customer_id = $3 AND last_event_at <= $2
		`, patch.Status, patch.OccurredAt, patch.VendorCustomerID)
		if err != nil {
			return fmt.Errorf("applying status patch: %w", err)
		}
		return nil
	}

	if patch.VendorSubscriptionID == "" {
		_, err := s.pool.Exec(ctx, `
			UPDATE subscriptions
			SET plan = $1, status = $2, billing_interval = $3,
				current_period_start = $4, current_period_end = $5,
				cancel_at_period_end = $6, last_event_at = $7, updated_at = NOW()
			WHERE user_id = $8 AND last_event_at <= $7
		`,
			patch.Plan, patch.Status, patch.BillingInterval,
			patch.CurrentPeriodStart, patch.CurrentPeriodEnd,
			patch.CancelAtPeriodEnd, patch.OccurredAt, patch.UserID,
		)
		if err != nil {
			return fmt.Errorf("applying user-keyed patch: %w", err)
		}
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (
			id, user_id, vendor_customer_id, vendor_subscription_id, vendor_price_id,
			plan, status, billing_interval,
			current_period_start, current_period_end, cancel_at_period_end,
			last_event_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (vendor_subscription_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			vendor_customer_id = EXCLUDED.vendor_customer_id,
			vendor_price_id = EXCLUDED.vendor_price_id,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			billing_interval = EXCLUDED.billing_interval,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = NOW()
		WHERE EXCLUDED.last_event_at >= subscriptions.last_event_at
	`,
		uuid.NewString(), patch.UserID, patch.VendorCustomerID, patch.VendorSubscriptionID, patch.VendorPriceID,
		patch.Plan, patch.Status, patch.BillingInterval,
		patch.CurrentPeriodStart, patch.CurrentPeriodEnd, patch.CancelAtPeriodEnd,
		patch.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

const subscriptionColumns = `
	id, user_id, vendor_customer_id, vendor_subscription_id, vendor_price_id,
	plan, status, billing_interval,
	current_period_start, current_period_end, cancel_at_period_end,
	last_event_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.SubscriptionRecord, error) {
	var rec domain.SubscriptionRecord
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.VendorCustomerID, &rec.VendorSubscriptionID, &rec.VendorPriceID,
		&rec.Plan, &rec.Status, &rec.BillingInterval,
		&rec.CurrentPeriodStart, &rec.CurrentPeriodEnd, &rec.CancelAtPeriodEnd,
		&rec.LastEventAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetSubscriptionByUserID returns the user's subscription record, or nil if
// the user never purchased (free plan by absence).
func (s *PostgresStore) GetSubscriptionByUserID(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	rec, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription by user: %w", err)
	}
	return rec, nil
}

// GetSubscriptionByCustomerID resolves a vendor customer id to the owning
// subscription record, or nil if unknown.
func (s *PostgresStore) GetSubscriptionByCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE vendor_customer_id = $1`, customerID)
	rec, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription by customer: %w", err)
	}
	return rec, nil
}

// ListSubscriptions returns subscription records, optionally filtered by plan.
func (s *PostgresStore) ListSubscriptions(ctx context.Context, plan string, limit int) ([]domain.SubscriptionRecord, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions`
	args := []interface{}{}
	argIdx := 1

	if plan != "" {
		query += fmt.Sprintf(" WHERE plan = $%d", argIdx)
		args = append(args, plan)
		argIdx++
	}

	query += " ORDER BY updated_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.SubscriptionRecord
	for rows.Next() {
		rec, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, *rec)
	}

	if subs == nil {
		subs = []domain.SubscriptionRecord{}
	}

	return subs, nil
}
