package reconciler

import (
	"time"

	"github.com/Priya8975/billing-reconciler/internal/billing"
	"github.com/Priya8975/billing-reconciler/internal/domain"
)

// MapEvent computes the subscription patch for one billing event. It is a
// pure function of its inputs: no lookups, no side effects, no dependence on
// current record state. A nil return means the event produces no state change
// (unknown type, or a payload missing fields it cannot be reconciled without).
//
// detail is the vendor subscription fetched for checkout events; it is nil
// for every other type.
func MapEvent(env *domain.Envelope, detail *billing.Subscription) *domain.SubscriptionPatch {
	switch env.Type {
	case domain.EventCheckoutCompleted:
		return mapCheckoutCompleted(env, detail)
	case domain.EventSubscriptionUpdated:
		return mapSubscriptionUpdated(env)
	case domain.EventSubscriptionDeleted:
		return mapSubscriptionDeleted(env)
	case domain.EventPaymentFailed:
		return mapPaymentFailed(env)
	default:
		// Unknown event types are forward-compatible no-ops, never errors.
		return nil
	}
}

// mapCheckoutCompleted upgrades the user. A checkout without a resolvable
// user or subscription reference cannot be reconciled and maps to nothing —
// the vendor will not resend a corrected payload, so failing the request
// would only cause useless redelivery.
func mapCheckoutCompleted(env *domain.Envelope, detail *billing.Subscription) *domain.SubscriptionPatch {
	if env.Data.UserID == "" || env.Data.SubscriptionID == "" || detail == nil {
		return nil
	}

	return &domain.SubscriptionPatch{
		UserID:               env.Data.UserID,
		VendorCustomerID:     detail.CustomerID,
		VendorSubscriptionID: env.Data.SubscriptionID,
		VendorPriceID:        detail.PriceID,
		Plan:                 domain.PlanPro,
		Status:               detail.Status,
		BillingInterval:      detail.Interval,
		CurrentPeriodStart:   unixTime(detail.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(detail.CurrentPeriodEnd),
		CancelAtPeriodEnd:    detail.CancelAtPeriodEnd,
		OccurredAt:           env.OccurredAt(),
	}
}

// mapSubscriptionUpdated carries the full detail in the event itself. Plan is
// derived from status: anything other than active, including trialing, maps
// to free. Only the user id is required; without a subscription id the patch
// is keyed by user instead.
func mapSubscriptionUpdated(env *domain.Envelope) *domain.SubscriptionPatch {
	if env.Data.UserID == "" {
		return nil
	}

	return &domain.SubscriptionPatch{
		UserID:               env.Data.UserID,
		VendorCustomerID:     env.Data.CustomerID,
		VendorSubscriptionID: env.Data.SubscriptionID,
		VendorPriceID:        env.Data.PriceID,
		Plan:                 domain.PlanForStatus(env.Data.Status),
		Status:               env.Data.Status,
		BillingInterval:      env.Data.Interval,
		CurrentPeriodStart:   unixTime(env.Data.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(env.Data.CurrentPeriodEnd),
		CancelAtPeriodEnd:    env.Data.CancelAtPeriodEnd,
		OccurredAt:           env.OccurredAt(),
	}
}

// mapSubscriptionDeleted downgrades unconditionally, regardless of prior
// state. The status is copied from the event, defaulting to canceled. As with
// updates, a missing subscription id falls back to keying by user.
func mapSubscriptionDeleted(env *domain.Envelope) *domain.SubscriptionPatch {
	if env.Data.UserID == "" {
		return nil
	}

	status := env.Data.Status
	if status == "" {
		status = domain.StatusCanceled
	}

	return &domain.SubscriptionPatch{
		UserID:               env.Data.UserID,
		VendorCustomerID:     env.Data.CustomerID,
		VendorSubscriptionID: env.Data.SubscriptionID,
		VendorPriceID:        env.Data.PriceID,
		Plan:                 domain.PlanFree,
		Status:               status,
		BillingInterval:      env.Data.Interval,
		CancelAtPeriodEnd:    env.Data.CancelAtPeriodEnd,
		OccurredAt:           env.OccurredAt(),
	}
}

// mapPaymentFailed flips status to past_due without touching plan. Payment
// failure events carry the vendor customer id, not the internal user id, so
// the patch is keyed by customer.
func mapPaymentFailed(env *domain.Envelope) *domain.SubscriptionPatch {
	if env.Data.CustomerID == "" {
		return nil
	}

	return &domain.SubscriptionPatch{
		VendorCustomerID: env.Data.CustomerID,
		Status:           domain.StatusPastDue,
		OccurredAt:       env.OccurredAt(),
		StatusOnly:       true,
	}
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
