package domain

import "time"

// Plan is the derived entitlement tier. It is a projection of Status and is
// never set independently of it.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Vendor subscription statuses this system recognizes. The status column is
// not constrained to these — the vendor may add new ones, which simply map
// to PlanFree.
const (
	StatusActive     = "active"
	StatusTrialing   = "trialing"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusUnpaid     = "unpaid"
	StatusIncomplete = "incomplete"
)

// Billing intervals.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// SubscriptionRecord is the authoritative subscription state for one user.
// Absence of a record means the user is on the free plan. Records are never
// deleted — cancellation is a status transition.
type SubscriptionRecord struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	VendorCustomerID     string     `json:"vendor_customer_id,omitempty"`
	VendorSubscriptionID string     `json:"vendor_subscription_id,omitempty"`
	VendorPriceID        string     `json:"vendor_price_id,omitempty"`
	Plan                 string     `json:"plan"`
	Status               string     `json:"status"`
	BillingInterval      string     `json:"billing_interval,omitempty"`
	CurrentPeriodStart   *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	LastEventAt          time.Time  `json:"last_event_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PlanForStatus derives the entitlement tier from a vendor status. Only an
// active subscription grants the pro plan; trialing and every other status
// map to free.
func PlanForStatus(status string) string {
	if status == StatusActive {
		return PlanPro
	}
	return PlanFree
}
