package domain

import "time"

// SubscriptionPatch is the full target state computed for one billing event.
// A patch is applied as a single atomic write — never field by field — so the
// latest applied event fully determines the visible record.
type SubscriptionPatch struct {
	UserID               string
	VendorCustomerID     string
	VendorSubscriptionID string
	VendorPriceID        string
	Plan                 string
	Status               string
	BillingInterval      string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool

	// OccurredAt is the vendor event timestamp, used as a monotonic guard:
	// a patch older than the record's LastEventAt is not applied.
	OccurredAt time.Time

	// StatusOnly marks a patch that updates status on an existing record
	// looked up by VendorCustomerID, leaving plan and period fields alone.
	// Used for payment failures, which carry only the vendor customer id.
	StatusOnly bool
}
