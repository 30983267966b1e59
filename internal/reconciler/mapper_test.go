package reconciler

import (
	"reflect"
	"testing"
	"time"

	"github.com/Priya8975/billing-reconciler/internal/billing"
	"github.com/Priya8975/billing-reconciler/internal/domain"
)

func checkoutEnvelope(userID, subID string) *domain.Envelope {
	return &domain.Envelope{
		ID:      "evt_1",
		Type:    domain.EventCheckoutCompleted,
		Created: 1700000000,
		Data: domain.EventData{
			UserID:         userID,
			SubscriptionID: subID,
		},
	}
}

func activeDetail() *billing.Subscription {
	return &billing.Subscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		PriceID:            "price_pro",
		Status:             domain.StatusActive,
		Interval:           domain.IntervalMonth,
		CurrentPeriodStart: 1700000000,
		CurrentPeriodEnd:   1702592000,
	}
}

func TestMapEvent_CheckoutCompleted(t *testing.T) {
	patch := MapEvent(checkoutEnvelope("u1", "sub_1"), activeDetail())
	if patch == nil {
		t.Fatal("expected a patch")
	}

	if patch.Plan != domain.PlanPro {
		t.Errorf("plan = %q, want pro", patch.Plan)
	}
	if patch.Status != domain.StatusActive {
		t.Errorf("status = %q, want active", patch.Status)
	}
	if patch.UserID != "u1" {
		t.Errorf("user = %q, want u1", patch.UserID)
	}
	if patch.VendorSubscriptionID != "sub_1" {
		t.Errorf("subscription id = %q, want sub_1", patch.VendorSubscriptionID)
	}
	if patch.VendorCustomerID != "cus_1" {
		t.Errorf("customer id = %q, want cus_1", patch.VendorCustomerID)
	}
	if patch.BillingInterval != domain.IntervalMonth {
		t.Errorf("interval = %q, want month", patch.BillingInterval)
	}
	if patch.CurrentPeriodStart == nil || patch.CurrentPeriodStart.Unix() != 1700000000 {
		t.Errorf("period start = %v, want 1700000000", patch.CurrentPeriodStart)
	}
	if patch.StatusOnly {
		t.Error("checkout patch must not be status-only")
	}
	if !patch.OccurredAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("occurred at = %v, want event created time", patch.OccurredAt)
	}
}

func TestMapEvent_CheckoutMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		subID  string
	}{
		{"missing user", "", "sub_1"},
		{"missing subscription", "u1", ""},
		{"missing both", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if patch := MapEvent(checkoutEnvelope(tt.userID, tt.subID), activeDetail()); patch != nil {
				t.Errorf("expected no patch, got %+v", patch)
			}
		})
	}
}

func TestMapEvent_CheckoutWithoutDetail(t *testing.T) {
	if patch := MapEvent(checkoutEnvelope("u1", "sub_1"), nil); patch != nil {
		t.Errorf("expected no patch without vendor detail, got %+v", patch)
	}
}

func TestMapEvent_SubscriptionUpdated_PlanDerivation(t *testing.T) {
	tests := []struct {
		status   string
		wantPlan string
	}{
		{domain.StatusActive, domain.PlanPro},
		{domain.StatusTrialing, domain.PlanFree},
		{domain.StatusPastDue, domain.PlanFree},
		{domain.StatusCanceled, domain.PlanFree},
		{domain.StatusUnpaid, domain.PlanFree},
		{"some_future_status", domain.PlanFree},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			env := &domain.Envelope{
				ID:      "evt_2",
				Type:    domain.EventSubscriptionUpdated,
				Created: 1700000100,
				Data: domain.EventData{
					UserID:         "u1",
					SubscriptionID: "sub_1",
					Status:         tt.status,
				},
			}

			patch := MapEvent(env, nil)
			if patch == nil {
				t.Fatal("expected a patch")
			}
			if patch.Plan != tt.wantPlan {
				t.Errorf("plan for status %q = %q, want %q", tt.status, patch.Plan, tt.wantPlan)
			}
			if patch.Status != tt.status {
				t.Errorf("status = %q, want %q", patch.Status, tt.status)
			}
		})
	}
}

func TestMapEvent_SubscriptionUpdated_MissingUser(t *testing.T) {
	env := &domain.Envelope{
		ID:   "evt_2",
		Type: domain.EventSubscriptionUpdated,
		Data: domain.EventData{SubscriptionID: "sub_1", Status: domain.StatusActive},
	}
	if patch := MapEvent(env, nil); patch != nil {
		t.Errorf("expected no patch, got %+v", patch)
	}
}

func TestMapEvent_SubscriptionDeleted(t *testing.T) {
	env := &domain.Envelope{
		ID:      "evt_3",
		Type:    domain.EventSubscriptionDeleted,
		Created: 1700000200,
		Data: domain.EventData{
			UserID:         "u1",
			SubscriptionID: "sub_1",
			Status:         domain.StatusCanceled,
		},
	}

	patch := MapEvent(env, nil)
	if patch == nil {
		t.Fatal("expected a patch")
	}
	if patch.Plan != domain.PlanFree {
		t.Errorf("plan = %q, want free", patch.Plan)
	}
	if patch.Status != domain.StatusCanceled {
		t.Errorf("status = %q, want canceled", patch.Status)
	}
}

func TestMapEvent_SubscriptionDeleted_WithoutSubscriptionID(t *testing.T) {
	env := &domain.Envelope{
		ID:      "evt_3",
		Type:    domain.EventSubscriptionDeleted,
		Created: 1700000200,
		Data: domain.EventData{
			UserID: "u1",
			Status: domain.StatusCanceled,
		},
	}

	patch := MapEvent(env, nil)
	if patch == nil {
		t.Fatal("a deletion carrying only the user id must still downgrade")
	}
	if patch.Plan != domain.PlanFree {
		t.Errorf("plan = %q, want free", patch.Plan)
	}
	if patch.UserID != "u1" {
		t.Errorf("user id = %q, want u1", patch.UserID)
	}
	if patch.VendorSubscriptionID != "" {
		t.Errorf("subscription id = %q, want empty so the apply keys by user", patch.VendorSubscriptionID)
	}
}

func TestMapEvent_SubscriptionUpdated_WithoutSubscriptionID(t *testing.T) {
	env := &domain.Envelope{
		ID:      "evt_2",
		Type:    domain.EventSubscriptionUpdated,
		Created: 1700000100,
		Data: domain.EventData{
			UserID: "u1",
			Status: domain.StatusPastDue,
		},
	}

	patch := MapEvent(env, nil)
	if patch == nil {
		t.Fatal("an update carrying only the user id must still map")
	}
	if patch.Plan != domain.PlanFree {
		t.Errorf("plan = %q, want free for past_due", patch.Plan)
	}
	if patch.VendorSubscriptionID != "" {
		t.Errorf("subscription id = %q, want empty", patch.VendorSubscriptionID)
	}
}

func TestMapEvent_SubscriptionDeleted_DefaultStatus(t *testing.T) {
	env := &domain.Envelope{
		ID:      "evt_3",
		Type:    domain.EventSubscriptionDeleted,
		Created: 1700000200,
		Data:    domain.EventData{UserID: "u1", SubscriptionID: "sub_1"},
	}

	patch := MapEvent(env, nil)
	if patch == nil {
		t.Fatal("expected a patch")
	}
	if patch.Status != domain.StatusCanceled {
		t.Errorf("status = %q, want canceled default", patch.Status)
	}
}

func TestMapEvent_PaymentFailed(t *testing.T) {
	env := &domain.Envelope{
		ID:      "evt_4",
		Type:    domain.EventPaymentFailed,
		Created: 1700000300,
		Data:    domain.EventData{CustomerID: "cus_1"},
	}

	patch := MapEvent(env, nil)
	if patch == nil {
		t.Fatal("expected a patch")
	}
	if !patch.StatusOnly {
		t.Error("payment failure must be a status-only patch")
	}
	if patch.Status != domain.StatusPastDue {
		t.Errorf("status = %q, want past_due", patch.Status)
	}
	if patch.Plan != "" {
		t.Errorf("status-only patch must not set plan, got %q", patch.Plan)
	}
	if patch.VendorCustomerID != "cus_1" {
		t.Errorf("customer id = %q, want cus_1", patch.VendorCustomerID)
	}
}

func TestMapEvent_PaymentFailed_MissingCustomer(t *testing.T) {
	env := &domain.Envelope{
		ID:   "evt_4",
		Type: domain.EventPaymentFailed,
	}
	if patch := MapEvent(env, nil); patch != nil {
		t.Errorf("expected no patch, got %+v", patch)
	}
}

func TestMapEvent_UnknownType(t *testing.T) {
	env := &domain.Envelope{
		ID:      "evt_5",
		Type:    "invoice.upcoming",
		Created: 1700000400,
		Data:    domain.EventData{UserID: "u1", CustomerID: "cus_1"},
	}
	if patch := MapEvent(env, nil); patch != nil {
		t.Errorf("unknown event types must be no-ops, got %+v", patch)
	}
}

func TestMapEvent_Deterministic(t *testing.T) {
	env := checkoutEnvelope("u1", "sub_1")
	detail := activeDetail()

	p1 := MapEvent(env, detail)
	p2 := MapEvent(env, detail)

	if p1 == nil || p2 == nil {
		t.Fatal("expected patches")
	}
	if !reflect.DeepEqual(p1, p2) {
		t.Error("mapper should be referentially transparent: same inputs, same patch")
	}
}
