package enums

import "testing"

func TestOrderStatusTransitionTableIsClosed(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusConfirmed}:    true,
		{OrderStatusPending, OrderStatusCancelled}:    true,
		{OrderStatusConfirmed, OrderStatusProcessing}: true,
		{OrderStatusConfirmed, OrderStatusCancelled}:  true,
		{OrderStatusProcessing, OrderStatusShipped}:   true,
		{OrderStatusProcessing, OrderStatusCancelled}: true,
		{OrderStatusShipped, OrderStatusDelivered}:    true,
		{OrderStatusDelivered, OrderStatusRefunded}:   true,
		{OrderStatusCancelled, OrderStatusRefunded}:   true,
	}

	for _, from := range OrderStatuses() {
		for _, to := range OrderStatuses() {
			want := allowed[[2]OrderStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("%s -> %s: expected %v got %v", from, to, want, got)
			}
		}
	}
}

func TestRefundedIsTerminal(t *testing.T) {
	if targets := OrderStatusRefunded.AllowedTransitions(); len(targets) != 0 {
		t.Fatalf("expected refunded to be terminal, got %v", targets)
	}
	if !OrderStatusRefunded.RequiresAdmin() {
		t.Fatal("refund must require admin")
	}
	if OrderStatusCancelled.RequiresAdmin() {
		t.Fatal("cancel must not require admin")
	}
}

func TestParseOrderStatus(t *testing.T) {
	if got, err := ParseOrderStatus("shipped"); err != nil || got != OrderStatusShipped {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOrderStatus("lost"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestRecipientTypeRole(t *testing.T) {
	if role, ok := RecipientVendors.Role(); !ok || role != UserRoleVendor {
		t.Fatalf("unexpected vendor audience role %q %v", role, ok)
	}
	if _, ok := RecipientAll.Role(); ok {
		t.Fatal("all audience is not role restricted")
	}
}
