package enums

import "testing"

func TestOrderStatusRank(t *testing.T) {
	shipped, ok := OrderStatusShipped.Rank()
	if !ok {
		t.Fatal("expected shipped to be on the main sequence")
	}
	processing, _ := OrderStatusProcessing.Rank()
	if processing >= shipped {
		t.Fatalf("expected processing (%d) before shipped (%d)", processing, shipped)
	}
	if _, ok := OrderStatusDisputed.Rank(); ok {
		t.Fatal("disputed is a side branch and must not have a rank")
	}
}

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("DELIVERY_CONFIRMED")
	if err != nil || got != OrderStatusDeliveryConfirmed {
		t.Fatalf("unexpected parse result %q err=%v", got, err)
	}
	if _, err := ParseOrderStatus("delivered"); err == nil {
		t.Fatal("expected lowercase value to be rejected")
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	if PaymentStatusPending.IsTerminal() {
		t.Fatal("pending is not terminal")
	}
	for _, s := range []PaymentStatus{PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusCancelled, PaymentStatusRefunded} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
}

func TestParseActorRoleRejectsSystem(t *testing.T) {
	if _, err := ParseActorRole("system"); err == nil {
		t.Fatal("system must not be accepted from external input")
	}
	role, err := ParseActorRole(" Vendor ")
	if err != nil || role != ActorRoleVendor {
		t.Fatalf("unexpected role %q err=%v", role, err)
	}
}

func TestDisputeResolutionMapping(t *testing.T) {
	cases := map[DisputeResolution]struct {
		dispute DisputeStatus
		order   OrderStatus
	}{
		DisputeResolutionCustomerFavor: {DisputeStatusResolvedCustomerFavor, OrderStatusRefunded},
		DisputeResolutionVendorFavor:   {DisputeStatusResolvedVendorFavor, OrderStatusClosed},
		DisputeResolutionClosed:        {DisputeStatusClosed, OrderStatusClosed},
	}
	for resolution, want := range cases {
		if got := resolution.DisputeStatus(); got != want.dispute {
			t.Fatalf("%s: expected dispute %s got %s", resolution, want.dispute, got)
		}
		if got := resolution.OrderStatus(); got != want.order {
			t.Fatalf("%s: expected order %s got %s", resolution, want.order, got)
		}
		if !resolution.DisputeStatus().IsTerminal() {
			t.Fatalf("%s: resolution must be terminal", resolution)
		}
	}
}
