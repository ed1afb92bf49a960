package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

var created = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func customerRequest(current, target enums.OrderStatus, elapsed time.Duration) TransitionRequest {
	return TransitionRequest{
		Current:   current,
		Target:    target,
		Role:      enums.ActorRoleCustomer,
		CreatedAt: created,
		Now:       created.Add(elapsed),
		Windows:   DefaultWindows,
	}
}

func TestCustomerCancelWithinWindow(t *testing.T) {
	for _, current := range []enums.OrderStatus{enums.OrderStatusPendingPayment, enums.OrderStatusPaymentConfirmed} {
		d := EvaluateOrderTransition(customerRequest(current, enums.OrderStatusCancelled, 23*time.Hour))
		assert.True(t, d.Allowed, current)
		assert.NoError(t, d.Err())
	}
}

func TestCustomerCancelAfterWindowIsRejected(t *testing.T) {
	d := EvaluateOrderTransition(customerRequest(enums.OrderStatusPaymentConfirmed, enums.OrderStatusCancelled, 25*time.Hour))
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonCancellationExpired, d.Reason)
	assert.Equal(t, "cancellation window expired", d.Message)

	err := d.Err()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, map[string]any{"reason": ReasonCancellationExpired}, pkgerrors.As(err).Details())
}

func TestCustomerCannotCancelOnceProcessing(t *testing.T) {
	d := EvaluateOrderTransition(customerRequest(enums.OrderStatusProcessing, enums.OrderStatusCancelled, time.Hour))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCancellationNotAllowed, d.Reason)
}

func TestCustomerConfirmDeliveryRequiresDelivered(t *testing.T) {
	assert.True(t, EvaluateOrderTransition(customerRequest(enums.OrderStatusDelivered, enums.OrderStatusDeliveryConfirmed, 0)).Allowed)

	d := EvaluateOrderTransition(customerRequest(enums.OrderStatusShipped, enums.OrderStatusDeliveryConfirmed, 0))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDeliveryNotConfirmable, d.Reason)
}

func TestCustomerReturnWindow(t *testing.T) {
	confirmed := created.Add(48 * time.Hour)
	req := customerRequest(enums.OrderStatusDeliveryConfirmed, enums.OrderStatusReturnRequested, 60*time.Hour)
	req.DeliveryConfirmedAt = &confirmed
	assert.True(t, EvaluateOrderTransition(req).Allowed)

	req.Now = confirmed.Add(25 * time.Hour)
	d := EvaluateOrderTransition(req)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonReturnExpired, d.Reason)

	req.DeliveryConfirmedAt = nil
	assert.Equal(t, ReasonReturnNotAllowed, EvaluateOrderTransition(req).Reason)
}

func TestCustomerDispute(t *testing.T) {
	assert.True(t, EvaluateOrderTransition(customerRequest(enums.OrderStatusDeliveryConfirmed, enums.OrderStatusDisputed, 0)).Allowed)
	for _, current := range []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusRefunded, enums.OrderStatusClosed, enums.OrderStatusDisputed} {
		d := EvaluateOrderTransition(customerRequest(current, enums.OrderStatusDisputed, 0))
		assert.False(t, d.Allowed, current)
		assert.Equal(t, ReasonDisputeNotAllowed, d.Reason)
	}
}

func TestCustomerCannotForceFulfillment(t *testing.T) {
	d := EvaluateOrderTransition(customerRequest(enums.OrderStatusPaymentConfirmed, enums.OrderStatusShipped, 0))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoleNotPermitted, d.Reason)
}

func TestAdminMayMoveAnywhere(t *testing.T) {
	d := EvaluateOrderTransition(TransitionRequest{
		Current: enums.OrderStatusClosed,
		Target:  enums.OrderStatusProcessing,
		Role:    enums.ActorRoleAdmin,
	})
	assert.True(t, d.Allowed)
}

func TestUnknownAndUnchangedTargets(t *testing.T) {
	d := EvaluateOrderTransition(TransitionRequest{Current: enums.OrderStatusShipped, Target: "LOST", Role: enums.ActorRoleAdmin})
	assert.Equal(t, ReasonUnknownStatus, d.Reason)

	d = EvaluateOrderTransition(TransitionRequest{Current: enums.OrderStatusShipped, Target: enums.OrderStatusShipped, Role: enums.ActorRoleAdmin})
	assert.Equal(t, ReasonNoChange, d.Reason)
}

func TestVendorCannotMoveOrder(t *testing.T) {
	d := EvaluateOrderTransition(TransitionRequest{
		Current: enums.OrderStatusPaymentConfirmed,
		Target:  enums.OrderStatusProcessing,
		Role:    enums.ActorRoleVendor,
	})
	assert.Equal(t, ReasonRoleNotPermitted, d.Reason)
}

func TestSystemTransitions(t *testing.T) {
	cases := []struct {
		current, target enums.OrderStatus
		allowed         bool
		reason          string
	}{
		{enums.OrderStatusPendingPayment, enums.OrderStatusPaymentConfirmed, true, ""},
		{enums.OrderStatusPendingPayment, enums.OrderStatusCancelled, true, ""},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true, ""},
		{enums.OrderStatusProcessing, enums.OrderStatusDelivered, false, ReasonNotShipped},
		{enums.OrderStatusDisputed, enums.OrderStatusRefunded, true, ""},
		{enums.OrderStatusDisputed, enums.OrderStatusClosed, true, ""},
		{enums.OrderStatusPaymentConfirmed, enums.OrderStatusCancelled, false, ReasonTransitionNotAllowed},
	}
	for _, tc := range cases {
		d := EvaluateOrderTransition(TransitionRequest{Current: tc.current, Target: tc.target, Role: enums.ActorRoleSystem})
		assert.Equal(t, tc.allowed, d.Allowed, "%s -> %s", tc.current, tc.target)
		assert.Equal(t, tc.reason, d.Reason, "%s -> %s", tc.current, tc.target)
	}
}

func TestVendorItemTransitions(t *testing.T) {
	base := ItemTransitionRequest{
		Current:     enums.OrderItemStatusPaymentConfirmed,
		Target:      enums.OrderItemStatusProcessing,
		Role:        enums.ActorRoleVendor,
		OrderStatus: enums.OrderStatusPaymentConfirmed,
	}
	assert.True(t, EvaluateItemTransition(base).Allowed)

	ship := base
	ship.Current = enums.OrderItemStatusProcessing
	ship.Target = enums.OrderItemStatusShipped
	ship.OrderStatus = enums.OrderStatusProcessing
	assert.Equal(t, ReasonTrackingRequired, EvaluateItemTransition(ship).Reason)
	ship.TrackingNumber = "JNE123"
	assert.True(t, EvaluateItemTransition(ship).Allowed)

	skip := base
	skip.Target = enums.OrderItemStatusShipped
	skip.TrackingNumber = "JNE123"
	assert.Equal(t, ReasonTransitionNotAllowed, EvaluateItemTransition(skip).Reason)

	deliver := ship
	deliver.Current = enums.OrderItemStatusShipped
	deliver.Target = enums.OrderItemStatusDelivered
	deliver.OrderStatus = enums.OrderStatusShipped
	assert.Equal(t, ReasonDeliveryRequiresFlow, EvaluateItemTransition(deliver).Reason)

	unpaid := base
	unpaid.OrderStatus = enums.OrderStatusPendingPayment
	assert.Equal(t, ReasonOrderNotInFulfillment, EvaluateItemTransition(unpaid).Reason)

	customer := base
	customer.Role = enums.ActorRoleCustomer
	assert.Equal(t, ReasonRoleNotPermitted, EvaluateItemTransition(customer).Reason)
}

func TestDeriveOrderStatus(t *testing.T) {
	got, ok := DeriveOrderStatus([]enums.OrderItemStatus{
		enums.OrderItemStatusShipped,
		enums.OrderItemStatusProcessing,
		enums.OrderItemStatusCancelled,
	})
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusProcessing, got)

	got, ok = DeriveOrderStatus([]enums.OrderItemStatus{enums.OrderItemStatusShipped, enums.OrderItemStatusShipped})
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusShipped, got)

	_, ok = DeriveOrderStatus([]enums.OrderItemStatus{enums.OrderItemStatusCancelled})
	assert.False(t, ok)

	_, ok = DeriveOrderStatus([]enums.OrderItemStatus{enums.OrderItemStatusPendingPayment, enums.OrderItemStatusShipped})
	assert.False(t, ok)
}

func TestItemStatusFor(t *testing.T) {
	status, ok := ItemStatusFor(enums.OrderStatusShipped)
	require.True(t, ok)
	assert.Equal(t, enums.OrderItemStatusShipped, status)

	_, ok = ItemStatusFor(enums.OrderStatusDisputed)
	assert.False(t, ok)
}
