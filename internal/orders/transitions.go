package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

// Machine-readable rejection reasons.
const (
	ReasonUnknownStatus          = "unknown_status"
	ReasonNoChange               = "no_change"
	ReasonRoleNotPermitted       = "role_not_permitted"
	ReasonTransitionNotAllowed   = "transition_not_allowed"
	ReasonCancellationNotAllowed = "cancellation_not_allowed"
	ReasonCancellationExpired    = "cancellation_window_expired"
	ReasonDeliveryNotConfirmable = "delivery_not_confirmable"
	ReasonReturnNotAllowed       = "return_not_allowed"
	ReasonReturnExpired          = "return_window_expired"
	ReasonDisputeNotAllowed      = "dispute_not_allowed"
	ReasonOrderNotInFulfillment  = "order_not_in_fulfillment"
	ReasonDeliveryRequiresFlow   = "delivery_requires_confirmation"
	ReasonTrackingRequired       = "tracking_required"
	ReasonPaymentNotConfirmed    = "payment_not_confirmed"
	ReasonPaymentAlreadyCredited = "payment_already_confirmed"
	ReasonFundsAlreadyReleased   = "funds_already_released"
	ReasonDeliveryNotRecorded    = "delivery_not_recorded"
	ReasonNotShipped             = "order_not_shipped"
	ReasonFundsHeld              = "funds_held_in_escrow"
)

// Windows are the customer time limits.
type Windows struct {
	Cancellation time.Duration
	Return       time.Duration
}

// DefaultWindows matches the marketplace policy of 24 hours for both.
var DefaultWindows = Windows{Cancellation: 24 * time.Hour, Return: 24 * time.Hour}

// TransitionRequest is everything an order-level transition is judged on.
type TransitionRequest struct {
	Current             enums.OrderStatus
	Target              enums.OrderStatus
	Role                enums.ActorRole
	CreatedAt           time.Time
	DeliveryConfirmedAt *time.Time
	Now                 time.Time
	Windows             Windows
}

// Decision is the outcome of evaluating a transition.
type Decision struct {
	Allowed bool
	Reason  string
	Message string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// Err converts a rejection into a STATE_CONFLICT error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return pkgerrors.StateConflict(d.Reason, d.Message)
}

func label(s fmt.Stringer) string {
	return strings.ToLower(strings.ReplaceAll(s.String(), "_", " "))
}

// EvaluateOrderTransition applies the role and time-window rules to an
// order-level transition. It has no side effects.
func EvaluateOrderTransition(req TransitionRequest) Decision {
	if !req.Target.IsValid() {
		return deny(ReasonUnknownStatus, fmt.Sprintf("unknown order status %q", req.Target))
	}
	if req.Current == enums.OrderStatusDisputed && req.Target == enums.OrderStatusDisputed && req.Role == enums.ActorRoleCustomer {
		return deny(ReasonDisputeNotAllowed, "order already has an open dispute")
	}
	if req.Current == req.Target {
		return deny(ReasonNoChange, fmt.Sprintf("order is already %s", label(req.Current)))
	}

	switch req.Role {
	case enums.ActorRoleAdmin:
		return allow()
	case enums.ActorRoleCustomer:
		return evaluateCustomer(req)
	case enums.ActorRoleSystem:
		return evaluateSystem(req)
	case enums.ActorRoleVendor:
		return deny(ReasonRoleNotPermitted, "vendors update their own items, not the order")
	}
	return deny(ReasonRoleNotPermitted, "unknown actor role")
}

func evaluateCustomer(req TransitionRequest) Decision {
	switch req.Target {
	case enums.OrderStatusCancelled:
		if req.Current != enums.OrderStatusPendingPayment && req.Current != enums.OrderStatusPaymentConfirmed {
			return deny(ReasonCancellationNotAllowed, fmt.Sprintf("an order that is %s can no longer be cancelled", label(req.Current)))
		}
		if req.Now.Sub(req.CreatedAt) > req.Windows.Cancellation {
			return deny(ReasonCancellationExpired, "cancellation window expired")
		}
		return allow()

	case enums.OrderStatusDeliveryConfirmed:
		if req.Current != enums.OrderStatusDelivered {
			return deny(ReasonDeliveryNotConfirmable, "delivery can only be confirmed for a delivered order")
		}
		return allow()

	case enums.OrderStatusReturnRequested:
		if req.Current != enums.OrderStatusDeliveryConfirmed || req.DeliveryConfirmedAt == nil {
			return deny(ReasonReturnNotAllowed, "a return can only be requested after delivery is confirmed")
		}
		if req.Now.Sub(*req.DeliveryConfirmedAt) > req.Windows.Return {
			return deny(ReasonReturnExpired, "return window expired")
		}
		return allow()

	case enums.OrderStatusDisputed:
		if req.Current.IsTerminal() || req.Current == enums.OrderStatusDisputed {
			return deny(ReasonDisputeNotAllowed, fmt.Sprintf("an order that is %s cannot be disputed", label(req.Current)))
		}
		return allow()
	}
	return deny(ReasonRoleNotPermitted, fmt.Sprintf("customers cannot move an order to %s", label(req.Target)))
}

// System transitions are the ones driven by the payment gateway, the
// delivery orchestrator, dispute resolution and scheduled jobs.
func evaluateSystem(req TransitionRequest) Decision {
	switch {
	case req.Current == enums.OrderStatusPendingPayment &&
		(req.Target == enums.OrderStatusPaymentConfirmed || req.Target == enums.OrderStatusCancelled):
		return allow()
	case req.Target == enums.OrderStatusDelivered:
		if req.Current != enums.OrderStatusShipped {
			return deny(ReasonNotShipped, fmt.Sprintf("only shipped orders can be marked delivered; order is %s", label(req.Current)))
		}
		return allow()
	case req.Current == enums.OrderStatusDisputed &&
		(req.Target == enums.OrderStatusRefunded || req.Target == enums.OrderStatusClosed):
		return allow()
	}
	return deny(ReasonTransitionNotAllowed, fmt.Sprintf("order cannot move from %s to %s", label(req.Current), label(req.Target)))
}

// ItemTransitionRequest is everything an item-level transition is judged on.
type ItemTransitionRequest struct {
	Current        enums.OrderItemStatus
	Target         enums.OrderItemStatus
	Role           enums.ActorRole
	OrderStatus    enums.OrderStatus
	TrackingNumber string
}

// EvaluateItemTransition applies the vendor fulfillment rules to one item.
func EvaluateItemTransition(req ItemTransitionRequest) Decision {
	if !req.Target.IsValid() {
		return deny(ReasonUnknownStatus, fmt.Sprintf("unknown item status %q", req.Target))
	}
	if req.Current == req.Target {
		return deny(ReasonNoChange, fmt.Sprintf("item is already %s", label(req.Current)))
	}

	switch req.Role {
	case enums.ActorRoleAdmin:
		return allow()
	case enums.ActorRoleVendor:
	default:
		return deny(ReasonRoleNotPermitted, "only the selling vendor can update an item")
	}

	if rank, ok := req.OrderStatus.Rank(); !ok || rank < 1 || rank > 3 {
		return deny(ReasonOrderNotInFulfillment, fmt.Sprintf("items of an order that is %s cannot be updated", label(req.OrderStatus)))
	}
	if req.Target == enums.OrderItemStatusDelivered {
		return deny(ReasonDeliveryRequiresFlow, "vendors cannot mark items delivered; delivery is confirmed by the customer, the carrier or an admin")
	}

	switch {
	case req.Current == enums.OrderItemStatusPaymentConfirmed && req.Target == enums.OrderItemStatusProcessing:
		return allow()
	case req.Current == enums.OrderItemStatusProcessing && req.Target == enums.OrderItemStatusShipped:
		if strings.TrimSpace(req.TrackingNumber) == "" {
			return deny(ReasonTrackingRequired, "a tracking number is required to ship an item")
		}
		return allow()
	}
	return deny(ReasonTransitionNotAllowed, fmt.Sprintf("items cannot move from %s to %s", label(req.Current), label(req.Target)))
}

// DeriveOrderStatus aggregates item statuses into the order status: the least
// advanced status among non-cancelled items. The second result is false when
// no item is active or the aggregate is outside PAYMENT_CONFIRMED..DELIVERED.
func DeriveOrderStatus(statuses []enums.OrderItemStatus) (enums.OrderStatus, bool) {
	least := -1
	var derived enums.OrderStatus
	for _, status := range statuses {
		if status == enums.OrderItemStatusCancelled {
			continue
		}
		rank, ok := status.Rank()
		if !ok {
			continue
		}
		if least == -1 || rank < least {
			least = rank
			derived = status.OrderStatus()
		}
	}
	if least < 1 || least > 4 {
		return "", false
	}
	return derived, true
}

// ItemStatusFor maps an order status onto the item vocabulary. The second
// result is false for order-only statuses.
func ItemStatusFor(status enums.OrderStatus) (enums.OrderItemStatus, bool) {
	switch status {
	case enums.OrderStatusPendingPayment,
		enums.OrderStatusPaymentConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled:
		return enums.OrderItemStatus(status), true
	}
	return "", false
}
