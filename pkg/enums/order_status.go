package enums

import "fmt"

// OrderStatus is the single source of truth for where an order sits in its lifecycle.
type OrderStatus string

const (
	OrderStatusPendingPayment    OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaymentConfirmed  OrderStatus = "PAYMENT_CONFIRMED"
	OrderStatusProcessing        OrderStatus = "PROCESSING"
	OrderStatusShipped           OrderStatus = "SHIPPED"
	OrderStatusDelivered         OrderStatus = "DELIVERED"
	OrderStatusDeliveryConfirmed OrderStatus = "DELIVERY_CONFIRMED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
	OrderStatusReturnRequested   OrderStatus = "RETURN_REQUESTED"
	OrderStatusDisputed          OrderStatus = "DISPUTED"
	OrderStatusRefunded          OrderStatus = "REFUNDED"
	OrderStatusClosed            OrderStatus = "CLOSED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaymentConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusDeliveryConfirmed,
	OrderStatusCancelled,
	OrderStatusReturnRequested,
	OrderStatusDisputed,
	OrderStatusRefunded,
	OrderStatusClosed,
}

// fulfillmentRank orders the main sequence; side branches are absent.
var fulfillmentRank = map[OrderStatus]int{
	OrderStatusPendingPayment:    0,
	OrderStatusPaymentConfirmed:  1,
	OrderStatusProcessing:        2,
	OrderStatusShipped:           3,
	OrderStatusDelivered:         4,
	OrderStatusDeliveryConfirmed: 5,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle movement is expected.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRefunded, OrderStatusClosed:
		return true
	}
	return false
}

// Rank returns the position in the fulfillment sequence and false for side branches.
func (s OrderStatus) Rank() (int, bool) {
	rank, ok := fulfillmentRank[s]
	return rank, ok
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
