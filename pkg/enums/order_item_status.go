package enums

import "fmt"

// OrderItemStatus is the per-vendor fulfillment status of a single line.
type OrderItemStatus string

const (
	OrderItemStatusPendingPayment   OrderItemStatus = "PENDING_PAYMENT"
	OrderItemStatusPaymentConfirmed OrderItemStatus = "PAYMENT_CONFIRMED"
	OrderItemStatusProcessing       OrderItemStatus = "PROCESSING"
	OrderItemStatusShipped          OrderItemStatus = "SHIPPED"
	OrderItemStatusDelivered        OrderItemStatus = "DELIVERED"
	OrderItemStatusCancelled        OrderItemStatus = "CANCELLED"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusPendingPayment,
	OrderItemStatusPaymentConfirmed,
	OrderItemStatusProcessing,
	OrderItemStatusShipped,
	OrderItemStatusDelivered,
	OrderItemStatusCancelled,
}

func (s OrderItemStatus) String() string {
	return string(s)
}

func (s OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// OrderStatus maps the item status onto the order-level vocabulary.
func (s OrderItemStatus) OrderStatus() OrderStatus {
	return OrderStatus(s)
}

// Rank returns the item's position in the fulfillment sequence.
func (s OrderItemStatus) Rank() (int, bool) {
	return OrderStatus(s).Rank()
}

func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
