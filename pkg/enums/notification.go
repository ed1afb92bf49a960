package enums

import "fmt"

// NotificationType categorizes an outbound customer or vendor notification.
type NotificationType string

const (
	NotificationTypeOrderPaid       NotificationType = "order_paid"
	NotificationTypeOrderCancelled  NotificationType = "order_cancelled"
	NotificationTypeOrderShipped    NotificationType = "order_shipped"
	NotificationTypeOrderDelivered  NotificationType = "order_delivered"
	NotificationTypeReturnRequested NotificationType = "return_requested"
	NotificationTypeDisputeUpdate   NotificationType = "dispute_update"
	NotificationTypePayoutUpdate    NotificationType = "payout_update"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderPaid,
	NotificationTypeOrderCancelled,
	NotificationTypeOrderShipped,
	NotificationTypeOrderDelivered,
	NotificationTypeReturnRequested,
	NotificationTypeDisputeUpdate,
	NotificationTypePayoutUpdate,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
