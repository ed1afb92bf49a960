package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

const defaultPublishTimeout = 15 * time.Second

// Notification is the fire-and-forget contract of the notification service.
type Notification struct {
	RecipientID   uuid.UUID              `json:"recipient_id"`
	RecipientRole enums.ActorRole        `json:"recipient_role"`
	Type          enums.NotificationType `json:"type"`
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Link          string                 `json:"link,omitempty"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
}

// ChatRoomRequest asks the chat service for a customer/vendor room scoped to one order item.
type ChatRoomRequest struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
}

// Dispatcher hands side effects to external collaborators.
type Dispatcher interface {
	Notify(ctx context.Context, n Notification) error
	ProvisionChatRoom(ctx context.Context, req ChatRoomRequest) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubDispatcher publishes notifications and chat-room requests as JSON messages.
type PubSubDispatcher struct {
	notifications publisher
	chatRooms     publisher
	logg          *logger.Logger
}

// NewPubSubDispatcher wraps the two topic publishers.
func NewPubSubDispatcher(notifications, chatRooms *gcppubsub.Publisher, logg *logger.Logger) (*PubSubDispatcher, error) {
	if notifications == nil || chatRooms == nil {
		return nil, fmt.Errorf("notification and chat room publishers required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PubSubDispatcher{
		notifications: &gcpPublisher{Publisher: notifications},
		chatRooms:     &gcpPublisher{Publisher: chatRooms},
		logg:          logg,
	}, nil
}

func (d *PubSubDispatcher) Notify(ctx context.Context, n Notification) error {
	if !n.Type.IsValid() {
		return fmt.Errorf("invalid notification type %q", n.Type)
	}
	return d.publish(ctx, d.notifications, n, map[string]string{
		"event_type":   string(n.Type),
		"recipient_id": n.RecipientID.String(),
	})
}

func (d *PubSubDispatcher) ProvisionChatRoom(ctx context.Context, req ChatRoomRequest) error {
	return d.publish(ctx, d.chatRooms, req, map[string]string{
		"event_type":    "chat_room_requested",
		"order_item_id": req.OrderItemID.String(),
	})
}

func (d *PubSubDispatcher) publish(ctx context.Context, pub publisher, payload any, attrs map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	attrs["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{Data: data, Attributes: attrs})
	if result == nil {
		return fmt.Errorf("publisher returned nil result")
	}
	id, err := result.Get(publishCtx)
	if err != nil {
		return err
	}
	d.logg.Debug(d.logg.WithFields(ctx, map[string]any{"message_id": id, "event_type": attrs["event_type"]}), "side effect published")
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

// LogDispatcher only logs. It backs local development when Pub/Sub is not configured.
type LogDispatcher struct {
	logg *logger.Logger
}

func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) Notify(ctx context.Context, n Notification) error {
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"recipient_id": n.RecipientID.String(),
		"type":         n.Type,
		"title":        n.Title,
	}), "notification dispatched")
	return nil
}

func (d *LogDispatcher) ProvisionChatRoom(ctx context.Context, req ChatRoomRequest) error {
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"order_item_id": req.OrderItemID.String(),
		"vendor_id":     req.VendorID.String(),
	}), "chat room requested")
	return nil
}
