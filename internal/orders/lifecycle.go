package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

// Trigger sources recorded on status history rows.
const (
	TriggerWebhook              = "webhook"
	TriggerCustomerRequest      = "customer_request"
	TriggerCustomerConfirmation = "customer_confirmation"
	TriggerVendorUpdate         = "vendor_update"
	TriggerAdminOverride        = "admin_override"
	TriggerCarrierTracking      = "carrier_tracking"
	TriggerCronExpiry           = "cron_expiry"
	TriggerDisputeOpened        = "dispute_opened"
	TriggerDisputeResolution    = "dispute_resolution"
	TriggerItemRecompute        = "item_recompute"
)

// Trigger identifies who caused a transition and through which channel.
type Trigger struct {
	Source  string
	Role    enums.ActorRole
	ActorID *uuid.UUID
	Note    string
}

// SystemTrigger builds a trigger for automated transitions.
func SystemTrigger(source string) Trigger {
	return Trigger{Source: source, Role: enums.ActorRoleSystem}
}

func (t Trigger) history(order *models.Order, itemID *uuid.UUID, from, to string) models.OrderStatusHistory {
	entry := models.OrderStatusHistory{
		OrderID:     order.ID,
		OrderItemID: itemID,
		FromStatus:  from,
		ToStatus:    to,
		ActorRole:   t.Role,
		ActorID:     t.ActorID,
		Trigger:     t.Source,
	}
	if t.Note != "" {
		note := t.Note
		entry.Note = &note
	}
	return entry
}

// Deliverer marks a locked, shipped order delivered and releases its escrow.
// It is implemented by the delivery orchestrator.
type Deliverer interface {
	DeliverInTx(ctx context.Context, tx *gorm.DB, order *models.Order, trigger Trigger) (*DeliveryResult, error)
}

// DeliveryResult reports what a delivery did. AlreadyDelivered is true when
// the call was a no-op because funds had been released before.
type DeliveryResult struct {
	Order            *models.Order
	Released         *escrow.Movement
	AlreadyDelivered bool
}

// SetOrderStatus moves the locked order to target and appends a history row.
// Extra columns are written in the same update.
func SetOrderStatus(ctx context.Context, repo Repository, order *models.Order, target enums.OrderStatus, trigger Trigger, extra map[string]any) error {
	updates := map[string]any{"status": target}
	for k, v := range extra {
		updates[k] = v
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	from := order.Status
	order.Status = target
	if err := repo.AppendHistory(ctx, trigger.history(order, nil, from.String(), target.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}
	return nil
}

// SyncItems moves every item that is not cancelled and not already at target.
// Cancelling moves every item regardless of progress.
func SyncItems(ctx context.Context, repo Repository, order *models.Order, target enums.OrderItemStatus, trigger Trigger) error {
	now := time.Now().UTC()
	entries := make([]models.OrderStatusHistory, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		if item.Status == target || item.Status == enums.OrderItemStatusCancelled {
			continue
		}
		updates := map[string]any{"status": target}
		if target == enums.OrderItemStatusDelivered && item.DeliveredAt == nil {
			updates["delivered_at"] = now
			item.DeliveredAt = &now
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item status")
		}
		itemID := item.ID
		entries = append(entries, trigger.history(order, &itemID, item.Status.String(), target.String()))
		item.Status = target
	}
	if err := repo.AppendHistory(ctx, entries...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append item history")
	}
	return nil
}

// Recompute re-derives the order status from its items while the order is in
// fulfillment. It is a pure function of the items, so calling it twice is a
// no-op. Delivery is never derived here; it always goes through the
// delivery orchestrator so funds are released with it.
func Recompute(ctx context.Context, repo Repository, order *models.Order, trigger Trigger) (bool, error) {
	rank, ok := order.Status.Rank()
	if !ok || rank < 1 || rank > 3 {
		return false, nil
	}
	statuses := make([]enums.OrderItemStatus, len(order.Items))
	for i, item := range order.Items {
		statuses[i] = item.Status
	}
	derived, ok := DeriveOrderStatus(statuses)
	if !ok || derived == order.Status || derived == enums.OrderStatusDelivered {
		return false, nil
	}
	recompute := trigger
	recompute.Source = TriggerItemRecompute
	if err := SetOrderStatus(ctx, repo, order, derived, recompute, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Credited reports whether any item of the order has been credited to escrow.
func Credited(order *models.Order) bool {
	for _, item := range order.Items {
		if item.CreditedAt != nil {
			return true
		}
	}
	return false
}

// Released reports whether escrow for the order has been released.
func Released(order *models.Order) bool {
	for _, item := range order.Items {
		if item.ReleasedAt != nil {
			return true
		}
	}
	return false
}

// ActiveItems returns the items that were not cancelled.
func ActiveItems(order *models.Order) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if item.Status != enums.OrderItemStatusCancelled {
			out = append(out, item)
		}
	}
	return out
}
