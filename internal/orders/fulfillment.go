package orders

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

// ConfirmDelivery lets the customer confirm receipt. A shipped order is first
// marked delivered through the delivery orchestrator, which releases escrow;
// both steps share one transaction.
func (s *service) ConfirmDelivery(ctx context.Context, orderID, customerID uuid.UUID) (*OrderView, error) {
	var (
		order     *models.Order
		delivered *DeliveryResult
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := requireOwner(order, customerID); err != nil {
			return err
		}
		trigger := actorTrigger(TriggerCustomerConfirmation, enums.ActorRoleCustomer, customerID, "")

		if order.Status == enums.OrderStatusShipped {
			delivered, err = s.delivery.DeliverInTx(ctx, tx, order, trigger)
			if err != nil {
				return err
			}
		}
		decision := EvaluateOrderTransition(TransitionRequest{
			Current:             order.Status,
			Target:              enums.OrderStatusDeliveryConfirmed,
			Role:                enums.ActorRoleCustomer,
			CreatedAt:           order.CreatedAt,
			DeliveryConfirmedAt: order.DeliveryConfirmedAt,
			Now:                 s.now(),
			Windows:             s.windows,
		})
		if !decision.Allowed {
			return decision.Err()
		}
		if order.DeliveryConfirmedAt == nil {
			return pkgerrors.StateConflict(ReasonDeliveryNotRecorded, "delivery has not been recorded for this order")
		}
		return SetOrderStatus(ctx, repo, order, enums.OrderStatusDeliveryConfirmed, trigger, nil)
	})
	if err != nil {
		return nil, err
	}
	if delivered != nil && !delivered.AlreadyDelivered {
		_ = s.effects.Run(ctx, s.notifyVendors(order, enums.NotificationTypeOrderDelivered,
			"Order delivered", fmt.Sprintf("Order #%d was delivered and its funds are now available.", order.OrderNumber))...)
	}
	view := NewOrderView(order, nil)
	return &view, nil
}

// RequestReturn opens a return within the return window after delivery was
// confirmed. Money does not move until the return is settled.
func (s *service) RequestReturn(ctx context.Context, input ReturnInput) (*OrderView, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}
	description := strings.TrimSpace(input.Description)

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwner(order, input.CustomerID); err != nil {
			return err
		}
		now := s.now()
		decision := EvaluateOrderTransition(TransitionRequest{
			Current:             order.Status,
			Target:              enums.OrderStatusReturnRequested,
			Role:                enums.ActorRoleCustomer,
			CreatedAt:           order.CreatedAt,
			DeliveryConfirmedAt: order.DeliveryConfirmedAt,
			Now:                 now,
			Windows:             s.windows,
		})
		if !decision.Allowed {
			return decision.Err()
		}
		order.ReturnReason = &reason
		order.ReturnDescription = &description
		order.ReturnRequestedAt = &now
		return SetOrderStatus(ctx, repo, order, enums.OrderStatusReturnRequested,
			actorTrigger(TriggerCustomerRequest, enums.ActorRoleCustomer, input.CustomerID, reason),
			map[string]any{
				"return_reason":       reason,
				"return_description":  description,
				"return_requested_at": now,
			})
	})
	if err != nil {
		return nil, err
	}
	_ = s.effects.Run(ctx, s.notifyVendors(order, enums.NotificationTypeReturnRequested,
		"Return requested", fmt.Sprintf("The customer requested a return for order #%d: %s", order.OrderNumber, reason))...)
	view := NewOrderView(order, nil)
	return &view, nil
}

// AdvanceItem moves one of the vendor's own items forward and re-derives the
// order status from all items.
func (s *service) AdvanceItem(ctx context.Context, input ItemStatusInput) (*OrderView, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	tracking := strings.TrimSpace(input.TrackingNumber)

	var (
		order   *models.Order
		shipped bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindItem(ctx, input.ItemID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if found.VendorID != input.VendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "item does not belong to vendor")
		}
		order, err = lockOrder(ctx, repo, found.OrderID)
		if err != nil {
			return err
		}
		item := itemByID(order, input.ItemID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}

		decision := EvaluateItemTransition(ItemTransitionRequest{
			Current:        item.Status,
			Target:         input.Target,
			Role:           enums.ActorRoleVendor,
			OrderStatus:    order.Status,
			TrackingNumber: tracking,
		})
		if !decision.Allowed {
			return decision.Err()
		}

		trigger := actorTrigger(TriggerVendorUpdate, enums.ActorRoleVendor, input.ActorID, "")
		updates := map[string]any{"status": input.Target}
		if input.Target == enums.OrderItemStatusShipped {
			now := s.now()
			updates["tracking_number"] = tracking
			updates["shipped_at"] = now
			item.TrackingNumber = &tracking
			item.ShippedAt = &now
			if url := strings.TrimSpace(input.TrackingURL); url != "" {
				updates["tracking_url"] = url
				item.TrackingURL = &url
			}
			shipped = true
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		itemID := item.ID
		if err := repo.AppendHistory(ctx, trigger.history(order, &itemID, item.Status.String(), input.Target.String())); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append item history")
		}
		item.Status = input.Target

		_, err = Recompute(ctx, repo, order, trigger)
		return err
	})
	if err != nil {
		return nil, err
	}
	if shipped {
		_ = s.effects.Run(ctx, s.notifyCustomer(order, enums.NotificationTypeOrderShipped,
			"Item shipped", fmt.Sprintf("An item of order #%d is on its way. Tracking number %s.", order.OrderNumber, tracking)))
	}
	view := NewOrderView(order, nil)
	return &view, nil
}

func itemByID(order *models.Order, itemID uuid.UUID) *models.OrderItem {
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return &order.Items[i]
		}
	}
	return nil
}
