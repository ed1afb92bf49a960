package orders

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

// AdminTransition applies a manual override. Admins are not bound by the
// actor rules, but escrow still has to stay consistent with the target:
// delivery goes through the delivery orchestrator, cancellations and refunds
// reverse credited funds, and fulfillment statuses cannot be faked for an
// unpaid order or rewound after funds were released.
func (s *service) AdminTransition(ctx context.Context, input AdminTransitionInput) (*OrderView, error) {
	note := strings.TrimSpace(input.Note)

	var (
		order   *models.Order
		outcome *closeOutcome
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		decision := EvaluateOrderTransition(TransitionRequest{
			Current:   order.Status,
			Target:    input.Target,
			Role:      enums.ActorRoleAdmin,
			CreatedAt: order.CreatedAt,
			Now:       s.now(),
			Windows:   s.windows,
		})
		if !decision.Allowed {
			return decision.Err()
		}
		trigger := actorTrigger(TriggerAdminOverride, enums.ActorRoleAdmin, input.AdminID, note)
		if err := adminGuard(order, input.Target).Err(); err != nil {
			return err
		}

		switch input.Target {
		case enums.OrderStatusDelivered:
			_, err := s.delivery.DeliverInTx(ctx, tx, order, trigger)
			return err
		case enums.OrderStatusCancelled, enums.OrderStatusRefunded:
			reason := note
			if reason == "" {
				reason = "admin override"
			}
			outcome, err = s.closeOut(ctx, tx, order, input.Target, trigger, reason, enums.PaymentStatusCancelled)
			return err
		}

		if itemStatus, ok := ItemStatusFor(input.Target); ok {
			if err := SyncItems(ctx, repo, order, itemStatus, trigger); err != nil {
				return err
			}
		}
		return SetOrderStatus(ctx, repo, order, input.Target, trigger, nil)
	})
	if err != nil {
		return nil, err
	}
	s.afterClose(ctx, outcome)
	view := NewOrderView(order, nil)
	return &view, nil
}

// adminGuard rejects overrides that would leave escrow inconsistent with the
// order status.
func adminGuard(order *models.Order, target enums.OrderStatus) Decision {
	credited := Credited(order)
	released := Released(order)
	rank, inSequence := target.Rank()

	switch {
	case target == enums.OrderStatusPendingPayment && credited:
		return deny(ReasonPaymentAlreadyCredited, "a paid order cannot return to pending payment")
	case target == enums.OrderStatusDeliveryConfirmed && order.DeliveryConfirmedAt == nil:
		return deny(ReasonDeliveryNotRecorded, "delivery has not been recorded for this order; mark it delivered first")
	case inSequence && rank >= 1 && rank <= 3 && !credited:
		return deny(ReasonPaymentNotConfirmed, fmt.Sprintf("order cannot move to %s before payment is confirmed", label(target)))
	case inSequence && rank >= 1 && rank <= 3 && released:
		return deny(ReasonFundsAlreadyReleased, fmt.Sprintf("funds were already released; order cannot move back to %s", label(target)))
	case target == enums.OrderStatusClosed && heldInEscrow(order):
		return deny(ReasonFundsHeld, "funds are still held in escrow; deliver or refund the order before closing it")
	}
	return allow()
}

// heldInEscrow reports whether any item still has credited net sitting in
// the pending balance.
func heldInEscrow(order *models.Order) bool {
	for _, item := range order.Items {
		if item.CreditedAt != nil && item.ReleasedAt == nil && item.RemainingNet().IsPositive() {
			return true
		}
	}
	return false
}
