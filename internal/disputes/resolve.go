package disputes

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/gateway"
	"github.com/vendorhub/marketplace-backend/internal/notifications"
	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

const heldFundsComment = "Funds for this order are still held in escrow. Release or refund them manually."

// Resolve records the admin's decision. The dispute and order statuses commit
// first; a customer-favor refund then runs in its own transaction followed by
// the gateway call, and any failure there is left on the dispute as a flag
// and a system comment.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*DisputeView, error) {
	notes := strings.TrimSpace(input.Notes)
	if err := validateResolve(input, notes); err != nil {
		return nil, err
	}
	customerFavor := input.Resolution == enums.DisputeResolutionCustomerFavor

	var (
		order  *models.Order
		refund decimal.Decimal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		dispute, err := repo.Lock(ctx, input.DisputeID)
		if err != nil {
			return notFound(err, "dispute")
		}
		if dispute.Status.IsTerminal() {
			return pkgerrors.StateConflict(ReasonAlreadyResolved, "dispute is already resolved")
		}
		order, err = orderRepo.LockOrder(ctx, dispute.OrderID)
		if err != nil {
			return notFound(err, "order")
		}
		target := input.Resolution.OrderStatus()
		decision := orders.EvaluateOrderTransition(orders.TransitionRequest{
			Current: order.Status,
			Target:  target,
			Role:    enums.ActorRoleSystem,
			Now:     s.now(),
		})
		if err := decision.Err(); err != nil {
			return err
		}

		now := s.now()
		adminID := input.AdminID
		resolution := input.Resolution
		updates := map[string]any{
			"status":           resolution.DisputeStatus(),
			"resolution_type":  resolution,
			"resolution_notes": notes,
			"resolved_by":      adminID,
			"resolved_at":      now,
		}
		if customerFavor {
			refund = capRefund(input.RefundAmount, order.Total)
			updates["refund_amount"] = refund
		} else if orders.Credited(order) && !orders.Released(order) {
			updates["requires_manual_action"] = true
			if err := repo.AddComment(ctx, systemComment(dispute.ID, heldFundsComment)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add system comment")
			}
		}
		if err := repo.Update(ctx, dispute.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
		}
		trigger := orders.Trigger{
			Source:  orders.TriggerDisputeResolution,
			Role:    enums.ActorRoleAdmin,
			ActorID: &adminID,
			Note:    notes,
		}
		return orders.SetOrderStatus(ctx, orderRepo, order, target, trigger, nil)
	})
	if err != nil {
		return nil, err
	}

	if customerFavor {
		s.settleRefund(ctx, input.DisputeID, order.ID, refund, notes)
	}

	dispute, err := s.repo.Find(ctx, input.DisputeID)
	if err != nil {
		return nil, notFound(err, "dispute")
	}
	message := fmt.Sprintf("The dispute on order #%d was resolved: %s.", order.OrderNumber, strings.ToLower(strings.ReplaceAll(string(input.Resolution), "_", " ")))
	effects := append([]notifications.Effect{s.notifyCustomer(order, dispute, message)}, s.notifyVendors(order, dispute, message)...)
	_ = s.effects.Run(ctx, effects...)

	view := NewDisputeView(dispute)
	return &view, nil
}

func validateResolve(input ResolveInput, notes string) error {
	details := map[string]string{}
	if !input.Resolution.IsValid() {
		details["resolution"] = "unknown resolution"
	}
	if utf8.RuneCountInString(notes) < MinResolutionNotesLength {
		details["notes"] = fmt.Sprintf("must be at least %d characters", MinResolutionNotesLength)
	}
	if input.RefundAmount != nil {
		switch {
		case input.Resolution != enums.DisputeResolutionCustomerFavor:
			details["refund_amount"] = "only customer-favor resolutions carry a refund"
		case !input.RefundAmount.IsPositive():
			details["refund_amount"] = "must be positive"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid resolution").WithDetails(details)
	}
	return nil
}

// settleRefund reverses vendor funds and asks the gateway to refund the
// customer. It never fails the resolution; problems are recorded on the
// dispute instead.
func (s *service) settleRefund(ctx context.Context, disputeID, orderID uuid.UUID, amount decimal.Decimal, reason string) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"dispute_id": disputeID.String(),
		"order_id":   orderID.String(),
		"amount":     amount.StringFixed(2),
	})

	var req *gateway.RefundRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if _, err := s.escrow.Reverse(ctx, tx, order, order.Items, &amount); err != nil {
			return err
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"payment_status": enums.PaymentStatusRefunded}); err != nil {
			return err
		}
		payment, err := repo.FindPayment(ctx, order.ID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := repo.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusRefunded); err != nil {
			return err
		}
		req = &gateway.RefundRequest{
			OrderNumber: order.OrderNumber,
			ExternalID:  payment.ExternalID,
			Amount:      amount,
			Key:         "dispute-" + disputeID.String(),
			Reason:      reason,
		}
		return nil
	})
	switch {
	case err != nil:
		s.logg.Error(ctx, "dispute refund reversal failed", err)
		s.flagManual(ctx, disputeID, fmt.Sprintf("Refund of %s could not be applied to vendor balances: %v", amount.StringFixed(2), err))
		return
	case req == nil:
		s.flagManual(ctx, disputeID, fmt.Sprintf("No gateway payment is recorded for this order. Refund %s to the customer manually.", amount.StringFixed(2)))
		return
	case !amount.IsPositive():
		return
	}

	if _, err := s.refunds.Refund(ctx, *req); err != nil {
		s.logg.Error(ctx, "dispute gateway refund failed", err)
		s.flagManual(ctx, disputeID, fmt.Sprintf("Gateway refund of %s failed: %v. Vendor balances were already reversed.", amount.StringFixed(2), err))
	}
}

func (s *service) flagManual(ctx context.Context, disputeID uuid.UUID, message string) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, disputeID, map[string]any{
			"requires_manual_action": true,
			"refund_failure_reason":  message,
		}); err != nil {
			return err
		}
		return repo.AddComment(ctx, systemComment(disputeID, message))
	})
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "flag", message), "could not flag dispute for manual action", err)
	}
}

func systemComment(disputeID uuid.UUID, body string) *models.DisputeComment {
	return &models.DisputeComment{
		DisputeID:  disputeID,
		AuthorRole: enums.ActorRoleSystem,
		Body:       body,
		IsSystem:   true,
	}
}
