// Package payments applies gateway payment callbacks to orders and escrow.
package payments

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/coupons"
	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/internal/notifications"
	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/metrics"
)

// Outcome is how a callback was handled. None of them is reported to the
// gateway as a failure.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeInvalidPayload   Outcome = "invalid_payload"
	OutcomeUnknownOrder     Outcome = "unknown_order"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeAmountMismatch   Outcome = "amount_mismatch"
	OutcomeLatePayment      Outcome = "late_payment"
	OutcomeFailed           Outcome = "failed"
)

const latePaymentFlag = "payment received after the order was closed; refund required"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Processor handles payment callbacks.
type Processor interface {
	Process(ctx context.Context, n Notification) Result
}

// Result is the outcome plus what it applied to.
type Result struct {
	Outcome Outcome
	OrderID uuid.UUID
	Status  enums.PaymentStatus
}

type ProcessorParams struct {
	Payments   Repository
	Orders     orders.Repository
	Tx         txRunner
	Escrow     escrow.Service
	Coupons    coupons.Service
	Dispatcher notifications.Dispatcher
	Effects    *notifications.Runner
	Metrics    *metrics.EscrowMetrics
	Logger     *logger.Logger
	ServerKey  string
}

type processor struct {
	payments   Repository
	orders     orders.Repository
	tx         txRunner
	escrow     escrow.Service
	coupons    coupons.Service
	dispatcher notifications.Dispatcher
	effects    *notifications.Runner
	metrics    *metrics.EscrowMetrics
	logg       *logger.Logger
	serverKey  string
	now        func() time.Time
}

func NewProcessor(params ProcessorParams) (Processor, error) {
	switch {
	case params.Payments == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Escrow == nil:
		return nil, fmt.Errorf("escrow service required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupon service required")
	case params.Dispatcher == nil:
		return nil, fmt.Errorf("notification dispatcher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.ServerKey == "":
		return nil, fmt.Errorf("payment server key required")
	}
	effects := params.Effects
	if effects == nil {
		effects = notifications.NewRunner(params.Logger, params.Metrics)
	}
	return &processor{
		payments:   params.Payments,
		orders:     params.Orders,
		tx:         params.Tx,
		escrow:     params.Escrow,
		coupons:    params.Coupons,
		dispatcher: params.Dispatcher,
		effects:    effects,
		metrics:    params.Metrics,
		logg:       params.Logger,
		serverKey:  params.ServerKey,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Process verifies and applies one callback. Internal failures are logged and
// reported through the outcome only.
func (p *processor) Process(ctx context.Context, n Notification) (result Result) {
	ctx = p.logg.WithFields(ctx, map[string]any{
		"order_number":       n.OrderID,
		"transaction_id":     n.TransactionID,
		"transaction_status": n.TransactionStatus,
	})
	defer func() {
		if r := recover(); r != nil {
			p.logg.Error(ctx, "payment webhook panicked", fmt.Errorf("panic: %v", r))
			result = Result{Outcome: OutcomeFailed}
		}
		p.metrics.IncWebhookOutcome("payment", string(result.Outcome))
		if result.Outcome != OutcomeProcessed {
			p.logg.Warn(p.logg.WithField(ctx, "outcome", string(result.Outcome)), "payment webhook not applied")
		}
	}()

	if !VerifySignature(n, p.serverKey) {
		p.logg.Warn(ctx, "payment webhook signature mismatch; possible forgery")
		return Result{Outcome: OutcomeInvalidSignature}
	}
	orderNumber, err := strconv.ParseInt(n.OrderID, 10, 64)
	if err != nil {
		return Result{Outcome: OutcomeInvalidPayload}
	}
	status, ok := MapStatus(n.TransactionStatus, n.FraudStatus)
	if !ok {
		return Result{Outcome: OutcomeInvalidPayload}
	}
	gross, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		return Result{Outcome: OutcomeInvalidPayload}
	}

	var applied *application
	err = p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		applied, err = p.apply(ctx, tx, orderNumber, status, gross, n)
		return err
	})
	if err != nil {
		p.logg.Error(ctx, "payment webhook processing failed", err)
		return Result{Outcome: OutcomeFailed, Status: status}
	}
	if applied.paid {
		p.afterPaid(ctx, applied.order)
	}
	return Result{Outcome: applied.outcome, OrderID: applied.order.ID, Status: status}
}

type application struct {
	outcome Outcome
	order   *models.Order
	paid    bool
}

func (p *processor) apply(ctx context.Context, tx *gorm.DB, orderNumber int64, status enums.PaymentStatus, gross decimal.Decimal, n Notification) (*application, error) {
	orderRepo := p.orders.WithTx(tx)
	payRepo := p.payments.WithTx(tx)

	order, err := orderRepo.LockOrderByNumber(ctx, orderNumber)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return &application{outcome: OutcomeUnknownOrder, order: &models.Order{}}, nil
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	app := &application{outcome: OutcomeProcessed, order: order}

	payment, err := payRepo.LockByOrder(ctx, order.ID)
	switch {
	case err == nil:
		if payment.Status.IsTerminal() {
			app.outcome = OutcomeDuplicate
			return app, nil
		}
	case stdErrors.Is(err, gorm.ErrRecordNotFound):
		payment = nil
	default:
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	if !gross.Equal(order.Total) {
		p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
			"expected": order.Total.StringFixed(2),
			"received": gross.StringFixed(2),
		}), "payment amount does not match order total")
		app.outcome = OutcomeAmountMismatch
		return app, nil
	}

	if err := p.upsertPayment(ctx, payRepo, order, payment, status, gross, n); err != nil {
		return nil, err
	}

	switch status {
	case enums.PaymentStatusPaid:
		if order.Status != enums.OrderStatusPendingPayment {
			app.outcome = OutcomeLatePayment
			return app, p.flagLatePayment(ctx, orderRepo, order)
		}
		if err := p.confirm(ctx, tx, orderRepo, order); err != nil {
			return nil, err
		}
		app.paid = true
	case enums.PaymentStatusFailed, enums.PaymentStatusExpired, enums.PaymentStatusCancelled:
		if order.Status == enums.OrderStatusPendingPayment {
			if err := p.cancelUnpaid(ctx, tx, orderRepo, order, status); err != nil {
				return nil, err
			}
		}
	case enums.PaymentStatusRefunded:
		if err := orderRepo.UpdateOrder(ctx, order.ID, map[string]any{"payment_status": status}); err != nil {
			return nil, fmt.Errorf("mirror payment status: %w", err)
		}
		order.PaymentStatus = status
	}
	return app, nil
}

func (p *processor) upsertPayment(ctx context.Context, repo Repository, order *models.Order, payment *models.Payment, status enums.PaymentStatus, gross decimal.Decimal, n Notification) error {
	raw, err := json.Marshal(n.Raw)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	create := payment == nil
	if create {
		payment = &models.Payment{OrderID: order.ID}
	}
	payment.ExternalID = n.TransactionID
	payment.Status = status
	payment.GrossAmount = gross
	payment.RawPayload = raw
	payment.SignatureHash = n.SignatureKey
	if n.Currency != "" {
		payment.Currency = n.Currency
	} else if payment.Currency == "" {
		payment.Currency = "IDR"
	}
	if n.PaymentType != "" {
		paymentType := n.PaymentType
		payment.PaymentType = &paymentType
	}
	if status == enums.PaymentStatusPaid {
		now := p.now()
		payment.PaidAt = &now
	}
	if create {
		err = repo.Create(ctx, payment)
	} else {
		err = repo.Save(ctx, payment)
	}
	if err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

// confirm advances the order and its items to PAYMENT_CONFIRMED and credits
// every vendor's pending balance.
func (p *processor) confirm(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order) error {
	decision := orders.EvaluateOrderTransition(orders.TransitionRequest{
		Current: order.Status,
		Target:  enums.OrderStatusPaymentConfirmed,
		Role:    enums.ActorRoleSystem,
		Now:     p.now(),
	})
	if err := decision.Err(); err != nil {
		return err
	}
	trigger := orders.SystemTrigger(orders.TriggerWebhook)
	if err := orders.SyncItems(ctx, repo, order, enums.OrderItemStatusPaymentConfirmed, trigger); err != nil {
		return err
	}
	if err := orders.SetOrderStatus(ctx, repo, order, enums.OrderStatusPaymentConfirmed, trigger,
		map[string]any{"payment_status": enums.PaymentStatusPaid}); err != nil {
		return err
	}
	order.PaymentStatus = enums.PaymentStatusPaid
	_, err := p.escrow.CreditPending(ctx, tx, order, order.Items)
	return err
}

func (p *processor) cancelUnpaid(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, status enums.PaymentStatus) error {
	trigger := orders.SystemTrigger(orders.TriggerWebhook)
	if err := p.coupons.Release(ctx, tx, order.ID); err != nil {
		return err
	}
	if err := orders.SyncItems(ctx, repo, order, enums.OrderItemStatusCancelled, trigger); err != nil {
		return err
	}
	reason := fmt.Sprintf("payment %s", label(status))
	now := p.now()
	order.PaymentStatus = status
	order.CancelReason = &reason
	order.CancelledAt = &now
	return orders.SetOrderStatus(ctx, repo, order, enums.OrderStatusCancelled, trigger, map[string]any{
		"payment_status": status,
		"cancel_reason":  reason,
		"cancelled_at":   now,
	})
}

// flagLatePayment records money that arrived for an order that can no longer
// take it. Nothing is credited; an operator refunds the customer.
func (p *processor) flagLatePayment(ctx context.Context, repo orders.Repository, order *models.Order) error {
	flag := latePaymentFlag
	order.RefundFlag = &flag
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"refund_flag": flag}); err != nil {
		return fmt.Errorf("flag late payment: %w", err)
	}
	return nil
}

func (p *processor) afterPaid(ctx context.Context, order *models.Order) {
	link := fmt.Sprintf("/orders/%s", order.ID)
	effects := []notifications.Effect{{
		Name: "notify_customer",
		Run: func(ctx context.Context) error {
			return p.dispatcher.Notify(ctx, notifications.Notification{
				RecipientID:   order.CustomerID,
				RecipientRole: enums.ActorRoleCustomer,
				Type:          enums.NotificationTypeOrderPaid,
				Title:         "Payment received",
				Message:       fmt.Sprintf("We received the payment for order #%d.", order.OrderNumber),
				Link:          link,
				Metadata:      map[string]any{"order_id": order.ID.String(), "order_number": order.OrderNumber},
			})
		},
	}}
	for _, item := range order.Items {
		req := notifications.ChatRoomRequest{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			OrderItemID: item.ID,
			CustomerID:  order.CustomerID,
			VendorID:    item.VendorID,
		}
		effects = append(effects, notifications.Effect{
			Name: "provision_chat_room",
			Run:  func(ctx context.Context) error { return p.dispatcher.ProvisionChatRoom(ctx, req) },
		})
	}
	_ = p.effects.Run(ctx, effects...)
}

func label(status enums.PaymentStatus) string {
	switch status {
	case enums.PaymentStatusFailed:
		return "failed"
	case enums.PaymentStatusExpired:
		return "expired"
	case enums.PaymentStatusCancelled:
		return "cancelled"
	}
	return string(status)
}
