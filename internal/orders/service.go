package orders

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/coupons"
	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/internal/gateway"
	"github.com/vendorhub/marketplace-backend/internal/notifications"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the order lifecycle to customers, vendors and admins.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderView, error)
	Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*OrderView, error)
	List(ctx context.Context, input ListInput) (*OrderList, error)
	Cancel(ctx context.Context, input CancelInput) (*OrderView, error)
	ConfirmDelivery(ctx context.Context, orderID, customerID uuid.UUID) (*OrderView, error)
	RequestReturn(ctx context.Context, input ReturnInput) (*OrderView, error)
	AdvanceItem(ctx context.Context, input ItemStatusInput) (*OrderView, error)
	AdminTransition(ctx context.Context, input AdminTransitionInput) (*OrderView, error)
	UnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	ExpireUnpaid(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// Viewer is the authenticated principal reading an order.
type Viewer struct {
	UserID   uuid.UUID
	Role     enums.ActorRole
	VendorID *uuid.UUID
}

// ServiceParams bundles the dependencies of the order service.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Escrow     escrow.Service
	Coupons    coupons.Service
	Delivery   Deliverer
	Refunds    gateway.Refunder
	Dispatcher notifications.Dispatcher
	Effects    *notifications.Runner
	Logger     *logger.Logger
	Windows    Windows
}

type service struct {
	repo       Repository
	tx         txRunner
	escrow     escrow.Service
	coupons    coupons.Service
	delivery   Deliverer
	refunds    gateway.Refunder
	dispatcher notifications.Dispatcher
	effects    *notifications.Runner
	logg       *logger.Logger
	windows    Windows
	now        func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Escrow == nil:
		return nil, fmt.Errorf("escrow service required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupon service required")
	case params.Delivery == nil:
		return nil, fmt.Errorf("delivery orchestrator required")
	case params.Refunds == nil:
		return nil, fmt.Errorf("refund gateway required")
	case params.Dispatcher == nil:
		return nil, fmt.Errorf("notification dispatcher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	windows := params.Windows
	if windows.Cancellation <= 0 {
		windows.Cancellation = DefaultWindows.Cancellation
	}
	if windows.Return <= 0 {
		windows.Return = DefaultWindows.Return
	}
	effects := params.Effects
	if effects == nil {
		effects = notifications.NewRunner(params.Logger, nil)
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		escrow:     params.Escrow,
		coupons:    params.Coupons,
		delivery:   params.Delivery,
		refunds:    params.Refunds,
		dispatcher: params.Dispatcher,
		effects:    effects,
		logg:       params.Logger,
		windows:    windows,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}
	return order, nil
}

func requireOwner(order *models.Order, customerID uuid.UUID) error {
	if order.CustomerID != customerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
	}
	return nil
}

func actorTrigger(source string, role enums.ActorRole, actorID uuid.UUID, note string) Trigger {
	id := actorID
	return Trigger{Source: source, Role: role, ActorID: &id, Note: note}
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*OrderView, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := canView(order, viewer); err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	view := NewOrderView(order, history)
	return &view, nil
}

func canView(order *models.Order, viewer Viewer) error {
	switch viewer.Role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleCustomer:
		return requireOwner(order, viewer.UserID)
	case enums.ActorRoleVendor:
		if viewer.VendorID != nil {
			for _, item := range order.Items {
				if item.VendorID == *viewer.VendorID {
					return nil
				}
			}
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order is not visible to this account")
}

func (s *service) List(ctx context.Context, input ListInput) (*OrderList, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", *input.Status))
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListCustomerOrders(ctx, input.CustomerID, listQuery{
		status: input.Status,
		limit:  pagination.LimitWithBuffer(input.Limit),
		cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Page(rows, input.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	list := &OrderList{Orders: make([]OrderView, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Orders = append(list.Orders, NewOrderView(&rows[i], nil))
	}
	return list, nil
}

// Cancel cancels an order for its customer (inside the cancellation window)
// or for an admin. Paid orders have their escrow reversed in the same
// transaction and the customer refund is requested after commit.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*OrderView, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}
	if input.Role != enums.ActorRoleCustomer && input.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers and admins can cancel orders")
	}

	var outcome *closeOutcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if input.Role == enums.ActorRoleCustomer {
			if err := requireOwner(order, input.ActorID); err != nil {
				return err
			}
		}
		decision := EvaluateOrderTransition(TransitionRequest{
			Current:   order.Status,
			Target:    enums.OrderStatusCancelled,
			Role:      input.Role,
			CreatedAt: order.CreatedAt,
			Now:       s.now(),
			Windows:   s.windows,
		})
		if !decision.Allowed {
			return decision.Err()
		}
		source := TriggerCustomerRequest
		if input.Role == enums.ActorRoleAdmin {
			source = TriggerAdminOverride
		}
		outcome, err = s.closeOut(ctx, tx, order, enums.OrderStatusCancelled,
			actorTrigger(source, input.Role, input.ActorID, reason), reason, enums.PaymentStatusCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterClose(ctx, outcome)
	view := NewOrderView(outcome.order, nil)
	return &view, nil
}

func (s *service) UnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.FindUnpaidBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find unpaid orders")
	}
	return ids, nil
}

// ExpireUnpaid cancels an order whose payment never arrived. It reports
// false when the order moved on in the meantime.
func (s *service) ExpireUnpaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var outcome *closeOutcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPendingPayment || Credited(order) {
			return nil
		}
		outcome, err = s.closeOut(ctx, tx, order, enums.OrderStatusCancelled,
			SystemTrigger(TriggerCronExpiry), "payment window expired", enums.PaymentStatusExpired)
		return err
	})
	if err != nil || outcome == nil {
		return false, err
	}
	s.afterClose(ctx, outcome)
	return true, nil
}

// closeOutcome carries what must happen after a cancellation or refund commits.
type closeOutcome struct {
	order    *models.Order
	reversed *escrow.Movement
	refund   *gateway.RefundRequest
}

// closeOut moves a locked order to CANCELLED or REFUNDED. Credited escrow is
// reversed in full and the payment is marked refunded; an unpaid order gets
// unpaidStatus as its payment status instead.
func (s *service) closeOut(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, trigger Trigger, reason string, unpaidStatus enums.PaymentStatus) (*closeOutcome, error) {
	repo := s.repo.WithTx(tx)
	outcome := &closeOutcome{order: order}
	extra := map[string]any{}

	if Credited(order) {
		movement, err := s.escrow.Reverse(ctx, tx, order, order.Items, nil)
		if err != nil {
			return nil, err
		}
		outcome.reversed = movement
		payment, err := repo.FindPayment(ctx, order.ID)
		switch {
		case err == nil:
			if err := repo.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusRefunded); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
			}
			outcome.refund = &gateway.RefundRequest{
				OrderNumber: order.OrderNumber,
				ExternalID:  payment.ExternalID,
				Amount:      order.Total,
				Key:         fmt.Sprintf("order-%d-%s", order.OrderNumber, strings.ToLower(target.String())),
				Reason:      reason,
			}
		case !stdErrors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		extra["payment_status"] = enums.PaymentStatusRefunded
		order.PaymentStatus = enums.PaymentStatusRefunded
	} else if target == enums.OrderStatusCancelled && unpaidStatus != "" {
		extra["payment_status"] = unpaidStatus
		order.PaymentStatus = unpaidStatus
	}

	if target == enums.OrderStatusCancelled {
		if err := s.coupons.Release(ctx, tx, order.ID); err != nil {
			return nil, err
		}
		if err := SyncItems(ctx, repo, order, enums.OrderItemStatusCancelled, trigger); err != nil {
			return nil, err
		}
		now := s.now()
		extra["cancel_reason"] = reason
		extra["cancelled_at"] = now
		order.CancelReason = &reason
		order.CancelledAt = &now
	}
	if err := SetOrderStatus(ctx, repo, order, target, trigger, extra); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *service) afterClose(ctx context.Context, outcome *closeOutcome) {
	if outcome == nil {
		return
	}
	order := outcome.order
	effects := []notifications.Effect{
		s.notifyCustomer(order, enums.NotificationTypeOrderCancelled,
			"Order "+order.Status.String(), fmt.Sprintf("Order #%d is now %s.", order.OrderNumber, label(order.Status))),
	}
	effects = append(effects, s.notifyVendors(order, enums.NotificationTypeOrderCancelled,
		"Order "+order.Status.String(), fmt.Sprintf("Order #%d is now %s.", order.OrderNumber, label(order.Status)))...)
	if outcome.refund != nil {
		req := *outcome.refund
		effects = append(effects, notifications.Effect{
			Name: "gateway_refund",
			Run: func(ctx context.Context) error {
				return s.requestRefund(ctx, order.ID, req)
			},
		})
	}
	_ = s.effects.Run(ctx, effects...)
}

// requestRefund calls the gateway and records a durable flag on the order
// when the call fails, so operators can settle it by hand.
func (s *service) requestRefund(ctx context.Context, orderID uuid.UUID, req gateway.RefundRequest) error {
	if !req.Amount.IsPositive() {
		return nil
	}
	if _, err := s.refunds.Refund(ctx, req); err != nil {
		flag := fmt.Sprintf("gateway refund of %s failed: %v", req.Amount.StringFixed(2), err)
		if updateErr := s.repo.UpdateOrder(ctx, orderID, map[string]any{"refund_flag": flag}); updateErr != nil {
			return fmt.Errorf("refund failed (%v) and flag not saved: %w", err, updateErr)
		}
		return err
	}
	return nil
}

func orderLink(order *models.Order) string {
	return fmt.Sprintf("/orders/%s", order.ID)
}

func (s *service) notifyCustomer(order *models.Order, kind enums.NotificationType, title, message string) notifications.Effect {
	n := notifications.Notification{
		RecipientID:   order.CustomerID,
		RecipientRole: enums.ActorRoleCustomer,
		Type:          kind,
		Title:         title,
		Message:       message,
		Link:          orderLink(order),
		Metadata:      map[string]any{"order_id": order.ID.String(), "order_number": order.OrderNumber},
	}
	return notifications.Effect{
		Name: "notify_customer",
		Run:  func(ctx context.Context) error { return s.dispatcher.Notify(ctx, n) },
	}
}

// notifyVendors addresses one notification to each vendor of the order.
func (s *service) notifyVendors(order *models.Order, kind enums.NotificationType, title, message string) []notifications.Effect {
	seen := map[uuid.UUID]bool{}
	var effects []notifications.Effect
	for _, item := range order.Items {
		if seen[item.VendorID] {
			continue
		}
		seen[item.VendorID] = true
		n := notifications.Notification{
			RecipientID:   item.VendorID,
			RecipientRole: enums.ActorRoleVendor,
			Type:          kind,
			Title:         title,
			Message:       message,
			Link:          orderLink(order),
			Metadata:      map[string]any{"order_id": order.ID.String(), "order_number": order.OrderNumber},
		}
		effects = append(effects, notifications.Effect{
			Name: "notify_vendor",
			Run:  func(ctx context.Context) error { return s.dispatcher.Notify(ctx, n) },
		})
	}
	return effects
}
