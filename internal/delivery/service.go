// Package delivery owns the single path that releases escrowed funds: marking
// a shipped order delivered. Customer confirmation, admin override and carrier
// tracking all converge here.
package delivery

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/internal/notifications"
	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service marks orders delivered.
type Service interface {
	MarkDelivered(ctx context.Context, orderID uuid.UUID, trigger orders.Trigger) (*orders.DeliveryResult, error)
	DeliverInTx(ctx context.Context, tx *gorm.DB, order *models.Order, trigger orders.Trigger) (*orders.DeliveryResult, error)
	HandleTracking(ctx context.Context, payload []byte, signature string) TrackingOutcome
}

type ServiceParams struct {
	Orders         orders.Repository
	Tx             txRunner
	Escrow         escrow.Service
	Dispatcher     notifications.Dispatcher
	Effects        *notifications.Runner
	Metrics        *metrics.EscrowMetrics
	Logger         *logger.Logger
	TrackingSecret string
}

type service struct {
	orders         orders.Repository
	tx             txRunner
	escrow         escrow.Service
	dispatcher     notifications.Dispatcher
	effects        *notifications.Runner
	metrics        *metrics.EscrowMetrics
	logg           *logger.Logger
	trackingSecret string
	now            func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Escrow == nil:
		return nil, fmt.Errorf("escrow service required")
	case params.Dispatcher == nil:
		return nil, fmt.Errorf("notification dispatcher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	effects := params.Effects
	if effects == nil {
		effects = notifications.NewRunner(params.Logger, params.Metrics)
	}
	return &service{
		orders:         params.Orders,
		tx:             params.Tx,
		escrow:         params.Escrow,
		dispatcher:     params.Dispatcher,
		effects:        effects,
		metrics:        params.Metrics,
		logg:           params.Logger,
		trackingSecret: params.TrackingSecret,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// MarkDelivered locks the order, delivers it and notifies after commit.
// Calling it again for a delivered order succeeds without moving money.
func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID, trigger orders.Trigger) (*orders.DeliveryResult, error) {
	var result *orders.DeliveryResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).LockOrder(ctx, orderID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		result, err = s.DeliverInTx(ctx, tx, order, trigger)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !result.AlreadyDelivered {
		s.notify(ctx, result.Order)
	}
	return result, nil
}

// DeliverInTx runs on an order the caller already locked. A recorded delivery
// timestamp makes the call a no-op; otherwise the order must be SHIPPED.
func (s *service) DeliverInTx(ctx context.Context, tx *gorm.DB, order *models.Order, trigger orders.Trigger) (*orders.DeliveryResult, error) {
	if order.DeliveryConfirmedAt != nil {
		return &orders.DeliveryResult{Order: order, AlreadyDelivered: true}, nil
	}
	decision := orders.EvaluateOrderTransition(orders.TransitionRequest{
		Current: order.Status,
		Target:  enums.OrderStatusDelivered,
		Role:    enums.ActorRoleSystem,
		Now:     s.now(),
	})
	if !decision.Allowed {
		return nil, decision.Err()
	}

	repo := s.orders.WithTx(tx)
	if err := orders.SyncItems(ctx, repo, order, enums.OrderItemStatusDelivered, trigger); err != nil {
		return nil, err
	}
	now := s.now()
	if err := orders.SetOrderStatus(ctx, repo, order, enums.OrderStatusDelivered, trigger,
		map[string]any{"delivery_confirmed_at": now}); err != nil {
		return nil, err
	}
	order.DeliveryConfirmedAt = &now

	released, err := s.escrow.ReleaseToAvailable(ctx, tx, order, order.Items)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"trigger":      trigger.Source,
		"released":     released.Total.StringFixed(2),
	}), "order delivered")
	return &orders.DeliveryResult{Order: order, Released: released}, nil
}

func (s *service) notify(ctx context.Context, order *models.Order) {
	link := fmt.Sprintf("/orders/%s", order.ID)
	meta := map[string]any{"order_id": order.ID.String(), "order_number": order.OrderNumber}
	effects := []notifications.Effect{{
		Name: "notify_customer",
		Run: func(ctx context.Context) error {
			return s.dispatcher.Notify(ctx, notifications.Notification{
				RecipientID:   order.CustomerID,
				RecipientRole: enums.ActorRoleCustomer,
				Type:          enums.NotificationTypeOrderDelivered,
				Title:         "Order delivered",
				Message:       fmt.Sprintf("Order #%d was delivered. Please confirm receipt.", order.OrderNumber),
				Link:          link,
				Metadata:      meta,
			})
		},
	}}
	seen := map[uuid.UUID]bool{}
	for _, item := range orders.ActiveItems(order) {
		if seen[item.VendorID] {
			continue
		}
		seen[item.VendorID] = true
		vendorID := item.VendorID
		effects = append(effects, notifications.Effect{
			Name: "notify_vendor",
			Run: func(ctx context.Context) error {
				return s.dispatcher.Notify(ctx, notifications.Notification{
					RecipientID:   vendorID,
					RecipientRole: enums.ActorRoleVendor,
					Type:          enums.NotificationTypeOrderDelivered,
					Title:         "Funds released",
					Message:       fmt.Sprintf("Order #%d was delivered and its funds are now available.", order.OrderNumber),
					Link:          link,
					Metadata:      meta,
				})
			},
		})
	}
	_ = s.effects.Run(ctx, effects...)
}
