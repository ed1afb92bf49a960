// Package bootstrap wires repositories and services shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/vendorhub/marketplace-backend/internal/coupons"
	"github.com/vendorhub/marketplace-backend/internal/delivery"
	"github.com/vendorhub/marketplace-backend/internal/disputes"
	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/internal/gateway"
	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/internal/notifications"
	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/internal/payments"
	"github.com/vendorhub/marketplace-backend/internal/payouts"
	"github.com/vendorhub/marketplace-backend/internal/vendors"
	"github.com/vendorhub/marketplace-backend/pkg/config"
	"github.com/vendorhub/marketplace-backend/pkg/db"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/metrics"
	"github.com/vendorhub/marketplace-backend/pkg/pubsub"
)

// Services is the fully wired domain layer.
type Services struct {
	Escrow   escrow.Service
	Ledger   ledger.Service
	Orders   orders.Service
	Disputes disputes.Service
	Delivery delivery.Service
	Payments payments.Processor
	Payouts  payouts.Service
	Vendors  vendors.Service
	Metrics  *metrics.EscrowMetrics

	closers []func() error
}

// Close releases the clients opened while wiring.
func (s *Services) Close() error {
	var err error
	for _, closeFn := range s.closers {
		err = multierr.Append(err, closeFn())
	}
	return err
}

// Build constructs every service on top of the database client.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*Services, error) {
	conn := dbClient.DB()
	escrowMetrics := metrics.NewEscrowMetrics(reg)
	out := &Services{Metrics: escrowMetrics}

	dispatcher, closeDispatcher, err := newDispatcher(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	if closeDispatcher != nil {
		out.closers = append(out.closers, closeDispatcher)
	}
	effects := notifications.NewRunner(logg, escrowMetrics)

	ledgerRepo := ledger.NewRepository(conn)
	if out.Ledger, err = ledger.NewService(ledgerRepo, escrowMetrics); err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	if out.Escrow, err = escrow.NewService(escrow.NewRepository(conn), out.Ledger); err != nil {
		return nil, fmt.Errorf("escrow service: %w", err)
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("coupon service: %w", err)
	}
	refunds := gateway.NewRefunder(cfg.Gateway, cfg.Webhook.PaymentServerKey, logg)
	ordersRepo := orders.NewRepository(conn)

	if out.Delivery, err = delivery.NewService(delivery.ServiceParams{
		Orders:         ordersRepo,
		Tx:             dbClient,
		Escrow:         out.Escrow,
		Dispatcher:     dispatcher,
		Effects:        effects,
		Metrics:        escrowMetrics,
		Logger:         logg,
		TrackingSecret: cfg.Webhook.TrackingSecret,
	}); err != nil {
		return nil, fmt.Errorf("delivery service: %w", err)
	}

	if out.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:       ordersRepo,
		Tx:         dbClient,
		Escrow:     out.Escrow,
		Coupons:    couponSvc,
		Delivery:   out.Delivery,
		Refunds:    refunds,
		Dispatcher: dispatcher,
		Effects:    effects,
		Logger:     logg,
		Windows: orders.Windows{
			Cancellation: cfg.Escrow.CancellationWindow,
			Return:       cfg.Escrow.ReturnWindow,
		},
	}); err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	if out.Disputes, err = disputes.NewService(disputes.ServiceParams{
		Repo:       disputes.NewRepository(conn),
		Orders:     ordersRepo,
		Tx:         dbClient,
		Escrow:     out.Escrow,
		Refunds:    refunds,
		Dispatcher: dispatcher,
		Effects:    effects,
		Logger:     logg,
	}); err != nil {
		return nil, fmt.Errorf("disputes service: %w", err)
	}

	if out.Payments, err = payments.NewProcessor(payments.ProcessorParams{
		Payments:   payments.NewRepository(conn),
		Orders:     ordersRepo,
		Tx:         dbClient,
		Escrow:     out.Escrow,
		Coupons:    couponSvc,
		Dispatcher: dispatcher,
		Effects:    effects,
		Metrics:    escrowMetrics,
		Logger:     logg,
		ServerKey:  cfg.Webhook.PaymentServerKey,
	}); err != nil {
		return nil, fmt.Errorf("payment processor: %w", err)
	}

	if out.Payouts, err = payouts.NewService(payouts.ServiceParams{
		Repo:       payouts.NewRepository(conn),
		Wallets:    ledgerRepo,
		Tx:         dbClient,
		Escrow:     out.Escrow,
		Dispatcher: dispatcher,
		Effects:    effects,
		Logger:     logg,
		Minimum:    cfg.Escrow.MinimumPayout(),
	}); err != nil {
		return nil, fmt.Errorf("payouts service: %w", err)
	}

	if out.Vendors, err = vendors.NewService(vendors.NewRepository(conn), out.Ledger, dbClient); err != nil {
		return nil, fmt.Errorf("vendors service: %w", err)
	}

	return out, nil
}

// newDispatcher publishes to Pub/Sub when a GCP project is configured and
// falls back to structured logs otherwise.
func newDispatcher(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notifications.Dispatcher, func() error, error) {
	if strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		logg.Warn(ctx, "gcp project not configured; notifications are logged only")
		return notifications.NewLogDispatcher(logg), nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	dispatcher, err := notifications.NewPubSubDispatcher(client.NotificationPublisher(), client.ChatRoomPublisher(), logg)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("pubsub dispatcher: %w", err)
	}
	return dispatcher, client.Close, nil
}
