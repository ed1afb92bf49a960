package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/vendorhub/marketplace-backend/api/controllers"
	ordercontrollers "github.com/vendorhub/marketplace-backend/api/controllers/orders"
	webhookcontrollers "github.com/vendorhub/marketplace-backend/api/controllers/webhooks"
	"github.com/vendorhub/marketplace-backend/api/middleware"
	"github.com/vendorhub/marketplace-backend/internal/delivery"
	"github.com/vendorhub/marketplace-backend/internal/disputes"
	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/internal/payments"
	"github.com/vendorhub/marketplace-backend/internal/payouts"
	"github.com/vendorhub/marketplace-backend/internal/vendors"
	"github.com/vendorhub/marketplace-backend/pkg/config"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	pkgredis "github.com/vendorhub/marketplace-backend/pkg/redis"
)

// Cache is the Redis surface the HTTP layer needs.
type Cache interface {
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
	controllers.Pinger
}

// Services bundles everything the router wires into handlers.
type Services struct {
	DB       controllers.Pinger
	Cache    Cache
	Gatherer prometheus.Gatherer
	Orders   orders.Service
	Disputes disputes.Service
	Delivery delivery.Service
	Payments payments.Processor
	Ledger   ledger.Service
	Payouts  payouts.Service
	Vendors  vendors.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App),
	)

	adminLimit := middleware.RateLimitPolicy{
		Name:  "admin",
		Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
		Burst: cfg.RateLimit.AdminBurst,
	}
	perMinute := int64(cfg.RateLimit.RequestsPerSecond * 60)
	if min := int64(cfg.RateLimit.Burst); perMinute < min {
		perMinute = min
	}

	cache := svc.Cache

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, svc.DB, cache, logg))
	})
	if svc.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{}))
	}

	// Gateways and carriers retry until they see a 200, so webhooks are never
	// throttled.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(svc.Payments, logg))
		r.Post("/tracking", webhookcontrollers.TrackingWebhook(svc.Delivery, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.SharedRateLimit("api", perMinute, time.Minute, cache, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleCustomer))
				r.Post("/orders", ordercontrollers.Place(svc.Orders, logg))
				r.Get("/orders", ordercontrollers.List(svc.Orders, logg))
				r.Post("/orders/{orderId}/cancel", ordercontrollers.Cancel(svc.Orders, logg))
				r.Post("/orders/{orderId}/confirm-delivery", ordercontrollers.ConfirmDelivery(svc.Orders, logg))
				r.Post("/orders/{orderId}/return", ordercontrollers.RequestReturn(svc.Orders, logg))
				r.Post("/orders/{orderId}/disputes", ordercontrollers.OpenDispute(svc.Disputes, logg))
				r.Get("/disputes", ordercontrollers.ListDisputes(svc.Disputes, logg))
				r.Get("/disputes/{disputeId}", ordercontrollers.DisputeDetail(svc.Disputes, logg))
				r.Post("/disputes/{disputeId}/comments", ordercontrollers.Comment(svc.Disputes, logg))
			})

			r.With(middleware.RequireRole(logg, enums.ActorRoleCustomer, enums.ActorRoleVendor)).
				Get("/orders/{orderId}", ordercontrollers.Detail(svc.Orders, logg))

			r.Route("/vendor", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleVendor))
				r.Post("/items/{itemId}/status", controllers.VendorItemStatus(svc.Orders, logg))
				r.Get("/wallet", controllers.VendorWallet(svc.Ledger, logg))
				r.Get("/wallet/transactions", controllers.VendorTransactions(svc.Ledger, logg))
				r.Post("/payouts", controllers.VendorRequestPayout(svc.Payouts, logg))
				r.Get("/payouts", controllers.VendorPayouts(svc.Payouts, logg))
			})
		})

		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
			r.Use(middleware.RateLimit(adminLimit, logg))

			r.Get("/orders/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
			r.Post("/orders/{orderId}/status", controllers.AdminOrderStatus(svc.Orders, logg))
			r.Post("/orders/{orderId}/cancel", ordercontrollers.Cancel(svc.Orders, logg))
			r.Post("/orders/{orderId}/deliver", controllers.AdminDeliver(svc.Delivery, logg))

			r.Get("/disputes", ordercontrollers.ListDisputes(svc.Disputes, logg))
			r.Get("/disputes/{disputeId}", ordercontrollers.DisputeDetail(svc.Disputes, logg))
			r.Post("/disputes/{disputeId}/comments", ordercontrollers.Comment(svc.Disputes, logg))
			r.Post("/disputes/{disputeId}/resolve", ordercontrollers.Resolve(svc.Disputes, logg))

			r.Post("/payouts/{payoutId}/approve", controllers.AdminApprovePayout(svc.Payouts, logg))
			r.Post("/payouts/{payoutId}/reject", controllers.AdminRejectPayout(svc.Payouts, logg))

			r.Post("/vendors", controllers.AdminOnboardVendor(svc.Vendors, logg))
			r.Get("/vendors/{vendorId}", controllers.AdminGetVendor(svc.Vendors, logg))
			r.Post("/vendors/{vendorId}/commission", controllers.AdminVendorCommission(svc.Vendors, logg))
			r.Get("/wallets/{vendorId}/audit", controllers.AdminWalletAudit(svc.Vendors, logg))
		})
	})

	return r
}
