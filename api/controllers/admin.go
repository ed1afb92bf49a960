package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorhub/marketplace-backend/api/controllers/vendorcontext"
	"github.com/vendorhub/marketplace-backend/api/responses"
	"github.com/vendorhub/marketplace-backend/api/validators"
	internalorders "github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/internal/payouts"
	"github.com/vendorhub/marketplace-backend/internal/vendors"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
)

// Deliverer marks an order delivered through the shared release path.
type Deliverer interface {
	MarkDelivered(ctx context.Context, orderID uuid.UUID, trigger internalorders.Trigger) (*internalorders.DeliveryResult, error)
}

type adminStatusRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
	Note   string            `json:"note" validate:"max=500"`
}

type adminDeliverRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type payoutDecisionRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type onboardVendorRequest struct {
	UserID         uuid.UUID       `json:"user_id" validate:"required"`
	Name           string          `json:"name" validate:"required,max=200"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

type commissionRequest struct {
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

// AdminOrderStatus forces an order into any status.
func AdminOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		adminID, err := vendorcontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adminStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target := enums.OrderStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
		if !target.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status"))
			return
		}

		order, err := svc.AdminTransition(r.Context(), internalorders.AdminTransitionInput{
			OrderID: orderID,
			AdminID: adminID,
			Target:  target,
			Note:    validators.SanitizeString(req.Note, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminDeliver marks a shipped order delivered and releases its escrow.
func AdminDeliver(svc Deliverer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		adminID, err := vendorcontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adminDeliverRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.MarkDelivered(r.Context(), orderID, internalorders.Trigger{
			Source:  internalorders.TriggerAdminOverride,
			Role:    enums.ActorRoleAdmin,
			ActorID: &adminID,
			Note:    validators.SanitizeString(req.Note, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := internalorders.NewOrderView(result.Order, nil)
		responses.WriteSuccess(w, map[string]any{
			"order":             view,
			"already_delivered": result.AlreadyDelivered,
		})
	}
}

func payoutDecision(decide func(context.Context, payouts.DecisionInput) (*payouts.PayoutView, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := vendorcontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := validators.ParseURLUUID(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req payoutDecisionRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := decide(r.Context(), payouts.DecisionInput{
			PayoutID: payoutID,
			AdminID:  adminID,
			Notes:    validators.SanitizeString(req.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminApprovePayout debits the vendor's available balance.
func AdminApprovePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("payouts service unavailable", logg)
	}
	return payoutDecision(func(ctx context.Context, in payouts.DecisionInput) (*payouts.PayoutView, error) {
		payout, err := svc.Approve(ctx, in)
		if err != nil {
			return nil, err
		}
		view := payouts.NewPayoutView(payout)
		return &view, nil
	}, logg)
}

// AdminRejectPayout closes a request without moving money.
func AdminRejectPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("payouts service unavailable", logg)
	}
	return payoutDecision(func(ctx context.Context, in payouts.DecisionInput) (*payouts.PayoutView, error) {
		payout, err := svc.Reject(ctx, in)
		if err != nil {
			return nil, err
		}
		view := payouts.NewPayoutView(payout)
		return &view, nil
	}, logg)
}

// AdminOnboardVendor creates a vendor together with its zeroed wallet.
func AdminOnboardVendor(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendors service unavailable"))
			return
		}
		var req onboardVendorRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendor, err := svc.Onboard(r.Context(), vendors.OnboardInput{
			UserID:         req.UserID,
			Name:           strings.TrimSpace(req.Name),
			CommissionRate: req.CommissionRate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, vendor)
	}
}

func AdminGetVendor(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendors service unavailable"))
			return
		}
		vendorID, err := validators.ParseURLUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendor, err := svc.Get(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vendor)
	}
}

// AdminVendorCommission changes the rate applied to future credits.
func AdminVendorCommission(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendors service unavailable"))
			return
		}
		vendorID, err := validators.ParseURLUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req commissionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendor, err := svc.UpdateCommissionRate(r.Context(), vendorID, req.CommissionRate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vendor)
	}
}

// AdminWalletAudit replays a vendor's ledger against the stored balances.
func AdminWalletAudit(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendors service unavailable"))
			return
		}
		vendorID, err := validators.ParseURLUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		audit, err := svc.Audit(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !audit.Consistent && logg != nil {
			logg.Warn(logg.WithVendorID(r.Context(), vendorID.String()), "wallet audit found drift")
		}
		responses.WriteSuccess(w, audit)
	}
}

func unavailable(msg string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, msg))
	}
}
