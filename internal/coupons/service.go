package coupons

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/money"
)

// Service validates coupons at order placement and keeps the usage ledger.
type Service interface {
	Quote(ctx context.Context, tx *gorm.DB, input QuoteInput) (*Quote, error)
	Redeem(ctx context.Context, tx *gorm.DB, quote *Quote, customerID, orderID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// QuoteInput carries the cart being priced.
type QuoteInput struct {
	Code       string
	CustomerID uuid.UUID
	// VendorSubtotals is the sum of line totals per vendor.
	VendorSubtotals map[uuid.UUID]decimal.Decimal
}

// Quote is a validated coupon and the discount it grants.
type Quote struct {
	Coupon   *models.Coupon
	Discount decimal.Decimal
	// VendorID is set for vendor-scoped coupons; only that vendor's lines share the discount.
	VendorID *uuid.UUID
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func rejected(reason, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"coupon": reason})
}

func (s *service) Quote(ctx context.Context, tx *gorm.DB, input QuoteInput) (*Quote, error) {
	if NormalizeCode(input.Code) == "" {
		return nil, rejected("invalid", "coupon code is required")
	}
	repo := s.repo.WithTx(tx)

	coupon, err := repo.LockByCode(ctx, input.Code)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rejected("not_found", "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	now := s.now()
	if !coupon.Active {
		return nil, rejected("inactive", "coupon is not active")
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return nil, rejected("not_started", "coupon is not valid yet")
	}
	if coupon.EndsAt != nil && !now.Before(*coupon.EndsAt) {
		return nil, rejected("expired", "coupon has expired")
	}

	eligible := decimal.Zero
	if coupon.VendorID != nil {
		eligible = input.VendorSubtotals[*coupon.VendorID]
		if !eligible.IsPositive() {
			return nil, rejected("vendor_mismatch", "coupon does not apply to any item in this order")
		}
	} else {
		for _, subtotal := range input.VendorSubtotals {
			eligible = eligible.Add(subtotal)
		}
	}
	if eligible.LessThan(coupon.MinPurchase) {
		return nil, rejected("min_purchase", fmt.Sprintf("minimum purchase of %s not reached", coupon.MinPurchase.StringFixed(2)))
	}

	if coupon.UsageLimit != nil {
		used, err := repo.CountUsages(ctx, coupon.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usage")
		}
		if used >= int64(*coupon.UsageLimit) {
			return nil, rejected("usage_limit", "coupon usage limit reached")
		}
	}
	if coupon.PerCustomerLimit != nil {
		used, err := repo.CountCustomerUsages(ctx, coupon.ID, input.CustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count customer coupon usage")
		}
		if used >= int64(*coupon.PerCustomerLimit) {
			return nil, rejected("customer_limit", "coupon already used the maximum number of times")
		}
	}

	return &Quote{
		Coupon:   coupon,
		Discount: ComputeDiscount(*coupon, eligible),
		VendorID: coupon.VendorID,
	}, nil
}

// ComputeDiscount applies the coupon to the eligible amount. The result is
// rounded to cents, capped by MaxDiscount and never exceeds the eligible amount.
func ComputeDiscount(coupon models.Coupon, eligible decimal.Decimal) decimal.Decimal {
	if !eligible.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount = money.Round(eligible.Mul(coupon.Value).Div(decimal.NewFromInt(100)))
	default:
		discount = money.Round(coupon.Value)
	}
	if coupon.MaxDiscount != nil {
		discount = money.Min(discount, *coupon.MaxDiscount)
	}
	discount = money.Min(discount, eligible)
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, quote *Quote, customerID, orderID uuid.UUID) error {
	if quote == nil || quote.Coupon == nil {
		return nil
	}
	usage := &models.CouponUsage{
		CouponID:   quote.Coupon.ID,
		CustomerID: customerID,
		OrderID:    orderID,
		Discount:   quote.Discount,
	}
	if err := s.repo.WithTx(tx).CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
	}
	return nil
}

// Release frees the usage recorded for an order so the coupon can be used again.
func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if _, err := s.repo.WithTx(tx).DeleteUsageByOrder(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release coupon usage")
	}
	return nil
}
