package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/coupons"
	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/money"
)

// PlaceOrder freezes priced cart lines into a new PENDING_PAYMENT order.
// Prices and product snapshots come from the catalog; only the vendors are
// checked here. The coupon, if any, is redeemed in the same transaction.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderView, error) {
	if err := validatePlacement(input); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, len(input.Lines))
	lines := make([]escrow.Line, len(input.Lines))
	vendorSubtotals := map[uuid.UUID]decimal.Decimal{}
	vendorIDs := []uuid.UUID{}
	for i, line := range input.Lines {
		lineTotal := money.Round(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		snapshot := line.Snapshot
		if snapshot.Price.IsZero() {
			snapshot.Price = line.UnitPrice
		}
		items[i] = models.OrderItem{
			VendorID:        line.VendorID,
			ProductID:       line.ProductID,
			VariantID:       line.VariantID,
			Quantity:        line.Quantity,
			UnitPrice:       money.Round(line.UnitPrice),
			LineTotal:       lineTotal,
			ProductSnapshot: snapshot,
			Status:          enums.OrderItemStatusPendingPayment,
		}
		lines[i] = escrow.Line{VendorID: line.VendorID, LineTotal: lineTotal}
		if _, seen := vendorSubtotals[line.VendorID]; !seen {
			vendorIDs = append(vendorIDs, line.VendorID)
		}
		vendorSubtotals[line.VendorID] = vendorSubtotals[line.VendorID].Add(lineTotal)
	}
	subtotal := money.Sum(vendorSubtotalsValues(vendorSubtotals, vendorIDs)...)
	shipping := money.Round(input.Shipping)

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountVendors(ctx, vendorIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check vendors")
		}
		if int(count) != len(vendorIDs) {
			return pkgerrors.New(pkgerrors.CodeValidation, "order references an unknown vendor")
		}

		discount := decimal.Zero
		var quote *coupons.Quote
		if strings.TrimSpace(input.CouponCode) != "" {
			quote, err = s.coupons.Quote(ctx, tx, coupons.QuoteInput{
				Code:            input.CouponCode,
				CustomerID:      input.CustomerID,
				VendorSubtotals: vendorSubtotals,
			})
			if err != nil {
				return err
			}
			discount = quote.Discount
			shares, err := escrow.AllocateDiscount(lines, discount, quote.VendorID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "apply coupon")
			}
			for i := range items {
				items[i].DiscountShare = shares[i]
			}
		}

		total := subtotal.Sub(discount).Add(shipping)
		if total.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInvariant, fmt.Sprintf("order total %s is negative", total.StringFixed(2)))
		}
		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order = &models.Order{
			OrderNumber:     number,
			CustomerID:      input.CustomerID,
			Subtotal:        subtotal,
			Discount:        discount,
			Shipping:        shipping,
			Total:           total,
			Status:          enums.OrderStatusPendingPayment,
			PaymentStatus:   enums.PaymentStatusPending,
			ShippingAddress: input.ShippingAddress,
			Items:           items,
		}
		if quote != nil {
			couponID := quote.Coupon.ID
			code := quote.Coupon.Code
			order.CouponID = &couponID
			order.CouponCode = &code
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.coupons.Redeem(ctx, tx, quote, input.CustomerID, order.ID); err != nil {
			return err
		}
		trigger := actorTrigger(TriggerCustomerRequest, enums.ActorRoleCustomer, input.CustomerID, "")
		return repo.AppendHistory(ctx, trigger.history(order, nil, "", enums.OrderStatusPendingPayment.String()))
	})
	if err != nil {
		return nil, err
	}
	view := NewOrderView(order, nil)
	return &view, nil
}

func vendorSubtotalsValues(m map[uuid.UUID]decimal.Decimal, order []uuid.UUID) []decimal.Decimal {
	out := make([]decimal.Decimal, len(order))
	for i, id := range order {
		out[i] = m[id]
	}
	return out
}

func validatePlacement(input PlaceOrderInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one line")
	}
	details := map[string]string{}
	for i, line := range input.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		switch {
		case line.VendorID == uuid.Nil:
			details[field] = "vendor_id required"
		case line.ProductID == uuid.Nil:
			details[field] = "product_id required"
		case line.Quantity <= 0:
			details[field] = "quantity must be positive"
		case !line.UnitPrice.IsPositive():
			details[field] = "unit_price must be positive"
		case strings.TrimSpace(line.Snapshot.ProductName) == "":
			details[field] = "product snapshot name required"
		}
	}
	if input.Shipping.IsNegative() {
		details["shipping"] = "shipping cannot be negative"
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		details["shipping_address"] = err.Error()
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order").WithDetails(details)
	}
	return nil
}
