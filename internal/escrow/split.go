package escrow

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorhub/marketplace-backend/pkg/money"
)

// Line is the part of an order item the split math needs.
type Line struct {
	ItemID         uuid.UUID
	VendorID       uuid.UUID
	LineTotal      decimal.Decimal
	DiscountShare  decimal.Decimal
	CommissionRate decimal.Decimal
}

// Base is the amount the vendor is credited on before commission.
func (l Line) Base() decimal.Decimal {
	return l.LineTotal.Sub(l.DiscountShare)
}

// Split is the per-item outcome of commission computation.
type Split struct {
	ItemID     uuid.UUID
	VendorID   uuid.UUID
	Base       decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
}

// AllocateDiscount spreads an order-level discount across the lines it
// applies to, proportionally to line totals. When vendorID is set only that
// vendor's lines absorb the discount.
func AllocateDiscount(lines []Line, discount decimal.Decimal, vendorID *uuid.UUID) ([]decimal.Decimal, error) {
	if discount.IsNegative() {
		return nil, fmt.Errorf("discount cannot be negative")
	}
	weights := make([]decimal.Decimal, len(lines))
	eligible := decimal.Zero
	for i, line := range lines {
		if vendorID != nil && line.VendorID != *vendorID {
			weights[i] = decimal.Zero
			continue
		}
		weights[i] = line.LineTotal
		eligible = eligible.Add(line.LineTotal)
	}
	if discount.GreaterThan(eligible) {
		return nil, fmt.Errorf("discount %s exceeds eligible subtotal %s", discount.StringFixed(2), eligible.StringFixed(2))
	}
	return money.Allocate(discount, weights)
}

// ComputeSplits derives commission and net for every line. Commission is
// rounded once at order level (half away from zero) and the rounded total is
// apportioned back to lines by largest remainder, so the sum of nets plus the
// sum of commissions equals the sum of bases exactly.
func ComputeSplits(lines []Line) ([]Split, error) {
	exact := make([]decimal.Decimal, len(lines))
	for i, line := range lines {
		if line.CommissionRate.IsNegative() || line.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("commission rate %s out of range for item %s", line.CommissionRate, line.ItemID)
		}
		base := line.Base()
		if base.IsNegative() {
			return nil, fmt.Errorf("discount share exceeds line total for item %s", line.ItemID)
		}
		exact[i] = base.Mul(line.CommissionRate)
	}

	commissions := money.Apportion(exact, money.Round(money.Sum(exact...)))

	splits := make([]Split, len(lines))
	for i, line := range lines {
		base := line.Base()
		commission := commissions[i]
		splits[i] = Split{
			ItemID:     line.ItemID,
			VendorID:   line.VendorID,
			Base:       base,
			Commission: commission,
			Net:        base.Sub(commission),
		}
	}
	return splits, nil
}
