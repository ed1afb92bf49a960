package escrow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/money"
)

// Service performs the four fund operations. Every method runs on the
// caller's transaction and either updates every affected wallet or returns
// an error that must abort that transaction.
type Service interface {
	CreditPending(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) (*Movement, error)
	ReleaseToAvailable(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) (*Movement, error)
	Reverse(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem, requested *decimal.Decimal) (*Movement, error)
	DebitPayout(ctx context.Context, tx *gorm.DB, payout *models.Payout) error
}

// Movement summarizes the money a fund operation moved per vendor.
type Movement struct {
	PerVendor  map[uuid.UUID]decimal.Decimal
	Total      decimal.Decimal
	Commission decimal.Decimal
}

func newMovement() *Movement {
	return &Movement{PerVendor: map[uuid.UUID]decimal.Decimal{}, Total: decimal.Zero, Commission: decimal.Zero}
}

func (m *Movement) add(vendorID uuid.UUID, amount decimal.Decimal) {
	m.PerVendor[vendorID] = m.PerVendor[vendorID].Add(amount)
	m.Total = m.Total.Add(amount)
}

type service struct {
	repo   Repository
	ledger ledger.Service
	now    func() time.Time
}

func NewService(repo Repository, ledgerSvc ledger.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{repo: repo, ledger: ledgerSvc, now: func() time.Time { return time.Now().UTC() }}, nil
}

func invariant(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.CodeInvariant, fmt.Sprintf(format, args...))
}

func orderRefs(order *models.Order) (*uuid.UUID, *int64) {
	id := order.ID
	number := order.OrderNumber
	return &id, &number
}

// CreditPending credits every item's base to its vendor's pending balance and
// deducts the platform commission as a second ledger row.
func (s *service) CreditPending(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) (*Movement, error) {
	if len(items) == 0 {
		return nil, invariant("order %d has no items to credit", order.OrderNumber)
	}
	repo := s.repo.WithTx(tx)

	vendorIDs := distinctVendors(items)
	rates, err := repo.CommissionRates(ctx, vendorIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission rates")
	}

	lines := make([]Line, len(items))
	for i, item := range items {
		if item.CreditedAt != nil {
			return nil, invariant("item %s of order %d was already credited", item.ID, order.OrderNumber)
		}
		rate, ok := rates[item.VendorID]
		if !ok {
			return nil, invariant("vendor %s of order %d has no commission rate", item.VendorID, order.OrderNumber)
		}
		lines[i] = Line{
			ItemID:         item.ID,
			VendorID:       item.VendorID,
			LineTotal:      item.LineTotal,
			DiscountShare:  item.DiscountShare,
			CommissionRate: rate,
		}
	}

	splits, err := ComputeSplits(lines)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvariant, err, "compute commission splits")
	}

	orderID, orderNumber := orderRefs(order)
	now := s.now()
	movement := newMovement()
	for _, i := range walletLockOrder(items) {
		item := &items[i]
		split := splits[i]
		meta := map[string]any{
			"order_item_id":   item.ID.String(),
			"order_number":    order.OrderNumber,
			"commission_rate": lines[i].CommissionRate.String(),
		}
		if split.Base.IsPositive() {
			if _, err := s.ledger.Apply(ctx, tx, ledger.Mutation{
				VendorID:    item.VendorID,
				Type:        enums.WalletTxCreditPending,
				Column:      enums.BalanceColumnPending,
				Amount:      split.Base,
				Earnings:    split.Net,
				OrderID:     orderID,
				OrderNumber: orderNumber,
				Metadata:    meta,
			}); err != nil {
				return nil, err
			}
		}
		if split.Commission.IsPositive() {
			if _, err := s.ledger.Apply(ctx, tx, ledger.Mutation{
				VendorID:    item.VendorID,
				Type:        enums.WalletTxCommissionDeduction,
				Column:      enums.BalanceColumnPending,
				Amount:      split.Commission.Neg(),
				OrderID:     orderID,
				OrderNumber: orderNumber,
				Metadata:    meta,
			}); err != nil {
				return nil, err
			}
		}

		item.CommissionRate = lines[i].CommissionRate
		item.Commission = split.Commission
		item.NetAmount = split.Net
		item.CreditedAt = &now
		if err := repo.SaveItemEscrow(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item escrow")
		}
		movement.add(item.VendorID, split.Net)
		movement.Commission = movement.Commission.Add(split.Commission)
	}
	return movement, nil
}

// ReleaseToAvailable moves each vendor's unreversed net from pending to
// available. An item released twice, or never credited, aborts the release.
func (s *service) ReleaseToAvailable(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) (*Movement, error) {
	if len(items) == 0 {
		return nil, invariant("order %d has no items to release", order.OrderNumber)
	}
	repo := s.repo.WithTx(tx)

	perVendor := map[uuid.UUID]decimal.Decimal{}
	for _, item := range items {
		if item.CreditedAt == nil {
			return nil, invariant("item %s of order %d was never credited", item.ID, order.OrderNumber)
		}
		if item.ReleasedAt != nil {
			return nil, invariant("item %s of order %d was already released", item.ID, order.OrderNumber)
		}
		perVendor[item.VendorID] = perVendor[item.VendorID].Add(item.RemainingNet())
	}

	orderID, orderNumber := orderRefs(order)
	movement := newMovement()
	for _, vendorID := range sortedVendors(perVendor) {
		amount := perVendor[vendorID]
		if !amount.IsPositive() {
			continue
		}
		meta := map[string]any{"order_number": order.OrderNumber}
		if _, err := s.ledger.Apply(ctx, tx, ledger.Mutation{
			VendorID:    vendorID,
			Type:        enums.WalletTxReleaseAvailable,
			Column:      enums.BalanceColumnPending,
			Amount:      amount.Neg(),
			OrderID:     orderID,
			OrderNumber: orderNumber,
			Metadata:    meta,
		}); err != nil {
			return nil, err
		}
		if _, err := s.ledger.Apply(ctx, tx, ledger.Mutation{
			VendorID:    vendorID,
			Type:        enums.WalletTxReleaseAvailable,
			Column:      enums.BalanceColumnAvailable,
			Amount:      amount,
			OrderID:     orderID,
			OrderNumber: orderNumber,
			Metadata:    meta,
		}); err != nil {
			return nil, err
		}
		movement.add(vendorID, amount)
	}

	now := s.now()
	for i := range items {
		items[i].ReleasedAt = &now
		if err := repo.SaveItemEscrow(ctx, &items[i]); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item escrow")
		}
	}
	return movement, nil
}

type reversalKey struct {
	vendorID uuid.UUID
	column   enums.BalanceColumn
}

// Reverse takes back credited net from vendors. A nil requested amount
// reverses everything still outstanding; otherwise the amount is capped at
// the outstanding net and allocated across items by their outstanding net.
// Funds come from pending when the item was never released and from
// available otherwise. Lifetime earnings are left untouched.
func (s *service) Reverse(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem, requested *decimal.Decimal) (*Movement, error) {
	if requested != nil && requested.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
	}
	repo := s.repo.WithTx(tx)

	eligible := make([]int, 0, len(items))
	weights := make([]decimal.Decimal, 0, len(items))
	outstanding := decimal.Zero
	for i, item := range items {
		if item.CreditedAt == nil {
			continue
		}
		remaining := item.RemainingNet()
		if !remaining.IsPositive() {
			continue
		}
		eligible = append(eligible, i)
		weights = append(weights, remaining)
		outstanding = outstanding.Add(remaining)
	}

	movement := newMovement()
	target := outstanding
	if requested != nil {
		target = money.Min(money.Round(*requested), outstanding)
	}
	if !target.IsPositive() {
		return movement, nil
	}

	shares, err := money.Allocate(target, weights)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvariant, err, "allocate reversal")
	}

	grouped := map[reversalKey]decimal.Decimal{}
	for n, idx := range eligible {
		item := &items[idx]
		column := enums.BalanceColumnPending
		if item.ReleasedAt != nil {
			column = enums.BalanceColumnAvailable
		}
		key := reversalKey{vendorID: item.VendorID, column: column}
		grouped[key] = grouped[key].Add(shares[n])
		item.RefundedAmount = item.RefundedAmount.Add(shares[n])
	}

	keys := make([]reversalKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].vendorID != keys[b].vendorID {
			return keys[a].vendorID.String() < keys[b].vendorID.String()
		}
		return keys[a].column < keys[b].column
	})

	orderID, orderNumber := orderRefs(order)
	for _, key := range keys {
		amount := grouped[key]
		if !amount.IsPositive() {
			continue
		}
		if _, err := s.ledger.Apply(ctx, tx, ledger.Mutation{
			VendorID:    key.vendorID,
			Type:        enums.WalletTxRefundReversal,
			Column:      key.column,
			Amount:      amount.Neg(),
			OrderID:     orderID,
			OrderNumber: orderNumber,
			Metadata:    map[string]any{"order_number": order.OrderNumber},
		}); err != nil {
			return nil, err
		}
		movement.add(key.vendorID, amount)
	}

	for _, idx := range eligible {
		if err := repo.SaveItemEscrow(ctx, &items[idx]); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item escrow")
		}
	}
	return movement, nil
}

// DebitPayout withdraws an approved payout from the available balance.
func (s *service) DebitPayout(ctx context.Context, tx *gorm.DB, payout *models.Payout) error {
	if payout == nil || !payout.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	payoutID := payout.ID
	_, err := s.ledger.Apply(ctx, tx, ledger.Mutation{
		VendorID:  payout.VendorID,
		Type:      enums.WalletTxPayoutDebit,
		Column:    enums.BalanceColumnAvailable,
		Amount:    payout.Amount.Neg(),
		Withdrawn: payout.Amount,
		PayoutID:  &payoutID,
		Metadata:  map[string]any{"payout_id": payout.ID.String()},
	})
	return err
}

func distinctVendors(items []models.OrderItem) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if !seen[item.VendorID] {
			seen[item.VendorID] = true
			out = append(out, item.VendorID)
		}
	}
	return out
}

// walletLockOrder returns item indexes grouped by vendor in ascending vendor
// id order, keeping item order within a vendor. Every fund movement locks
// wallets in this order.
func walletLockOrder(items []models.OrderItem) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].VendorID.String() < items[idx[b]].VendorID.String()
	})
	return idx
}

func sortedVendors(m map[uuid.UUID]decimal.Decimal) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}
