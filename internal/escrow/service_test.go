package escrow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/internal/testdb"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

type fixture struct {
	db     *gorm.DB
	ledger ledger.Service
	escrow Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := testdb.Open(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), nil)
	require.NoError(t, err)
	escrowSvc, err := NewService(NewRepository(conn), ledgerSvc)
	require.NoError(t, err)
	return fixture{db: conn, ledger: ledgerSvc, escrow: escrowSvc}
}

func (f fixture) tx(t *testing.T, fn func(tx *gorm.DB) error) error {
	t.Helper()
	return f.db.Transaction(fn)
}

func TestNewServiceValidatesDeps(t *testing.T) {
	_, err := NewService(nil, nil)
	require.Error(t, err)
	_, err = NewService(NewRepository(nil), nil)
	require.Error(t, err)
}

func TestCreditPendingSingleVendor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}}})
	assert.True(t, order.Total.Equal(dec("1000")))

	items := testdb.Items(t, f.db, order.ID)
	var movement *Movement
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		var err error
		movement, err = f.escrow.CreditPending(ctx, tx, &order, items)
		return err
	}))

	assert.True(t, movement.Total.Equal(dec("900")))
	assert.True(t, movement.Commission.Equal(dec("100")))

	wallet := testdb.Wallet(t, f.db, vendor.ID)
	assert.True(t, wallet.PendingBalance.Equal(dec("900")), "pending %s", wallet.PendingBalance)
	assert.True(t, wallet.TotalEarnings.Equal(dec("900")))
	assert.True(t, wallet.AvailableBalance.IsZero())

	assert.EqualValues(t, 1, testdb.CountTransactions(t, f.db, vendor.ID, enums.WalletTxCreditPending))
	assert.EqualValues(t, 1, testdb.CountTransactions(t, f.db, vendor.ID, enums.WalletTxCommissionDeduction))

	stored := testdb.Items(t, f.db, order.ID)
	require.NotNil(t, stored[0].CreditedAt)
	assert.True(t, stored[0].NetAmount.Equal(dec("900")))
	assert.True(t, stored[0].Commission.Equal(dec("100")))
}

func TestCreditPendingMultiVendor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendorA := testdb.Vendor(t, f.db, "0.10")
	vendorB := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{
		{VendorID: vendorA.ID, LineTotal: "600"},
		{VendorID: vendorB.ID, LineTotal: "400"},
	}})

	items := testdb.Items(t, f.db, order.ID)
	var movement *Movement
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		var err error
		movement, err = f.escrow.CreditPending(ctx, tx, &order, items)
		return err
	}))

	assert.True(t, testdb.Wallet(t, f.db, vendorA.ID).PendingBalance.Equal(dec("540")))
	assert.True(t, testdb.Wallet(t, f.db, vendorB.ID).PendingBalance.Equal(dec("360")))
	assert.True(t, movement.Commission.Equal(dec("100")))
	assert.True(t, movement.Total.Add(movement.Commission).Equal(order.Subtotal.Sub(order.Discount)))
}

func TestWalletLockOrderGroupsByVendor(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	high := uuid.MustParse("ffffffff-0000-0000-0000-00000000000b")
	items := []models.OrderItem{{VendorID: high}, {VendorID: low}, {VendorID: high}, {VendorID: low}}

	assert.Equal(t, []int{1, 3, 0, 2}, walletLockOrder(items))
}

func TestCreditPendingLocksWalletsInVendorOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendorA := testdb.Vendor(t, f.db, "0.10")
	vendorB := testdb.Vendor(t, f.db, "0.10")
	first, second := vendorA, vendorB
	if second.ID.String() < first.ID.String() {
		first, second = second, first
	}
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{
		{VendorID: second.ID, LineTotal: "400"},
		{VendorID: first.ID, LineTotal: "600"},
	}})

	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.CreditPending(ctx, tx, &order, testdb.Items(t, tx, order.ID))
		return err
	}))

	var vendors []string
	require.NoError(t, f.db.Table("wallet_transactions AS t").
		Joins("JOIN wallets AS w ON w.id = t.wallet_id").
		Order("t.rowid").
		Pluck("w.vendor_id", &vendors).Error)
	require.Len(t, vendors, 4)
	assert.Equal(t, []string{first.ID.String(), first.ID.String(), second.ID.String(), second.ID.String()}, vendors)
	assert.True(t, testdb.Wallet(t, f.db, first.ID).PendingBalance.Equal(dec("540")))
	assert.True(t, testdb.Wallet(t, f.db, second.ID).PendingBalance.Equal(dec("360")))
}

func TestCreditPendingIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendorA := testdb.Vendor(t, f.db, "0.10")
	vendorB := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{
		{VendorID: vendorA.ID, LineTotal: "600"},
		{VendorID: vendorB.ID, LineTotal: "400"},
	}})
	// Vendor B loses its wallet: the whole credit must roll back.
	require.NoError(t, f.db.Where("vendor_id = ?", vendorB.ID).Delete(&models.Wallet{}).Error)

	items := testdb.Items(t, f.db, order.ID)
	err := f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.CreditPending(ctx, tx, &order, items)
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvariant))
	assert.True(t, testdb.Wallet(t, f.db, vendorA.ID).PendingBalance.IsZero())
	assert.EqualValues(t, 0, testdb.CountTransactions(t, f.db, vendorA.ID, enums.WalletTxCreditPending))
}

func TestCreditPendingTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "100"}}})

	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.CreditPending(ctx, tx, &order, testdb.Items(t, tx, order.ID))
		return err
	}))
	err := f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.CreditPending(ctx, tx, &order, testdb.Items(t, tx, order.ID))
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvariant))
	assert.True(t, testdb.Wallet(t, f.db, vendor.ID).PendingBalance.Equal(dec("90")))
}

func creditOrder(t *testing.T, f fixture, order *models.Order) {
	t.Helper()
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.CreditPending(context.Background(), tx, order, testdb.Items(t, tx, order.ID))
		return err
	}))
}

func TestReleaseMovesNetAndFailsClosedOnSecondRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}}})
	creditOrder(t, f, &order)

	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.ReleaseToAvailable(ctx, tx, &order, testdb.Items(t, tx, order.ID))
		return err
	}))
	wallet := testdb.Wallet(t, f.db, vendor.ID)
	assert.True(t, wallet.PendingBalance.IsZero())
	assert.True(t, wallet.AvailableBalance.Equal(dec("900")))

	err := f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.ReleaseToAvailable(ctx, tx, &order, testdb.Items(t, tx, order.ID))
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvariant))
	assert.True(t, testdb.Wallet(t, f.db, vendor.ID).AvailableBalance.Equal(dec("900")))
}

func TestReleaseFailsWhenPendingWouldGoNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}}})
	creditOrder(t, f, &order)
	require.NoError(t, f.db.Model(&models.Wallet{}).Where("vendor_id = ?", vendor.ID).Update("pending_balance", dec("10")).Error)

	err := f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.ReleaseToAvailable(ctx, tx, &order, testdb.Items(t, tx, order.ID))
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvariant))
	assert.Nil(t, testdb.Items(t, f.db, order.ID)[0].ReleasedAt)
}

func TestReverseFullFromPendingKeepsEarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}}})
	creditOrder(t, f, &order)

	var movement *Movement
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		var err error
		movement, err = f.escrow.Reverse(ctx, tx, &order, testdb.Items(t, tx, order.ID), nil)
		return err
	}))
	assert.True(t, movement.Total.Equal(dec("900")))

	wallet := testdb.Wallet(t, f.db, vendor.ID)
	assert.True(t, wallet.PendingBalance.IsZero())
	assert.True(t, wallet.TotalEarnings.Equal(dec("900")), "earnings never decrease")

	// Nothing left to reverse.
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		var err error
		movement, err = f.escrow.Reverse(ctx, tx, &order, testdb.Items(t, tx, order.ID), nil)
		return err
	}))
	assert.True(t, movement.Total.IsZero())
	assert.EqualValues(t, 1, testdb.CountTransactions(t, f.db, vendor.ID, enums.WalletTxRefundReversal))
}

func TestReversePartialFromAvailableAcrossVendors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendorA := testdb.Vendor(t, f.db, "0.10")
	vendorB := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{
		{VendorID: vendorA.ID, LineTotal: "600"},
		{VendorID: vendorB.ID, LineTotal: "400"},
	}})
	creditOrder(t, f, &order)
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.ReleaseToAvailable(ctx, tx, &order, testdb.Items(t, tx, order.ID))
		return err
	}))

	requested := dec("500")
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.Reverse(ctx, tx, &order, testdb.Items(t, tx, order.ID), &requested)
		return err
	}))

	walletA := testdb.Wallet(t, f.db, vendorA.ID)
	walletB := testdb.Wallet(t, f.db, vendorB.ID)
	assert.True(t, walletA.AvailableBalance.Equal(dec("240")), "A available %s", walletA.AvailableBalance)
	assert.True(t, walletB.AvailableBalance.Equal(dec("160")), "B available %s", walletB.AvailableBalance)
	assert.True(t, walletA.PendingBalance.IsZero())

	// Over-asking is capped at what is still outstanding.
	huge := dec("5000")
	var movement *Movement
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		var err error
		movement, err = f.escrow.Reverse(ctx, tx, &order, testdb.Items(t, tx, order.ID), &huge)
		return err
	}))
	assert.True(t, movement.Total.Equal(dec("400")))
	assert.True(t, testdb.Wallet(t, f.db, vendorA.ID).AvailableBalance.IsZero())
}

func TestDebitPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := testdb.Vendor(t, f.db, "0.10")
	order := testdb.Order(t, f.db, testdb.OrderSpec{Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}}})
	creditOrder(t, f, &order)
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		_, err := f.escrow.ReleaseToAvailable(ctx, tx, &order, testdb.Items(t, tx, order.ID))
		return err
	}))

	payout := &models.Payout{ID: uuid.New(), VendorID: vendor.ID, WalletID: vendor.Wallet.ID, Amount: dec("300")}
	require.NoError(t, f.tx(t, func(tx *gorm.DB) error {
		return f.escrow.DebitPayout(ctx, tx, payout)
	}))
	wallet := testdb.Wallet(t, f.db, vendor.ID)
	assert.True(t, wallet.AvailableBalance.Equal(dec("600")))
	assert.True(t, wallet.TotalWithdrawn.Equal(dec("300")))

	tooMuch := &models.Payout{VendorID: vendor.ID, Amount: dec("601")}
	err := f.tx(t, func(tx *gorm.DB) error {
		return f.escrow.DebitPayout(ctx, tx, tooMuch)
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvariant))

	require.Error(t, f.escrow.DebitPayout(ctx, f.db, &models.Payout{VendorID: vendor.ID, Amount: decimal.Zero}))

	report, err := f.ledger.Replay(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}
