package orders_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/coupons"
	"github.com/vendorhub/marketplace-backend/internal/delivery"
	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/internal/gateway"
	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/internal/notifications"
	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/internal/testdb"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/types"
)

type fakeRefunder struct {
	mu       sync.Mutex
	requests []gateway.RefundRequest
	err      error
}

func (f *fakeRefunder) Refund(_ context.Context, req gateway.RefundRequest) (*gateway.RefundResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.RefundResponse{StatusCode: "200", RefundKey: req.Key}, nil
}

type fixture struct {
	conn       *gorm.DB
	escrow     escrow.Service
	svc        orders.Service
	refunds    *fakeRefunder
	dispatcher *notifications.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := testdb.Client(t)
	conn := client.DB()
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), nil)
	require.NoError(t, err)
	escrowSvc, err := escrow.NewService(escrow.NewRepository(conn), ledgerSvc)
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	recorder := &notifications.Recorder{}
	repo := orders.NewRepository(conn)
	deliverySvc, err := delivery.NewService(delivery.ServiceParams{
		Orders:         repo,
		Tx:             client,
		Escrow:         escrowSvc,
		Dispatcher:     recorder,
		Logger:         logg,
		TrackingSecret: "secret",
	})
	require.NoError(t, err)
	refunds := &fakeRefunder{}
	svc, err := orders.NewService(orders.ServiceParams{
		Repo:       repo,
		Tx:         client,
		Escrow:     escrowSvc,
		Coupons:    couponSvc,
		Delivery:   deliverySvc,
		Refunds:    refunds,
		Dispatcher: recorder,
		Logger:     logg,
	})
	require.NoError(t, err)
	return fixture{conn: conn, escrow: escrowSvc, svc: svc, refunds: refunds, dispatcher: recorder}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// paidOrder seeds an order at status, credits it and records the gateway payment.
func (f fixture) paidOrder(t *testing.T, spec testdb.OrderSpec) models.Order {
	t.Helper()
	order := testdb.Order(t, f.conn, spec)
	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		_, err := f.escrow.CreditPending(context.Background(), tx, &order, testdb.Items(t, tx, order.ID))
		return err
	}))
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_status", enums.PaymentStatusPaid).Error)
	require.NoError(t, f.conn.Create(&models.Payment{
		OrderID:       order.ID,
		ExternalID:    "trx-paid",
		Status:        enums.PaymentStatusPaid,
		GrossAmount:   order.Total,
		Currency:      "IDR",
		SignatureHash: "sig",
	}).Error)
	return order
}

func (f fixture) reload(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.Preload("Items").First(&order, "id = ?", id).Error)
	return order
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	reason, _ := details["reason"].(string)
	return reason
}

func TestNewServiceValidatesDeps(t *testing.T) {
	_, err := orders.NewService(orders.ServiceParams{})
	require.Error(t, err)
}

func TestCancelPaidOrderReversesFullNet(t *testing.T) {
	f := newFixture(t)
	vendorA := testdb.Vendor(t, f.conn, "0.10")
	vendorB := testdb.Vendor(t, f.conn, "0.10")
	customer := uuid.New()
	order := f.paidOrder(t, testdb.OrderSpec{
		CustomerID: customer,
		Status:     enums.OrderStatusPaymentConfirmed,
		Shipping:   "20",
		Lines: []testdb.Line{
			{VendorID: vendorA.ID, LineTotal: "600"},
			{VendorID: vendorB.ID, LineTotal: "400"},
		},
	})

	view, err := f.svc.Cancel(context.Background(), orders.CancelInput{
		OrderID: order.ID,
		ActorID: customer,
		Role:    enums.ActorRoleCustomer,
		Reason:  "changed my mind about it",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, view.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, view.PaymentStatus)

	walletA := testdb.Wallet(t, f.conn, vendorA.ID)
	walletB := testdb.Wallet(t, f.conn, vendorB.ID)
	assert.True(t, walletA.PendingBalance.IsZero(), walletA.PendingBalance.String())
	assert.True(t, walletB.PendingBalance.IsZero(), walletB.PendingBalance.String())
	assert.True(t, walletA.TotalEarnings.Equal(dec("540")))

	var reversal decimal.Decimal
	var rows []models.WalletTransaction
	require.NoError(t, f.conn.Where("type = ?", enums.WalletTxRefundReversal).Find(&rows).Error)
	for _, row := range rows {
		reversal = reversal.Add(row.Amount.Abs())
	}
	assert.True(t, reversal.Equal(dec("900")), reversal.String())

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusRefunded, payment.Status)

	require.Len(t, f.refunds.requests, 1)
	assert.True(t, f.refunds.requests[0].Amount.Equal(dec("1020")))
	assert.Equal(t, "trx-paid", f.refunds.requests[0].ExternalID)

	stored := f.reload(t, order.ID)
	assert.Nil(t, stored.RefundFlag)
	for _, item := range stored.Items {
		assert.Equal(t, enums.OrderItemStatusCancelled, item.Status)
	}
	// customer plus one notification per vendor
	assert.Len(t, f.dispatcher.Sent(), 3)
}

func TestCancelAfterWindowChangesNothing(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")
	customer := uuid.New()
	order := f.paidOrder(t, testdb.OrderSpec{
		CustomerID: customer,
		Status:     enums.OrderStatusPaymentConfirmed,
		CreatedAt:  time.Now().Add(-25 * time.Hour),
		Lines:      []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}},
	})

	_, err := f.svc.Cancel(context.Background(), orders.CancelInput{
		OrderID: order.ID,
		ActorID: customer,
		Role:    enums.ActorRoleCustomer,
		Reason:  "too slow to process",
	})
	require.Error(t, err)
	assert.Equal(t, orders.ReasonCancellationExpired, reasonOf(t, err))
	assert.Equal(t, "cancellation window expired", pkgerrors.As(err).Message())

	assert.Equal(t, enums.OrderStatusPaymentConfirmed, f.reload(t, order.ID).Status)
	assert.True(t, testdb.Wallet(t, f.conn, vendor.ID).PendingBalance.Equal(dec("900")))
	assert.Empty(t, f.refunds.requests)
}

func TestCancelFlagsFailedGatewayRefund(t *testing.T) {
	f := newFixture(t)
	f.refunds.err = errors.New("gateway unavailable")
	vendor := testdb.Vendor(t, f.conn, "0.10")
	order := f.paidOrder(t, testdb.OrderSpec{
		Status: enums.OrderStatusProcessing,
		Lines:  []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}},
	})

	_, err := f.svc.Cancel(context.Background(), orders.CancelInput{
		OrderID: order.ID,
		ActorID: uuid.New(),
		Role:    enums.ActorRoleAdmin,
		Reason:  "vendor out of stock",
	})
	require.NoError(t, err)

	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	require.NotNil(t, stored.RefundFlag)
	assert.Contains(t, *stored.RefundFlag, "gateway unavailable")
	assert.True(t, testdb.Wallet(t, f.conn, vendor.ID).PendingBalance.IsZero())
}

func TestCancelRejectsOtherCustomer(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")
	order := testdb.Order(t, f.conn, testdb.OrderSpec{
		Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "100"}},
	})
	_, err := f.svc.Cancel(context.Background(), orders.CancelInput{
		OrderID: order.ID,
		ActorID: uuid.New(),
		Role:    enums.ActorRoleCustomer,
		Reason:  "not mine anyway",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestExpireUnpaidCancelsPendingOrder(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")
	order := testdb.Order(t, f.conn, testdb.OrderSpec{
		CreatedAt: time.Now().Add(-48 * time.Hour),
		Lines:     []testdb.Line{{VendorID: vendor.ID, LineTotal: "100"}},
	})

	ids, err := f.svc.UnpaidBefore(context.Background(), time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{order.ID}, ids)

	expired, err := f.svc.ExpireUnpaid(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, expired)

	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, enums.PaymentStatusExpired, stored.PaymentStatus)

	expired, err = f.svc.ExpireUnpaid(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, expired)
}

func placementInput(customer, vendorA, vendorB uuid.UUID, code string) orders.PlaceOrderInput {
	return orders.PlaceOrderInput{
		CustomerID: customer,
		Lines: []orders.PlaceLine{
			{VendorID: vendorA, ProductID: uuid.New(), Quantity: 2, UnitPrice: dec("300"), Snapshot: types.ProductSnapshot{ProductName: "Kettle"}},
			{VendorID: vendorB, ProductID: uuid.New(), Quantity: 1, UnitPrice: dec("400"), Snapshot: types.ProductSnapshot{ProductName: "Lamp"}},
		},
		Shipping: dec("15"),
		ShippingAddress: types.AddressSnapshot{
			RecipientName: "Sari",
			Phone:         "0812",
			Line1:         "Jl. Merdeka 1",
			City:          "Bandung",
			Province:      "Jawa Barat",
			PostalCode:    "40111",
		},
		CouponCode: code,
	}
}

func TestPlaceOrderAppliesCoupon(t *testing.T) {
	f := newFixture(t)
	vendorA := testdb.Vendor(t, f.conn, "0.10")
	vendorB := testdb.Vendor(t, f.conn, "0.10")
	require.NoError(t, f.conn.Create(&models.Coupon{
		Code:   "HEMAT100",
		Type:   enums.CouponTypeFlat,
		Value:  dec("100"),
		Active: true,
	}).Error)
	customer := uuid.New()

	view, err := f.svc.PlaceOrder(context.Background(), placementInput(customer, vendorA.ID, vendorB.ID, "hemat100"))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, view.Status)
	assert.True(t, view.Subtotal.Equal(dec("1000")))
	assert.True(t, view.Discount.Equal(dec("100")))
	assert.True(t, view.Total.Equal(dec("915")))
	require.Len(t, view.Items, 2)

	shares := decimal.Zero
	lines := decimal.Zero
	for _, item := range view.Items {
		shares = shares.Add(item.DiscountShare)
		lines = lines.Add(item.LineTotal)
	}
	assert.True(t, shares.Equal(dec("100")))
	assert.True(t, lines.Equal(view.Subtotal))

	var usages int64
	require.NoError(t, f.conn.Model(&models.CouponUsage{}).Where("order_id = ?", view.ID).Count(&usages).Error)
	assert.EqualValues(t, 1, usages)

	second, err := f.svc.PlaceOrder(context.Background(), placementInput(customer, vendorA.ID, vendorB.ID, ""))
	require.NoError(t, err)
	assert.Equal(t, view.OrderNumber+1, second.OrderNumber)

	// cancelling frees the coupon for another order
	_, err = f.svc.Cancel(context.Background(), orders.CancelInput{OrderID: view.ID, ActorID: customer, Role: enums.ActorRoleCustomer, Reason: "wrong shipping address"})
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.CouponUsage{}).Where("order_id = ?", view.ID).Count(&usages).Error)
	assert.EqualValues(t, 0, usages)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")

	input := placementInput(uuid.New(), vendor.ID, vendor.ID, "")
	input.Lines[0].Quantity = 0
	input.ShippingAddress.City = ""
	_, err := f.svc.PlaceOrder(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = placementInput(uuid.New(), vendor.ID, uuid.New(), "")
	_, err = f.svc.PlaceOrder(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAdvanceItemRecomputesOrderStatus(t *testing.T) {
	f := newFixture(t)
	vendorA := testdb.Vendor(t, f.conn, "0.10")
	vendorB := testdb.Vendor(t, f.conn, "0.10")
	order := f.paidOrder(t, testdb.OrderSpec{
		Status: enums.OrderStatusPaymentConfirmed,
		Lines: []testdb.Line{
			{VendorID: vendorA.ID, LineTotal: "600"},
			{VendorID: vendorB.ID, LineTotal: "400"},
		},
	})
	items := testdb.Items(t, f.conn, order.ID)
	ctx := context.Background()

	advance := func(item models.OrderItem, target enums.OrderItemStatus, tracking string) (*orders.OrderView, error) {
		return f.svc.AdvanceItem(ctx, orders.ItemStatusInput{
			ItemID:         item.ID,
			VendorID:       item.VendorID,
			ActorID:        uuid.New(),
			Target:         target,
			TrackingNumber: tracking,
		})
	}

	view, err := advance(items[0], enums.OrderItemStatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, view.Status)

	_, err = advance(items[0], enums.OrderItemStatusShipped, "")
	assert.Equal(t, orders.ReasonTrackingRequired, reasonOf(t, err))

	view, err = advance(items[0], enums.OrderItemStatusShipped, "JNE-1")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, view.Status)

	view, err = advance(items[1], enums.OrderItemStatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, view.Status)

	view, err = advance(items[1], enums.OrderItemStatusShipped, "SICEPAT-2")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, view.Status)

	_, err = f.svc.AdvanceItem(ctx, orders.ItemStatusInput{
		ItemID:   items[0].ID,
		VendorID: vendorB.ID,
		Target:   enums.OrderItemStatusProcessing,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	var history []models.OrderStatusHistory
	require.NoError(t, f.conn.Where("order_id = ? AND order_item_id IS NULL", order.ID).Find(&history).Error)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, orders.TriggerItemRecompute, h.Trigger)
	}
	// one shipping notification per shipped item
	assert.Len(t, f.dispatcher.Sent(), 2)
}

func TestConfirmDeliveryReleasesAndConfirms(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")
	customer := uuid.New()
	order := f.paidOrder(t, testdb.OrderSpec{
		CustomerID: customer,
		Status:     enums.OrderStatusShipped,
		Lines:      []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}},
	})

	view, err := f.svc.ConfirmDelivery(context.Background(), order.ID, customer)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDeliveryConfirmed, view.Status)
	require.NotNil(t, view.DeliveryConfirmedAt)

	wallet := testdb.Wallet(t, f.conn, vendor.ID)
	assert.True(t, wallet.AvailableBalance.Equal(dec("900")))
	assert.True(t, wallet.PendingBalance.IsZero())

	_, err = f.svc.ConfirmDelivery(context.Background(), order.ID, customer)
	assert.Equal(t, orders.ReasonNoChange, reasonOf(t, err))
	assert.True(t, testdb.Wallet(t, f.conn, vendor.ID).AvailableBalance.Equal(dec("900")))
}

func TestRequestReturnInsideWindow(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")
	customer := uuid.New()
	order := f.paidOrder(t, testdb.OrderSpec{
		CustomerID: customer,
		Status:     enums.OrderStatusShipped,
		Lines:      []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}},
	})
	_, err := f.svc.ConfirmDelivery(context.Background(), order.ID, customer)
	require.NoError(t, err)

	_, err = f.svc.RequestReturn(context.Background(), orders.ReturnInput{
		OrderID:     order.ID,
		CustomerID:  customer,
		Reason:      "arrived broken",
		Description: "the glass was shattered",
	})
	require.NoError(t, err)
	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusReturnRequested, stored.Status)
	require.NotNil(t, stored.ReturnReason)
	assert.Equal(t, "arrived broken", *stored.ReturnReason)
}

func TestRequestReturnAfterWindow(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")
	customer := uuid.New()
	order := testdb.Order(t, f.conn, testdb.OrderSpec{
		CustomerID: customer,
		Status:     enums.OrderStatusDeliveryConfirmed,
		ItemStatus: enums.OrderItemStatusDelivered,
		Lines:      []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}},
	})
	confirmed := time.Now().UTC().Add(-30 * time.Hour)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("delivery_confirmed_at", confirmed).Error)

	_, err := f.svc.RequestReturn(context.Background(), orders.ReturnInput{OrderID: order.ID, CustomerID: customer, Reason: "too late now"})
	assert.Equal(t, orders.ReasonReturnExpired, reasonOf(t, err))
}

func TestAdminTransitionGuards(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")
	unpaid := testdb.Order(t, f.conn, testdb.OrderSpec{
		Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "100"}},
	})
	ctx := context.Background()
	admin := uuid.New()

	_, err := f.svc.AdminTransition(ctx, orders.AdminTransitionInput{OrderID: unpaid.ID, AdminID: admin, Target: enums.OrderStatusProcessing})
	assert.Equal(t, orders.ReasonPaymentNotConfirmed, reasonOf(t, err))

	paid := f.paidOrder(t, testdb.OrderSpec{
		Status: enums.OrderStatusPaymentConfirmed,
		Lines:  []testdb.Line{{VendorID: vendor.ID, LineTotal: "1000"}},
	})
	_, err = f.svc.AdminTransition(ctx, orders.AdminTransitionInput{OrderID: paid.ID, AdminID: admin, Target: enums.OrderStatusPendingPayment})
	assert.Equal(t, orders.ReasonPaymentAlreadyCredited, reasonOf(t, err))

	_, err = f.svc.AdminTransition(ctx, orders.AdminTransitionInput{OrderID: paid.ID, AdminID: admin, Target: enums.OrderStatusDeliveryConfirmed})
	assert.Equal(t, orders.ReasonDeliveryNotRecorded, reasonOf(t, err))

	_, err = f.svc.AdminTransition(ctx, orders.AdminTransitionInput{OrderID: paid.ID, AdminID: admin, Target: enums.OrderStatusClosed})
	assert.Equal(t, orders.ReasonFundsHeld, reasonOf(t, err))
	assert.True(t, testdb.Wallet(t, f.conn, vendor.ID).PendingBalance.Equal(dec("900")))

	view, err := f.svc.AdminTransition(ctx, orders.AdminTransitionInput{OrderID: paid.ID, AdminID: admin, Target: enums.OrderStatusShipped, Note: "carrier picked up"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, view.Status)
	for _, item := range view.Items {
		assert.Equal(t, enums.OrderItemStatusShipped, item.Status)
	}

	view, err = f.svc.AdminTransition(ctx, orders.AdminTransitionInput{OrderID: paid.ID, AdminID: admin, Target: enums.OrderStatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, view.Status)
	assert.True(t, testdb.Wallet(t, f.conn, vendor.ID).AvailableBalance.Equal(dec("900")))

	_, err = f.svc.AdminTransition(ctx, orders.AdminTransitionInput{OrderID: paid.ID, AdminID: admin, Target: enums.OrderStatusProcessing})
	assert.Equal(t, orders.ReasonFundsAlreadyReleased, reasonOf(t, err))

	var history []models.OrderStatusHistory
	require.NoError(t, f.conn.Where("order_id = ? AND order_item_id IS NULL AND actor_role = ?", paid.ID, enums.ActorRoleAdmin).Find(&history).Error)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, orders.TriggerAdminOverride, h.Trigger)
		require.NotNil(t, h.ActorID)
		assert.Equal(t, admin, *h.ActorID)
	}
}

func TestGetAndListRespectOwnership(t *testing.T) {
	f := newFixture(t)
	vendor := testdb.Vendor(t, f.conn, "0.10")
	customer := uuid.New()
	for i := 0; i < 3; i++ {
		testdb.Order(t, f.conn, testdb.OrderSpec{
			CustomerID: customer,
			CreatedAt:  time.Now().Add(-time.Duration(i) * time.Hour),
			Lines:      []testdb.Line{{VendorID: vendor.ID, LineTotal: "100"}},
		})
	}
	testdb.Order(t, f.conn, testdb.OrderSpec{Lines: []testdb.Line{{VendorID: vendor.ID, LineTotal: "100"}}})

	page, err := f.svc.List(context.Background(), orders.ListInput{CustomerID: customer, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.List(context.Background(), orders.ListInput{CustomerID: customer, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	assert.Empty(t, rest.NextCursor)

	target := page.Orders[0].ID
	view, err := f.svc.Get(context.Background(), target, orders.Viewer{UserID: customer, Role: enums.ActorRoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, target, view.ID)

	_, err = f.svc.Get(context.Background(), target, orders.Viewer{UserID: uuid.New(), Role: enums.ActorRoleCustomer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	vendorID := vendor.ID
	_, err = f.svc.Get(context.Background(), target, orders.Viewer{UserID: uuid.New(), Role: enums.ActorRoleVendor, VendorID: &vendorID})
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), uuid.New(), orders.Viewer{Role: enums.ActorRoleAdmin})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
