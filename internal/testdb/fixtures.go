package testdb

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/types"
)

// Vendor inserts a vendor with an empty wallet.
func Vendor(t testing.TB, conn *gorm.DB, rate string) models.Vendor {
	t.Helper()
	vendor := models.Vendor{
		UserID:         uuid.New(),
		Name:           "vendor-" + uuid.NewString()[:8],
		CommissionRate: decimal.RequireFromString(rate),
	}
	if err := conn.Create(&vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	wallet := models.Wallet{VendorID: vendor.ID}
	if err := conn.Create(&wallet).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	vendor.Wallet = &wallet
	return vendor
}

// Line describes one seeded order item.
type Line struct {
	VendorID  uuid.UUID
	LineTotal string
}

// OrderSpec configures a seeded order.
type OrderSpec struct {
	CustomerID uuid.UUID
	Status     enums.OrderStatus
	ItemStatus enums.OrderItemStatus
	Discount   string
	Shipping   string
	CreatedAt  time.Time
	Lines      []Line
}

var orderNumber int64 = 1000

// Order inserts an order and its items. Totals are derived from the lines.
func Order(t testing.TB, conn *gorm.DB, spec OrderSpec) models.Order {
	t.Helper()
	if spec.CustomerID == uuid.Nil {
		spec.CustomerID = uuid.New()
	}
	if spec.Status == "" {
		spec.Status = enums.OrderStatusPendingPayment
	}
	if spec.ItemStatus == "" {
		spec.ItemStatus = enums.OrderItemStatus(spec.Status)
	}
	discount := decimal.Zero
	if spec.Discount != "" {
		discount = decimal.RequireFromString(spec.Discount)
	}
	shipping := decimal.Zero
	if spec.Shipping != "" {
		shipping = decimal.RequireFromString(spec.Shipping)
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, len(spec.Lines))
	for i, line := range spec.Lines {
		total := decimal.RequireFromString(line.LineTotal)
		subtotal = subtotal.Add(total)
		items[i] = models.OrderItem{
			VendorID:  line.VendorID,
			ProductID: uuid.New(),
			Quantity:  1,
			UnitPrice: total,
			LineTotal: total,
			ProductSnapshot: types.ProductSnapshot{
				ProductName: "product",
				Price:       total,
			},
			Status: spec.ItemStatus,
		}
	}

	orderNumber++
	order := models.Order{
		OrderNumber:   orderNumber,
		CustomerID:    spec.CustomerID,
		Subtotal:      subtotal,
		Discount:      discount,
		Shipping:      shipping,
		Total:         subtotal.Sub(discount).Add(shipping),
		Status:        spec.Status,
		PaymentStatus: enums.PaymentStatusPending,
		ShippingAddress: types.AddressSnapshot{
			RecipientName: "Customer",
			Phone:         "0800",
			Line1:         "Street 1",
			City:          "City",
			Province:      "Province",
			PostalCode:    "10000",
		},
		Items: items,
	}
	if !spec.CreatedAt.IsZero() {
		order.CreatedAt = spec.CreatedAt.UTC()
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

// Wallet reloads the vendor's wallet.
func Wallet(t testing.TB, conn *gorm.DB, vendorID uuid.UUID) models.Wallet {
	t.Helper()
	var wallet models.Wallet
	if err := conn.Where("vendor_id = ?", vendorID).First(&wallet).Error; err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	return wallet
}

// Items reloads an order's items in insertion order.
func Items(t testing.TB, conn *gorm.DB, orderID uuid.UUID) []models.OrderItem {
	t.Helper()
	var items []models.OrderItem
	if err := conn.Where("order_id = ?", orderID).Order("created_at ASC").Order("id ASC").Find(&items).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	return items
}

// CountTransactions counts ledger rows of the given type for a vendor.
func CountTransactions(t testing.TB, conn *gorm.DB, vendorID uuid.UUID, txType enums.WalletTransactionType) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.WalletTransaction{}).
		Joins("JOIN wallets ON wallets.id = wallet_transactions.wallet_id").
		Where("wallets.vendor_id = ? AND wallet_transactions.type = ?", vendorID, txType).
		Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return count
}
