package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/types"
)

// Order is one customer checkout. Money fields are frozen once payment is
// confirmed; only status, cancellation and delivery metadata change after.
type Order struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber         int64                 `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID          uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	Subtotal            decimal.Decimal       `gorm:"column:subtotal;type:numeric(14,2);not null"`
	Discount            decimal.Decimal       `gorm:"column:discount;type:numeric(14,2);not null;default:0"`
	Shipping            decimal.Decimal       `gorm:"column:shipping;type:numeric(14,2);not null;default:0"`
	Total               decimal.Decimal       `gorm:"column:total;type:numeric(14,2);not null"`
	Status              enums.OrderStatus     `gorm:"column:status;type:text;not null;index"`
	PaymentStatus       enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null"`
	CouponID            *uuid.UUID            `gorm:"column:coupon_id;type:uuid"`
	CouponCode          *string               `gorm:"column:coupon_code"`
	ShippingAddress     types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	CancelReason        *string               `gorm:"column:cancel_reason"`
	CancelledAt         *time.Time            `gorm:"column:cancelled_at"`
	DeliveryConfirmedAt *time.Time            `gorm:"column:delivery_confirmed_at"`
	ReturnReason        *string               `gorm:"column:return_reason"`
	ReturnDescription   *string               `gorm:"column:return_description"`
	ReturnRequestedAt   *time.Time            `gorm:"column:return_requested_at"`
	RefundFlag          *string               `gorm:"column:refund_flag"`
	Items               []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is one line for a single vendor. Escrow bookkeeping lives on the
// item so credits, releases and reversals stay idempotent per line.
type OrderItem struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID        uuid.UUID             `gorm:"column:vendor_id;type:uuid;not null;index"`
	ProductID       uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	VariantID       *uuid.UUID            `gorm:"column:variant_id;type:uuid"`
	Quantity        int                   `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal       `gorm:"column:unit_price;type:numeric(14,2);not null"`
	LineTotal       decimal.Decimal       `gorm:"column:line_total;type:numeric(14,2);not null"`
	ProductSnapshot types.ProductSnapshot `gorm:"column:product_snapshot;type:jsonb;serializer:json;not null"`
	Status          enums.OrderItemStatus `gorm:"column:status;type:text;not null"`
	TrackingNumber  *string               `gorm:"column:tracking_number"`
	TrackingURL     *string               `gorm:"column:tracking_url"`
	ShippedAt       *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time            `gorm:"column:delivered_at"`
	DiscountShare   decimal.Decimal       `gorm:"column:discount_share;type:numeric(14,2);not null;default:0"`
	CommissionRate  decimal.Decimal       `gorm:"column:commission_rate;type:numeric(5,4);not null;default:0"`
	Commission      decimal.Decimal       `gorm:"column:commission_amount;type:numeric(14,2);not null;default:0"`
	NetAmount       decimal.Decimal       `gorm:"column:net_amount;type:numeric(14,2);not null;default:0"`
	RefundedAmount  decimal.Decimal       `gorm:"column:refunded_amount;type:numeric(14,2);not null;default:0"`
	CreditedAt      *time.Time            `gorm:"column:credited_at"`
	ReleasedAt      *time.Time            `gorm:"column:released_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// RemainingNet is the credited net that has not been reversed yet.
func (i OrderItem) RemainingNet() decimal.Decimal {
	remaining := i.NetAmount.Sub(i.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// OrderStatusHistory is the audit trail of every applied transition.
type OrderStatusHistory struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID *uuid.UUID      `gorm:"column:order_item_id;type:uuid"`
	FromStatus  string          `gorm:"column:from_status;not null"`
	ToStatus    string          `gorm:"column:to_status;not null"`
	ActorRole   enums.ActorRole `gorm:"column:actor_role;type:text;not null"`
	ActorID     *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	Trigger     string          `gorm:"column:trigger_source;not null"`
	Note        *string         `gorm:"column:note"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
