package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

// Coupon is a discount definition. A nil VendorID makes it platform-wide.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Type             enums.CouponType `gorm:"column:type;type:text;not null"`
	Value            decimal.Decimal  `gorm:"column:value;type:numeric(14,2);not null"`
	MaxDiscount      *decimal.Decimal `gorm:"column:max_discount;type:numeric(14,2)"`
	MinPurchase      decimal.Decimal  `gorm:"column:min_purchase;type:numeric(14,2);not null;default:0"`
	VendorID         *uuid.UUID       `gorm:"column:vendor_id;type:uuid"`
	UsageLimit       *int             `gorm:"column:usage_limit"`
	PerCustomerLimit *int             `gorm:"column:per_customer_limit"`
	StartsAt         *time.Time       `gorm:"column:starts_at"`
	EndsAt           *time.Time       `gorm:"column:ends_at"`
	Active           bool             `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CouponUsage counts one redemption; deleting it releases the usage.
type CouponUsage struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CouponID   uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;index"`
	CustomerID uuid.UUID       `gorm:"column:customer_id;type:uuid;not null"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Discount   decimal.Decimal `gorm:"column:discount;type:numeric(14,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (u *CouponUsage) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
