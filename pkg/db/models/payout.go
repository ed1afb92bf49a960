package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

// Payout is a vendor withdrawal request against the available balance.
type Payout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	VendorID      uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;index"`
	WalletID      uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(14,2);not null"`
	Status        enums.PayoutStatus `gorm:"column:status;type:text;not null"`
	BankReference *string            `gorm:"column:bank_reference"`
	Notes         *string            `gorm:"column:notes"`
	RequestedAt   time.Time          `gorm:"column:requested_at;not null"`
	DecidedAt     *time.Time         `gorm:"column:decided_at"`
	DecidedBy     *uuid.UUID         `gorm:"column:decided_by;type:uuid"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payout) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
