package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

// Wallet holds a vendor's escrowed and withdrawable funds.
type Wallet struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VendorID         uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex"`
	PendingBalance   decimal.Decimal `gorm:"column:pending_balance;type:numeric(14,2);not null;default:0"`
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:numeric(14,2);not null;default:0"`
	TotalEarnings    decimal.Decimal `gorm:"column:total_earnings;type:numeric(14,2);not null;default:0"`
	TotalWithdrawn   decimal.Decimal `gorm:"column:total_withdrawn;type:numeric(14,2);not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Wallet) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// Balance returns the value of the requested column.
func (w Wallet) Balance(column enums.BalanceColumn) decimal.Decimal {
	if column == enums.BalanceColumnAvailable {
		return w.AvailableBalance
	}
	return w.PendingBalance
}

// WalletTransaction is one append-only ledger row. Every row targets exactly
// one balance column and satisfies BalanceAfter = BalanceBefore + Amount.
type WalletTransaction struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	WalletID      uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null;index:idx_wallet_tx_wallet_created,priority:1"`
	Type          enums.WalletTransactionType `gorm:"column:type;type:text;not null"`
	BalanceColumn enums.BalanceColumn         `gorm:"column:balance_column;type:text;not null"`
	Amount        decimal.Decimal             `gorm:"column:amount;type:numeric(14,2);not null"`
	BalanceBefore decimal.Decimal             `gorm:"column:balance_before;type:numeric(14,2);not null"`
	BalanceAfter  decimal.Decimal             `gorm:"column:balance_after;type:numeric(14,2);not null"`
	OrderID       *uuid.UUID                  `gorm:"column:order_id;type:uuid;index"`
	OrderNumber   *int64                      `gorm:"column:order_number"`
	PayoutID      *uuid.UUID                  `gorm:"column:payout_id;type:uuid"`
	Metadata      map[string]any              `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime;index:idx_wallet_tx_wallet_created,priority:2"`
}

func (t *WalletTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
