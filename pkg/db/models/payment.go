package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

// Payment mirrors the gateway's view of an order's payment (1:1 with Order).
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	ExternalID    string              `gorm:"column:external_id;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	PaymentType   *string             `gorm:"column:payment_type"`
	GrossAmount   decimal.Decimal     `gorm:"column:gross_amount;type:numeric(14,2);not null"`
	Currency      string              `gorm:"column:currency;not null;default:'IDR'"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	RawPayload    json.RawMessage     `gorm:"column:raw_payload;type:jsonb"`
	SignatureHash string              `gorm:"column:signature_hash;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
