package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

// Dispute is a customer complaint against a delivered order.
type Dispute struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderID              uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID           uuid.UUID                `gorm:"column:customer_id;type:uuid;not null"`
	Reason               enums.DisputeReason      `gorm:"column:reason;type:text;not null"`
	Description          string                   `gorm:"column:description;not null"`
	Evidence             []string                 `gorm:"column:evidence;type:jsonb;serializer:json"`
	Status               enums.DisputeStatus      `gorm:"column:status;type:text;not null"`
	OrderStatusAtOpen    enums.OrderStatus        `gorm:"column:order_status_at_open;type:text;not null"`
	ResolutionType       *enums.DisputeResolution `gorm:"column:resolution_type;type:text"`
	ResolutionNotes      *string                  `gorm:"column:resolution_notes"`
	RefundAmount         *decimal.Decimal         `gorm:"column:refund_amount;type:numeric(14,2)"`
	ResolvedBy           *uuid.UUID               `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt           *time.Time               `gorm:"column:resolved_at"`
	RequiresManualAction bool                     `gorm:"column:requires_manual_action;not null;default:false"`
	RefundFailureReason  *string                  `gorm:"column:refund_failure_reason"`
	Comments             []DisputeComment         `gorm:"foreignKey:DisputeID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Dispute) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

type DisputeComment struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	DisputeID  uuid.UUID       `gorm:"column:dispute_id;type:uuid;not null;index"`
	AuthorID   *uuid.UUID      `gorm:"column:author_id;type:uuid"`
	AuthorRole enums.ActorRole `gorm:"column:author_role;type:text;not null"`
	Body       string          `gorm:"column:body;not null"`
	IsSystem   bool            `gorm:"column:is_system;not null;default:false"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (c *DisputeComment) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
