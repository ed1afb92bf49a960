package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
)

// Repository persists the escrow bookkeeping carried on order items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CommissionRates(ctx context.Context, vendorIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	SaveItemEscrow(ctx context.Context, item *models.OrderItem) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CommissionRates(ctx context.Context, vendorIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	var vendors []models.Vendor
	if err := r.db.WithContext(ctx).
		Select("id", "commission_rate").
		Where("id IN ?", vendorIDs).
		Find(&vendors).Error; err != nil {
		return nil, err
	}
	rates := make(map[uuid.UUID]decimal.Decimal, len(vendors))
	for _, v := range vendors {
		rates[v.ID] = v.CommissionRate
	}
	return rates, nil
}

func (r *repository) SaveItemEscrow(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"commission_rate":   item.CommissionRate,
			"commission_amount": item.Commission,
			"net_amount":        item.NetAmount,
			"refunded_amount":   item.RefundedAmount,
			"credited_at":       item.CreditedAt,
			"released_at":       item.ReleasedAt,
			"updated_at":        time.Now().UTC(),
		}).Error
}
