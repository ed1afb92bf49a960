package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/repo"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	Lock(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	PendingTotal(ctx context.Context, vendorID uuid.UUID) (decimal.Decimal, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Payout, error)
}

type repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.DB(ctx).Create(payout).Error
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.LockFirst(ctx, &payout, "id = ?", id); err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.DB(ctx).Model(&models.Payout{}).Where("id = ?", id).Updates(updates).Error
}

// PendingTotal sums the vendor's requests still awaiting a decision.
func (r *repository) PendingTotal(ctx context.Context, vendorID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.DB(ctx).Model(&models.Payout{}).
		Where("vendor_id = ? AND status = ?", vendorID, enums.PayoutStatusPending).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total, nil
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Payout, error) {
	var rows []models.Payout
	err := r.DB(ctx).
		Where("vendor_id = ?", vendorID).
		Order("requested_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
