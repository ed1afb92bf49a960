package vendors

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/repo"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
)

// Repository handles vendor persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, vendor *models.Vendor) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Vendor, error)
	UpdateCommissionRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) error
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

func (r *repository) Create(ctx context.Context, vendor *models.Vendor) error {
	return r.DB(ctx).Omit("Wallet").Create(vendor).Error
}

// FindByID loads a vendor with its wallet.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.DB(ctx).Preload("Wallet").Where("id = ?", id).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.DB(ctx).Preload("Wallet").Where("user_id = ?", userID).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) UpdateCommissionRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) error {
	return r.DB(ctx).Model(&models.Vendor{}).Where("id = ?", id).Update("commission_rate", rate).Error
}
