package coupons

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/repo"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
)

// Repository persists coupons and their usage ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountUsages(ctx context.Context, couponID uuid.UUID) (int64, error)
	CountCustomerUsages(ctx context.Context, couponID, customerID uuid.UUID) (int64, error)
	CreateUsage(ctx context.Context, usage *models.CouponUsage) error
	DeleteUsageByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

// LockByCode loads the coupon row under lock so usage counting and the new
// usage row are serialized per coupon.
func (r *repository) LockByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.LockFirst(ctx, &coupon, "code = ?", NormalizeCode(code)); err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) CountUsages(ctx context.Context, couponID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.CouponUsage{}).Where("coupon_id = ?", couponID).Count(&count).Error
	return count, err
}

func (r *repository) CountCustomerUsages(ctx context.Context, couponID, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND customer_id = ?", couponID, customerID).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateUsage(ctx context.Context, usage *models.CouponUsage) error {
	return r.DB(ctx).Create(usage).Error
}

func (r *repository) DeleteUsageByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("order_id = ?", orderID).Delete(&models.CouponUsage{})
	return res.RowsAffected, res.Error
}

// NormalizeCode canonicalizes user-entered coupon codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
