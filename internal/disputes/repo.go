package disputes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/repo"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/pagination"
)

// Repository persists disputes and their comment threads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	Find(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	HasActive(ctx context.Context, orderID uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AddComment(ctx context.Context, comment *models.DisputeComment) error
	List(ctx context.Context, q listQuery) ([]models.Dispute, error)
}

type listQuery struct {
	customerID *uuid.UUID
	status     *enums.DisputeStatus
	limit      int
	cursor     *pagination.Cursor
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

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.DB(ctx).Create(dispute).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.DB(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// Lock reads the dispute row under lock. Comments are not loaded.
func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.LockFirst(ctx, &dispute, "id = ?", id); err != nil {
		return nil, err
	}
	return &dispute, nil
}

// HasActive must run after the order row is locked; that lock is what keeps
// two concurrent opens from both seeing no active dispute.
func (r *repository) HasActive(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Dispute{}).
		Where("order_id = ? AND status IN ?", orderID, enums.ActiveDisputeStatuses()).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.DB(ctx).Model(&models.Dispute{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) AddComment(ctx context.Context, comment *models.DisputeComment) error {
	return r.DB(ctx).Create(comment).Error
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.Dispute, error) {
	query := r.DB(ctx).Model(&models.Dispute{})
	if q.customerID != nil {
		query = query.Where("customer_id = ?", *q.customerID)
	}
	if q.status != nil {
		query = query.Where("status = ?", *q.status)
	}
	var rows []models.Dispute
	err := pagination.Seek(query, q.cursor, q.limit).Find(&rows).Error
	return rows, err
}
