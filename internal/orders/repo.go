package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/repo"
	"github.com/vendorhub/marketplace-backend/pkg/db"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextOrderNumber(ctx context.Context) (int64, error)
	CountVendors(ctx context.Context, vendorIDs []uuid.UUID) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrderByNumber(ctx context.Context, number int64) (*models.Order, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	FindOrderIDByTracking(ctx context.Context, trackingNumber string) (uuid.UUID, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AppendHistory(ctx context.Context, entries ...models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	FindPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, q listQuery) ([]models.Order, error)
	FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type listQuery struct {
	status *enums.OrderStatus
	limit  int
	cursor *pagination.Cursor
}

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

// NextOrderNumber draws from the order_number_seq sequence on Postgres. SQLite
// has no sequences; there the next number is max+1 under the surrounding
// transaction's write lock.
func (r *repository) NextOrderNumber(ctx context.Context) (int64, error) {
	var next int64
	conn := r.DB(ctx)
	if conn.Dialector.Name() == db.DialectPostgres {
		err := conn.Raw("SELECT nextval('order_number_seq')").Scan(&next).Error
		return next, err
	}
	err := conn.Raw("SELECT COALESCE(MAX(order_number), 1000) + 1 FROM orders").Scan(&next).Error
	return next, err
}

func (r *repository) CountVendors(ctx context.Context, vendorIDs []uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Vendor{}).Where("id IN ?", vendorIDs).Count(&count).Error
	return count, err
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, &order)
}

// LockOrder reads the order row under lock, then its items. Every mutation of
// an order or its items starts here so concurrent actors serialize per order.
func (r *repository) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.LockFirst(ctx, &order, "id = ?", id); err != nil {
		return nil, err
	}
	return r.withItems(ctx, &order)
}

func (r *repository) LockOrderByNumber(ctx context.Context, number int64) (*models.Order, error) {
	var order models.Order
	if err := r.LockFirst(ctx, &order, "order_number = ?", number); err != nil {
		return nil, err
	}
	return r.withItems(ctx, &order)
}

func (r *repository) withItems(ctx context.Context, order *models.Order) (*models.Order, error) {
	var items []models.OrderItem
	if err := r.DB(ctx).
		Where("order_id = ?", order.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.DB(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindOrderIDByTracking(ctx context.Context, trackingNumber string) (uuid.UUID, error) {
	var item models.OrderItem
	if err := r.DB(ctx).
		Select("order_id").
		Where("tracking_number = ?", trackingNumber).
		Order("created_at DESC").
		First(&item).Error; err != nil {
		return uuid.Nil, err
	}
	return item.OrderID, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.DB(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.DB(ctx).Model(&models.OrderItem{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) AppendHistory(ctx context.Context, entries ...models.OrderStatusHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&entries).Error
}

func (r *repository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.DB(ctx).Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, q listQuery) ([]models.Order, error) {
	query := r.DB(ctx).Model(&models.Order{}).Where("customer_id = ?", customerID)
	if q.status != nil {
		query = query.Where("status = ?", *q.status)
	}
	var rows []models.Order
	if err := pagination.Seek(query.Preload("Items"), q.cursor, q.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).Model(&models.Order{}).
		Where("status = ? AND created_at < ?", enums.OrderStatusPendingPayment, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
