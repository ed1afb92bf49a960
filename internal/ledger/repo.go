package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	"github.com/vendorhub/marketplace-backend/pkg/pagination"
)

// Repository manages persistence for wallets and their ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	FindWalletByVendor(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error)
	FindWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	LockWalletByVendor(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error)
	SaveBalances(ctx context.Context, wallet *models.Wallet) error
	CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error
	ListTransactions(ctx context.Context, query transactionQuery) ([]models.WalletTransaction, error)
	TransactionsForWallet(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error)
	ListWalletIDs(ctx context.Context) ([]uuid.UUID, error)
}

type transactionQuery struct {
	walletID uuid.UUID
	types    []enums.WalletTransactionType
	from     *time.Time
	to       *time.Time
	limit    int
	cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindWalletByVendor(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("id = ?", walletID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockWalletByVendor reads the wallet row with SELECT ... FOR UPDATE. It is the
// only read a balance mutation may base its delta on.
func (r *repository) LockWalletByVendor(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ?", vendorID).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) SaveBalances(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]any{
			"pending_balance":   wallet.PendingBalance,
			"available_balance": wallet.AvailableBalance,
			"total_earnings":    wallet.TotalEarnings,
			"total_withdrawn":   wallet.TotalWithdrawn,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListTransactions(ctx context.Context, q transactionQuery) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("wallet_id = ?", q.walletID)
	if len(q.types) > 0 {
		query = query.Where("type IN ?", q.types)
	}
	if q.from != nil {
		query = query.Where("created_at >= ?", *q.from)
	}
	if q.to != nil {
		query = query.Where("created_at < ?", *q.to)
	}

	var rows []models.WalletTransaction
	if err := pagination.Seek(query, q.cursor, q.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) TransactionsForWallet(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListWalletIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.Wallet{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
