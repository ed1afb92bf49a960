package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base is embedded by every domain repository. It holds either the pooled
// connection or the transaction the repository was bound to.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// Bind returns a copy running on tx. A nil tx keeps the current handle, which
// lets services call WithTx(nil) outside a transaction.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// ForUpdate returns a handle whose next read takes a row lock. SQLite has no
// row locks and its dialect drops the clause.
func (b Base) ForUpdate(ctx context.Context) *gorm.DB {
	return b.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockFirst loads the first row matching where into dest under a row lock.
// It returns gorm.ErrRecordNotFound when nothing matches.
func (b Base) LockFirst(ctx context.Context, dest any, where string, args ...any) error {
	return b.ForUpdate(ctx).Where(where, args...).First(dest).Error
}
