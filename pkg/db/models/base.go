package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the caller has not chosen one. IDs are
// generated in Go so the same models work against Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model owned by the service, in dependency order.
func All() []any {
	return []any{
		&Vendor{},
		&Wallet{},
		&WalletTransaction{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&CouponUsage{},
		&Payment{},
		&Dispute{},
		&DisputeComment{},
		&Payout{},
	}
}
