package vendors

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
)

// OnboardInput carries the admin's onboarding request.
type OnboardInput struct {
	UserID         uuid.UUID
	Name           string
	CommissionRate decimal.Decimal
}

// WalletView exposes the balances of a vendor wallet.
type WalletView struct {
	ID               uuid.UUID       `json:"id"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalWithdrawn   decimal.Decimal `json:"total_withdrawn"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// VendorView is the API shape of a vendor.
type VendorView struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Name           string          `json:"name"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Wallet         *WalletView     `json:"wallet,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AuditView pairs the stored wallet with its ledger replay.
type AuditView struct {
	Wallet     WalletView           `json:"wallet"`
	Report     *ledger.ReplayReport `json:"report"`
	Consistent bool                 `json:"consistent"`
}

func NewWalletView(w *models.Wallet) WalletView {
	return WalletView{
		ID:               w.ID,
		PendingBalance:   w.PendingBalance,
		AvailableBalance: w.AvailableBalance,
		TotalEarnings:    w.TotalEarnings,
		TotalWithdrawn:   w.TotalWithdrawn,
		UpdatedAt:        w.UpdatedAt,
	}
}

func NewVendorView(v *models.Vendor) VendorView {
	view := VendorView{
		ID:             v.ID,
		UserID:         v.UserID,
		Name:           v.Name,
		CommissionRate: v.CommissionRate,
		CreatedAt:      v.CreatedAt,
	}
	if v.Wallet != nil {
		wallet := NewWalletView(v.Wallet)
		view.Wallet = &wallet
	}
	return view
}
