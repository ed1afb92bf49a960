package payouts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

// PayoutView is the API shape of a withdrawal request.
type PayoutView struct {
	ID            uuid.UUID          `json:"id"`
	VendorID      uuid.UUID          `json:"vendor_id"`
	Amount        decimal.Decimal    `json:"amount"`
	Status        enums.PayoutStatus `json:"status"`
	BankReference *string            `json:"bank_reference,omitempty"`
	Notes         *string            `json:"notes,omitempty"`
	RequestedAt   time.Time          `json:"requested_at"`
	DecidedAt     *time.Time         `json:"decided_at,omitempty"`
	DecidedBy     *uuid.UUID         `json:"decided_by,omitempty"`
}

func NewPayoutView(p *models.Payout) PayoutView {
	return PayoutView{
		ID:            p.ID,
		VendorID:      p.VendorID,
		Amount:        p.Amount,
		Status:        p.Status,
		BankReference: p.BankReference,
		Notes:         p.Notes,
		RequestedAt:   p.RequestedAt,
		DecidedAt:     p.DecidedAt,
		DecidedBy:     p.DecidedBy,
	}
}

func NewPayoutViews(rows []models.Payout) []PayoutView {
	out := make([]PayoutView, 0, len(rows))
	for i := range rows {
		out = append(out, NewPayoutView(&rows[i]))
	}
	return out
}
