// Package payouts handles vendor withdrawals from the available balance.
package payouts

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/internal/notifications"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/money"
	"github.com/vendorhub/marketplace-backend/pkg/pagination"
)

const ReasonNotPending = "payout_not_pending"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Payout, error)
	Approve(ctx context.Context, input DecisionInput) (*models.Payout, error)
	Reject(ctx context.Context, input DecisionInput) (*models.Payout, error)
	List(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Payout, error)
}

type RequestInput struct {
	VendorID      uuid.UUID
	Amount        decimal.Decimal
	BankReference string
	Notes         string
}

type DecisionInput struct {
	PayoutID uuid.UUID
	AdminID  uuid.UUID
	Notes    string
}

type ServiceParams struct {
	Repo       Repository
	Wallets    ledger.Repository
	Tx         txRunner
	Escrow     escrow.Service
	Dispatcher notifications.Dispatcher
	Effects    *notifications.Runner
	Logger     *logger.Logger
	Minimum    decimal.Decimal
}

type service struct {
	repo       Repository
	wallets    ledger.Repository
	tx         txRunner
	escrow     escrow.Service
	dispatcher notifications.Dispatcher
	effects    *notifications.Runner
	logg       *logger.Logger
	minimum    decimal.Decimal
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("payouts repository required")
	case params.Wallets == nil:
		return nil, fmt.Errorf("wallet repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Escrow == nil:
		return nil, fmt.Errorf("escrow service required")
	case params.Dispatcher == nil:
		return nil, fmt.Errorf("notification dispatcher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Minimum.IsNegative():
		return nil, fmt.Errorf("minimum payout cannot be negative")
	}
	effects := params.Effects
	if effects == nil {
		effects = notifications.NewRunner(params.Logger, nil)
	}
	return &service{
		repo:       params.Repo,
		wallets:    params.Wallets,
		tx:         params.Tx,
		escrow:     params.Escrow,
		dispatcher: params.Dispatcher,
		effects:    effects,
		logg:       params.Logger,
		minimum:    params.Minimum,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Request files a withdrawal. The amount must clear the configured minimum
// and fit in the available balance left after other pending requests.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.Payout, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	amount := money.Round(input.Amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	if amount.LessThan(s.minimum) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payout amount must be at least %s", s.minimum.StringFixed(2))).
			WithDetails(map[string]string{"amount": "below minimum"})
	}

	var payout *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		wallet, err := s.wallets.WithTx(tx).LockWalletByVendor(ctx, input.VendorID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
		}
		repo := s.repo.WithTx(tx)
		reserved, err := repo.PendingTotal(ctx, input.VendorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending payouts")
		}
		free := wallet.AvailableBalance.Sub(reserved)
		if amount.GreaterThan(free) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("payout amount exceeds the withdrawable balance of %s", maxZero(free).StringFixed(2))).
				WithDetails(map[string]string{"amount": "exceeds available balance"})
		}
		payout = &models.Payout{
			VendorID:      input.VendorID,
			WalletID:      wallet.ID,
			Amount:        amount,
			Status:        enums.PayoutStatusPending,
			BankReference: optional(input.BankReference),
			Notes:         optional(input.Notes),
			RequestedAt:   s.now(),
		}
		if err := repo.Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// Approve debits the available balance. A balance that no longer covers the
// payout aborts with an invariant error and the payout stays pending.
func (s *service) Approve(ctx context.Context, input DecisionInput) (*models.Payout, error) {
	return s.decide(ctx, input, enums.PayoutStatusApproved)
}

func (s *service) Reject(ctx context.Context, input DecisionInput) (*models.Payout, error) {
	return s.decide(ctx, input, enums.PayoutStatusRejected)
}

func (s *service) decide(ctx context.Context, input DecisionInput, status enums.PayoutStatus) (*models.Payout, error) {
	var payout *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		payout, err = repo.Lock(ctx, input.PayoutID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payout")
		}
		if payout.Status != enums.PayoutStatusPending {
			return pkgerrors.StateConflict(ReasonNotPending, fmt.Sprintf("payout is already %s", strings.ToLower(string(payout.Status))))
		}
		if status == enums.PayoutStatusApproved {
			if err := s.escrow.DebitPayout(ctx, tx, payout); err != nil {
				return err
			}
		}
		now := s.now()
		adminID := input.AdminID
		updates := map[string]any{"status": status, "decided_at": now, "decided_by": adminID}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			updates["notes"] = notes
			payout.Notes = &notes
		}
		if err := repo.Update(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout")
		}
		payout.Status = status
		payout.DecidedAt = &now
		payout.DecidedBy = &adminID
		return nil
	})
	if err != nil {
		return nil, err
	}

	n := notifications.Notification{
		RecipientID:   payout.VendorID,
		RecipientRole: enums.ActorRoleVendor,
		Type:          enums.NotificationTypePayoutUpdate,
		Title:         "Payout " + strings.ToLower(string(status)),
		Message:       fmt.Sprintf("Your payout of %s was %s.", payout.Amount.StringFixed(2), strings.ToLower(string(status))),
		Link:          "/vendor/payouts",
		Metadata:      map[string]any{"payout_id": payout.ID.String()},
	}
	_ = s.effects.Run(ctx, notifications.Effect{
		Name: "notify_vendor",
		Run:  func(ctx context.Context) error { return s.dispatcher.Notify(ctx, n) },
	})
	return payout, nil
}

func (s *service) List(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Payout, error) {
	rows, err := s.repo.ListByVendor(ctx, vendorID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return rows, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func maxZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
