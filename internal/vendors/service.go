// Package vendors onboards sellers and exposes their wallet audit.
package vendors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/ledger"
	"github.com/vendorhub/marketplace-backend/pkg/db"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes vendor operations.
type Service interface {
	Onboard(ctx context.Context, input OnboardInput) (*VendorView, error)
	Get(ctx context.Context, id uuid.UUID) (*VendorView, error)
	UpdateCommissionRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (*VendorView, error)
	Audit(ctx context.Context, vendorID uuid.UUID) (*AuditView, error)
}

type service struct {
	repo   Repository
	ledger ledger.Service
	tx     txRunner
}

// NewService builds a vendor service.
func NewService(repo Repository, ledgerSvc ledger.Service, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vendor repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, ledger: ledgerSvc, tx: tx}, nil
}

// Onboard creates the vendor and its zeroed wallet together.
func (s *service) Onboard(ctx context.Context, input OnboardInput) (*VendorView, error) {
	name := strings.TrimSpace(input.Name)
	details := map[string]string{}
	if input.UserID == uuid.Nil {
		details["user_id"] = "required"
	}
	if name == "" {
		details["name"] = "required"
	}
	if err := validateRate(input.CommissionRate); err != nil {
		details["commission_rate"] = err.Error()
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid vendor").WithDetails(details)
	}

	vendor := &models.Vendor{UserID: input.UserID, Name: name, CommissionRate: input.CommissionRate}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, vendor); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "user is already a vendor")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vendor")
		}
		wallet, err := s.ledger.CreateWallet(ctx, tx, vendor.ID)
		if err != nil {
			return err
		}
		vendor.Wallet = wallet
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := NewVendorView(vendor)
	return &view, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*VendorView, error) {
	vendor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	view := NewVendorView(vendor)
	return &view, nil
}

// UpdateCommissionRate only affects lines credited after the change; credited
// items keep the commission computed at payment time.
func (s *service) UpdateCommissionRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (*VendorView, error) {
	if err := validateRate(rate); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid commission rate").
			WithDetails(map[string]string{"commission_rate": err.Error()})
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound(err)
	}
	if err := s.repo.UpdateCommissionRate(ctx, id, rate); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update commission rate")
	}
	return s.Get(ctx, id)
}

// Audit replays the vendor's ledger against the stored balances.
func (s *service) Audit(ctx context.Context, vendorID uuid.UUID) (*AuditView, error) {
	wallet, err := s.ledger.GetWallet(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	report, err := s.ledger.Replay(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	return &AuditView{Wallet: NewWalletView(wallet), Report: report, Consistent: report.Consistent()}, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be between 0 and 1")
	}
	if !rate.Equal(rate.Round(4)) {
		return fmt.Errorf("at most 4 decimal places")
	}
	return nil
}

func notFound(err error) error {
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
}
