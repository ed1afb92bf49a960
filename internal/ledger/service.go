package ledger

import (
	"context"
	stdErrors "errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/metrics"
	"github.com/vendorhub/marketplace-backend/pkg/pagination"
)

// Service is the only code path allowed to change a wallet balance column.
type Service interface {
	CreateWallet(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (*models.Wallet, error)
	Apply(ctx context.Context, tx *gorm.DB, mutation Mutation) (*models.WalletTransaction, error)
	GetWallet(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, vendorID uuid.UUID, params ListParams) (*TransactionList, error)
	Replay(ctx context.Context, walletID uuid.UUID) (*ReplayReport, error)
	WalletIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Mutation describes one signed change to a single balance column. Earnings
// and Withdrawn are non-negative increments of the lifetime counters.
type Mutation struct {
	VendorID    uuid.UUID
	Type        enums.WalletTransactionType
	Column      enums.BalanceColumn
	Amount      decimal.Decimal
	Earnings    decimal.Decimal
	Withdrawn   decimal.Decimal
	OrderID     *uuid.UUID
	OrderNumber *int64
	PayoutID    *uuid.UUID
	Metadata    map[string]any
}

type ListParams struct {
	pagination.Params
	Types []enums.WalletTransactionType
	From  *time.Time
	To    *time.Time
}

// TransactionView is the API shape of one ledger row.
type TransactionView struct {
	ID            uuid.UUID                   `json:"id"`
	Type          enums.WalletTransactionType `json:"type"`
	BalanceColumn enums.BalanceColumn         `json:"balance_column"`
	Amount        decimal.Decimal             `json:"amount"`
	BalanceBefore decimal.Decimal             `json:"balance_before"`
	BalanceAfter  decimal.Decimal             `json:"balance_after"`
	OrderID       *uuid.UUID                  `json:"order_id,omitempty"`
	OrderNumber   *int64                      `json:"order_number,omitempty"`
	PayoutID      *uuid.UUID                  `json:"payout_id,omitempty"`
	Metadata      map[string]any              `json:"metadata,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
}

func newTransactionView(row models.WalletTransaction) TransactionView {
	return TransactionView{
		ID:            row.ID,
		Type:          row.Type,
		BalanceColumn: row.BalanceColumn,
		Amount:        row.Amount,
		BalanceBefore: row.BalanceBefore,
		BalanceAfter:  row.BalanceAfter,
		OrderID:       row.OrderID,
		OrderNumber:   row.OrderNumber,
		PayoutID:      row.PayoutID,
		Metadata:      row.Metadata,
		CreatedAt:     row.CreatedAt,
	}
}

type TransactionList struct {
	Items  []TransactionView `json:"items"`
	Cursor string            `json:"cursor,omitempty"`
}

// ReplayReport compares a wallet's stored balances against its ledger.
type ReplayReport struct {
	WalletID          uuid.UUID       `json:"wallet_id"`
	VendorID          uuid.UUID       `json:"vendor_id"`
	Entries           int             `json:"entries"`
	PendingStored     decimal.Decimal `json:"pending_stored"`
	PendingReplayed   decimal.Decimal `json:"pending_replayed"`
	AvailableStored   decimal.Decimal `json:"available_stored"`
	AvailableReplayed decimal.Decimal `json:"available_replayed"`
	BrokenEntries     []uuid.UUID     `json:"broken_entries,omitempty"`
}

// Consistent reports whether the replayed balances match and every row holds.
func (r ReplayReport) Consistent() bool {
	return r.PendingStored.Equal(r.PendingReplayed) &&
		r.AvailableStored.Equal(r.AvailableReplayed) &&
		len(r.BrokenEntries) == 0
}

type service struct {
	repo    Repository
	metrics *metrics.EscrowMetrics
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, escrowMetrics *metrics.EscrowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, metrics: escrowMetrics}, nil
}

func (s *service) CreateWallet(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (*models.Wallet, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	wallet := &models.Wallet{
		VendorID:         vendorID,
		PendingBalance:   decimal.Zero,
		AvailableBalance: decimal.Zero,
		TotalEarnings:    decimal.Zero,
		TotalWithdrawn:   decimal.Zero,
	}
	if err := s.repo.WithTx(tx).CreateWallet(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return wallet, nil
}

// Apply locks the vendor's wallet, applies the signed amount to one column and
// appends exactly one ledger row, all on tx. A result below zero aborts with
// an invariant error and nothing is written.
func (s *service) Apply(ctx context.Context, tx *gorm.DB, m Mutation) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet mutation requires a transaction")
	}
	if err := validateMutation(m); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.LockWalletByVendor(ctx, m.VendorID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInvariant, fmt.Sprintf("wallet missing for vendor %s", m.VendorID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}

	before := wallet.Balance(m.Column)
	after := before.Add(m.Amount)
	if after.IsNegative() {
		s.metrics.IncInvariantViolation("negative_" + string(m.Column) + "_balance")
		return nil, pkgerrors.New(pkgerrors.CodeInvariant,
			fmt.Sprintf("%s balance of wallet %s would become %s", m.Column, wallet.ID, after.StringFixed(2)),
		).WithDetails(map[string]any{
			"wallet_id": wallet.ID.String(),
			"type":      m.Type,
			"before":    before.StringFixed(2),
			"amount":    m.Amount.StringFixed(2),
		})
	}

	switch m.Column {
	case enums.BalanceColumnPending:
		wallet.PendingBalance = after
	case enums.BalanceColumnAvailable:
		wallet.AvailableBalance = after
	}
	wallet.TotalEarnings = wallet.TotalEarnings.Add(m.Earnings)
	wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(m.Withdrawn)

	if err := repo.SaveBalances(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balances")
	}

	entry := &models.WalletTransaction{
		WalletID:      wallet.ID,
		Type:          m.Type,
		BalanceColumn: m.Column,
		Amount:        m.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		OrderID:       m.OrderID,
		OrderNumber:   m.OrderNumber,
		PayoutID:      m.PayoutID,
		Metadata:      m.Metadata,
	}
	if err := repo.CreateTransaction(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet transaction")
	}

	s.metrics.ObserveMovement(string(m.Type), string(m.Column), m.Amount)
	return entry, nil
}

func validateMutation(m Mutation) error {
	if m.VendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "wallet mutation requires a vendor id")
	}
	if !m.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("invalid wallet transaction type %q", m.Type))
	}
	if !m.Column.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("invalid balance column %q", m.Column))
	}
	if m.Amount.IsZero() {
		return pkgerrors.New(pkgerrors.CodeInternal, "wallet mutation amount must be non-zero")
	}
	if m.Earnings.IsNegative() || m.Withdrawn.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeInvariant, "lifetime wallet counters cannot decrease")
	}
	return nil
}

func (s *service) GetWallet(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindWalletByVendor(ctx, vendorID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, vendorID uuid.UUID, params ListParams) (*TransactionList, error) {
	wallet, err := s.GetWallet(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	for _, t := range params.Types {
		if !t.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", t))
		}
	}
	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}

	query := transactionQuery{
		walletID: wallet.ID,
		types:    params.Types,
		from:     params.From,
		to:       params.To,
		limit:    pagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.ListTransactions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	rows, next := pagination.Page(rows, params.Limit, func(row models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	items := make([]TransactionView, 0, len(rows))
	for _, row := range rows {
		items = append(items, newTransactionView(row))
	}
	return &TransactionList{Items: items, Cursor: next}, nil
}

// Replay rebuilds both balances from zero using the wallet's ledger rows. A
// row is broken when its snapshot does not satisfy after = before + amount,
// or when its before does not continue the previous row's after for the same
// column, which exposes deleted or rewritten rows.
func (s *service) Replay(ctx context.Context, walletID uuid.UUID) (*ReplayReport, error) {
	wallet, err := s.repo.FindWallet(ctx, walletID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	rows, err := s.repo.TransactionsForWallet(ctx, walletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet transactions")
	}

	report := &ReplayReport{
		WalletID:        wallet.ID,
		VendorID:        wallet.VendorID,
		Entries:         len(rows),
		PendingStored:   wallet.PendingBalance,
		AvailableStored: wallet.AvailableBalance,
	}
	totals := map[enums.BalanceColumn]decimal.Decimal{
		enums.BalanceColumnPending:   decimal.Zero,
		enums.BalanceColumnAvailable: decimal.Zero,
	}
	last := maps.Clone(totals)
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].CreatedAt.Equal(rows[start].CreatedAt) {
			end++
		}
		for _, row := range chainOrder(rows[start:end], last) {
			prev, known := last[row.BalanceColumn]
			if !known {
				report.BrokenEntries = append(report.BrokenEntries, row.ID)
				continue
			}
			if !row.BalanceBefore.Add(row.Amount).Equal(row.BalanceAfter) || !row.BalanceBefore.Equal(prev) {
				report.BrokenEntries = append(report.BrokenEntries, row.ID)
			}
			last[row.BalanceColumn] = row.BalanceAfter
			totals[row.BalanceColumn] = totals[row.BalanceColumn].Add(row.Amount)
		}
		start = end
	}
	report.PendingReplayed = totals[enums.BalanceColumnPending]
	report.AvailableReplayed = totals[enums.BalanceColumnAvailable]
	return report, nil
}

// chainOrder orders rows sharing a timestamp so each continues the last
// balance of its column. Rows that continue nothing keep their order at the
// end.
func chainOrder(group []models.WalletTransaction, last map[enums.BalanceColumn]decimal.Decimal) []models.WalletTransaction {
	if len(group) < 2 {
		return group
	}
	balances := maps.Clone(last)
	left := slices.Clone(group)
	out := make([]models.WalletTransaction, 0, len(group))
	for len(left) > 0 {
		next := slices.IndexFunc(left, func(row models.WalletTransaction) bool {
			b, ok := balances[row.BalanceColumn]
			return ok && row.BalanceBefore.Equal(b)
		})
		if next < 0 {
			return append(out, left...)
		}
		balances[left[next].BalanceColumn] = left[next].BalanceAfter
		out = append(out, left[next])
		left = slices.Delete(left, next, next+1)
	}
	return out
}

func (s *service) WalletIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.repo.ListWalletIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallets")
	}
	return ids, nil
}
