package enums

import "fmt"

// WalletTransactionType classifies an append-only wallet ledger row.
type WalletTransactionType string

const (
	WalletTxCreditPending       WalletTransactionType = "CREDIT_PENDING"
	WalletTxCommissionDeduction WalletTransactionType = "COMMISSION_DEDUCTION"
	WalletTxReleaseAvailable    WalletTransactionType = "RELEASE_AVAILABLE"
	WalletTxRefundReversal      WalletTransactionType = "REFUND_REVERSAL"
	WalletTxPayoutDebit         WalletTransactionType = "PAYOUT_DEBIT"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTxCreditPending,
	WalletTxCommissionDeduction,
	WalletTxReleaseAvailable,
	WalletTxRefundReversal,
	WalletTxPayoutDebit,
}

func (t WalletTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches a known ledger row type.
func (t WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseWalletTransactionType converts raw input into WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}

// BalanceColumn names the wallet column a ledger row targets.
type BalanceColumn string

const (
	BalanceColumnPending   BalanceColumn = "pending"
	BalanceColumnAvailable BalanceColumn = "available"
)

func (c BalanceColumn) IsValid() bool {
	return c == BalanceColumnPending || c == BalanceColumnAvailable
}
