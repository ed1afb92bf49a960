package payments

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

// Notification is the gateway's form-encoded payment callback.
type Notification struct {
	OrderID           string
	TransactionID     string
	TransactionStatus string
	StatusCode        string
	GrossAmount       string
	Currency          string
	PaymentType       string
	FraudStatus       string
	SignatureKey      string
	// Raw keeps every submitted field for the payment's audit payload.
	Raw map[string]string
}

// NotificationFromForm reads the callback fields from a parsed form.
func NotificationFromForm(form url.Values) Notification {
	raw := make(map[string]string, len(form))
	for key := range form {
		raw[key] = form.Get(key)
	}
	return Notification{
		OrderID:           strings.TrimSpace(form.Get("order_id")),
		TransactionID:     strings.TrimSpace(form.Get("transaction_id")),
		TransactionStatus: strings.TrimSpace(form.Get("transaction_status")),
		StatusCode:        strings.TrimSpace(form.Get("status_code")),
		GrossAmount:       strings.TrimSpace(form.Get("gross_amount")),
		Currency:          strings.TrimSpace(form.Get("currency")),
		PaymentType:       strings.TrimSpace(form.Get("payment_type")),
		FraudStatus:       strings.TrimSpace(form.Get("fraud_status")),
		SignatureKey:      strings.TrimSpace(form.Get("signature_key")),
		Raw:               raw,
	}
}

// Signature computes hex(SHA-512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares the submitted signature in constant time.
func VerifySignature(n Notification, serverKey string) bool {
	if serverKey == "" || n.SignatureKey == "" {
		return false
	}
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) == 1
}

// MapStatus converts the gateway transaction status into a payment status.
// A captured card payment only counts as paid once fraud screening accepted it.
func MapStatus(transactionStatus, fraudStatus string) (enums.PaymentStatus, bool) {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "", "accept":
			return enums.PaymentStatusPaid, true
		case "challenge":
			return enums.PaymentStatusPending, true
		default:
			return enums.PaymentStatusFailed, true
		}
	case "settlement":
		return enums.PaymentStatusPaid, true
	case "pending":
		return enums.PaymentStatusPending, true
	case "deny", "failure":
		return enums.PaymentStatusFailed, true
	case "expire":
		return enums.PaymentStatusExpired, true
	case "cancel":
		return enums.PaymentStatusCancelled, true
	case "refund", "partial_refund":
		return enums.PaymentStatusRefunded, true
	}
	return "", false
}
