package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AddressSnapshot is the shipping address copied onto an order at placement.
// It is never resolved back to the customer's live address book.
type AddressSnapshot struct {
	RecipientName string  `json:"recipient_name" validate:"required"`
	Phone         string  `json:"phone" validate:"required"`
	Line1         string  `json:"line1" validate:"required"`
	Line2         *string `json:"line2,omitempty"`
	City          string  `json:"city" validate:"required"`
	Province      string  `json:"province" validate:"required"`
	PostalCode    string  `json:"postal_code" validate:"required"`
	Country       string  `json:"country"`
}

// Validate enforces the minimum fields needed to ship.
func (a AddressSnapshot) Validate() error {
	missing := []string{}
	for field, value := range map[string]string{
		"recipient_name": a.RecipientName,
		"line1":          a.Line1,
		"city":           a.City,
		"postal_code":    a.PostalCode,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("address: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ProductSnapshot freezes what the customer saw when buying a line.
type ProductSnapshot struct {
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Price       decimal.Decimal `json:"price"`
}
