// Package money holds the decimal helpers shared by every component that
// computes amounts. All values are in the currency's major unit with two
// decimal places; binary floats never appear.
package money

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// Places is the number of minor-unit digits kept on every stored amount.
	Places = 2

	divisionPrecision = 16
)

var minorUnit = decimal.New(1, -Places)

// Round rounds half away from zero to the minor unit.
func Round(value decimal.Decimal) decimal.Decimal {
	return value.Round(Places)
}

// Sum adds the provided values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Parse reads a decimal amount and rejects more than two fractional digits.
func Parse(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !value.Equal(Round(value)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, Places)
	}
	return value, nil
}

// Apportion rounds each exact share to the minor unit so that the rounded
// shares add up to target exactly. Shares are floored first; the leftover
// minor units go to the shares with the largest fractional remainder, ties
// broken by position.
func Apportion(exact []decimal.Decimal, target decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(exact))
	if len(exact) == 0 {
		return out
	}

	type remainder struct {
		idx  int
		frac decimal.Decimal
	}
	remainders := make([]remainder, len(exact))
	floored := decimal.Zero
	for i, value := range exact {
		out[i] = value.RoundFloor(Places)
		floored = floored.Add(out[i])
		remainders[i] = remainder{idx: i, frac: value.Sub(out[i])}
	}

	units := target.Sub(floored).Div(minorUnit).IntPart()
	if units <= 0 {
		return out
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac.GreaterThan(remainders[b].frac)
	})
	for n := int64(0); n < units; n++ {
		idx := remainders[int(n)%len(remainders)].idx
		out[idx] = out[idx].Add(minorUnit)
	}
	return out
}

// Allocate splits total across weights proportionally using Apportion.
// A zero weight sum with a non-zero total is an error.
func Allocate(total decimal.Decimal, weights []decimal.Decimal) ([]decimal.Decimal, error) {
	weightSum := Sum(weights...)
	if weightSum.IsZero() {
		if total.IsZero() {
			return make([]decimal.Decimal, len(weights)), nil
		}
		return nil, fmt.Errorf("cannot allocate %s across zero weights", total)
	}
	exact := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		exact[i] = total.Mul(w).DivRound(weightSum, divisionPrecision)
	}
	return Apportion(exact, Round(total)), nil
}
