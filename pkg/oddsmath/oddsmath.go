// Package oddsmath holds decimal-odds arithmetic shared by the market cache and
// the advisory stake sizing.
package oddsmath

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPriceTooLow is returned for a decimal price of 1.0 or less
	ErrPriceTooLow = errors.New("decimal odds must be greater than 1.0")

	// ErrNegativeMargin is returned when the implied probabilities sum below 1.0
	ErrNegativeMargin = errors.New("implied probabilities sum below 1.0")

	// ErrNoPrices is returned for an empty price set
	ErrNoPrices = errors.New("no prices")
)

var one = decimal.NewFromInt(1)

// ImpliedProbability returns 1/price.
func ImpliedProbability(price decimal.Decimal) (decimal.Decimal, error) {
	if price.LessThanOrEqual(one) {
		return decimal.Zero, ErrPriceTooLow
	}
	return one.DivRound(price, 8), nil
}

// Overround returns the sum of implied probabilities of a complete outcome set.
// A fair book sums to exactly 1.0; bookmakers keep a margin above it.
func Overround(prices ...decimal.Decimal) (decimal.Decimal, error) {
	if len(prices) == 0 {
		return decimal.Zero, ErrNoPrices
	}

	sum := decimal.Zero
	for _, p := range prices {
		ip, err := ImpliedProbability(p)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(ip)
	}
	return sum, nil
}

// CheckBook rejects a price set where any price is <= 1.0 or where the implied
// probabilities sum below 1.0.
func CheckBook(prices ...decimal.Decimal) error {
	sum, err := Overround(prices...)
	if err != nil {
		return err
	}
	if sum.LessThan(one) {
		return ErrNegativeMargin
	}
	return nil
}

// KellyFraction returns the full-Kelly bankroll fraction (b*p - q) / b where
// b = price - 1 and q = 1 - p. Negative edges return zero.
func KellyFraction(probability float64, price decimal.Decimal) (decimal.Decimal, error) {
	if price.LessThanOrEqual(one) {
		return decimal.Zero, ErrPriceTooLow
	}

	p := decimal.NewFromFloat(probability)
	q := one.Sub(p)
	b := price.Sub(one)

	f := b.Mul(p).Sub(q).DivRound(b, 8)
	if f.IsNegative() {
		return decimal.Zero, nil
	}
	return f, nil
}
