package oddsmath

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestImpliedProbability(t *testing.T) {
	p, err := ImpliedProbability(d("2.00"))
	require.NoError(t, err)
	assert.True(t, p.Equal(d("0.5")))

	_, err = ImpliedProbability(d("1.00"))
	assert.ErrorIs(t, err, ErrPriceTooLow)

	_, err = ImpliedProbability(d("0.50"))
	assert.ErrorIs(t, err, ErrPriceTooLow)
}

func TestCheckBook(t *testing.T) {
	tests := []struct {
		name    string
		prices  []decimal.Decimal
		wantErr error
	}{
		{"typical three-way book", []decimal.Decimal{d("2.10"), d("3.40"), d("3.60")}, nil},
		{"fair coin", []decimal.Decimal{d("2.00"), d("2.00")}, nil},
		{"price at one", []decimal.Decimal{d("1.00"), d("5.00")}, ErrPriceTooLow},
		{"arbitrage book", []decimal.Decimal{d("2.50"), d("2.50")}, ErrNegativeMargin},
		{"empty", nil, ErrNoPrices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBook(tt.prices...)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestKellyFraction(t *testing.T) {
	// b = 1, p = 0.6 -> f = (0.6 - 0.4) / 1 = 0.2
	f, err := KellyFraction(0.6, d("2.00"))
	require.NoError(t, err)
	assert.True(t, f.Equal(d("0.2")), "got %s", f)

	// no edge
	f, err = KellyFraction(0.4, d("2.00"))
	require.NoError(t, err)
	assert.True(t, f.IsZero())

	_, err = KellyFraction(0.9, d("1.00"))
	assert.ErrorIs(t, err, ErrPriceTooLow)
}
