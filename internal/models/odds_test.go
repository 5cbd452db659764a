package models

import (
	"testing"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/pkg/oddsmath"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsStale_Boundary(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsStale(fetched, fetched.Add(MarketStaleWindow-time.Second), MarketStaleWindow))
	assert.False(t, IsStale(fetched, fetched.Add(MarketStaleWindow), MarketStaleWindow), "age equal to window is fresh")
	assert.True(t, IsStale(fetched, fetched.Add(MarketStaleWindow+time.Nanosecond), MarketStaleWindow))

	assert.False(t, IsStale(fetched, fetched.Add(59*time.Minute), AnalysisStaleWindow))
	assert.True(t, IsStale(fetched, fetched.Add(61*time.Minute), AnalysisStaleWindow))
}

func TestValidateMarketPrices(t *testing.T) {
	p := decimal.RequireFromString

	assert.NoError(t, ValidateMarketPrices(p("2.10"), p("3.40"), p("3.60")))

	err := ValidateMarketPrices(p("1.00"), p("8.00"))
	assert.ErrorIs(t, err, ErrInvalidOdds)
	assert.ErrorIs(t, err, oddsmath.ErrPriceTooLow)

	err = ValidateMarketPrices(p("3.00"), p("3.00"), p("3.50"))
	assert.ErrorIs(t, err, ErrInvalidOdds)
	assert.ErrorIs(t, err, oddsmath.ErrNegativeMargin)
}

func TestOddsSnapshot_Prices(t *testing.T) {
	draw := decimal.RequireFromString("3.30")
	s := OddsSnapshot{
		HomeTeam: "Arsenal",
		AwayTeam: "Chelsea",
		HomeOdds: decimal.RequireFromString("2.00"),
		AwayOdds: decimal.RequireFromString("3.80"),
		DrawOdds: &draw,
	}

	assert.Len(t, s.Prices(), 3)
	assert.Equal(t, "Arsenal vs Chelsea", s.MatchName())

	s.DrawOdds = nil
	assert.Len(t, s.Prices(), 2)
}

func TestBet_PotentialPayout(t *testing.T) {
	b := Bet{Stake: decimal.NewFromInt(100), Odds: decimal.RequireFromString("2.10")}
	assert.True(t, b.PotentialPayout().Equal(decimal.NewFromInt(210)))

	b = Bet{Stake: decimal.RequireFromString("10.01"), Odds: decimal.RequireFromString("2.01")}
	assert.Equal(t, "20.12", b.PotentialPayout().String())
}

func TestFitsMoneyScale(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"100", true},
		{"100.5", true},
		{"2.10", true},
		{"2.100", true},
		{"100.005", false},
		{"2.105", false},
		{"0.001", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FitsMoneyScale(decimal.RequireFromString(tt.in)))
		})
	}
}
