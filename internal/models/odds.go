package models

import (
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/pkg/oddsmath"
	"github.com/shopspring/decimal"
)

// Freshness windows per data class
const (
	MarketStaleWindow   = 15 * time.Minute
	AnalysisStaleWindow = time.Hour
)

// IsStale reports whether data fetched at lastFetch is older than window.
// An age exactly equal to the window is still fresh.
func IsStale(lastFetch, now time.Time, window time.Duration) bool {
	return now.Sub(lastFetch) > window
}

// BookmakerOdds holds one bookmaker's head-to-head prices for an event
type BookmakerOdds struct {
	Key        string           `json:"key"`
	Title      string           `json:"title"`
	LastUpdate time.Time        `json:"last_update"`
	Home       decimal.Decimal  `json:"home"`
	Away       decimal.Decimal  `json:"away"`
	Draw       *decimal.Decimal `json:"draw,omitempty"`
}

// Prices returns the outcome prices in home, away, draw order
func (b BookmakerOdds) Prices() []decimal.Decimal {
	return outcomePrices(b.Home, b.Away, b.Draw)
}

// OddsSnapshot is the cached view of one sporting event
type OddsSnapshot struct {
	EventID      string           `json:"event_id"`
	SportKey     string           `json:"sport_key"`
	SportTitle   string           `json:"sport_title"`
	HomeTeam     string           `json:"home_team"`
	AwayTeam     string           `json:"away_team"`
	CommenceTime time.Time        `json:"commence_time"`
	HomeOdds     decimal.Decimal  `json:"home_odds"`
	AwayOdds     decimal.Decimal  `json:"away_odds"`
	DrawOdds     *decimal.Decimal `json:"draw_odds,omitempty"` // nil for two-way sports
	Bookmakers   []BookmakerOdds  `json:"bookmakers"`
	CachedAt     time.Time        `json:"cached_at"`
}

// MatchName returns "Home vs Away"
func (s *OddsSnapshot) MatchName() string {
	return fmt.Sprintf("%s vs %s", s.HomeTeam, s.AwayTeam)
}

// Prices returns the consensus outcome prices in home, away, draw order
func (s *OddsSnapshot) Prices() []decimal.Decimal {
	return outcomePrices(s.HomeOdds, s.AwayOdds, s.DrawOdds)
}

// SportCacheMetadata records when a sport was last fetched
type SportCacheMetadata struct {
	SportKey      string    `json:"sport_key"`
	LastFetchTime time.Time `json:"last_fetch_time"`
	EventCount    int       `json:"event_count"`
}

// ValidateMarketPrices rejects an odds set where any price is <= 1.0 or where
// the implied probabilities sum below 1.0.
func ValidateMarketPrices(prices ...decimal.Decimal) error {
	if err := oddsmath.CheckBook(prices...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOdds, err)
	}
	return nil
}

func outcomePrices(home, away decimal.Decimal, draw *decimal.Decimal) []decimal.Decimal {
	prices := []decimal.Decimal{home, away}
	if draw != nil {
		prices = append(prices, *draw)
	}
	return prices
}
