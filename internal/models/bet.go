package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BetStatus represents the lifecycle state of a bet
type BetStatus string

const (
	BetStatusPending BetStatus = "PENDING" // Waiting for a final score
	BetStatusWon     BetStatus = "WON"
	BetStatusLost    BetStatus = "LOST"
)

// Selection literals understood by settlement
const (
	SelectionHome = "HOME"
	SelectionAway = "AWAY"
	SelectionDraw = "DRAW"
)

// Bet represents a single simulated wager
type Bet struct {
	ID             uuid.UUID       `json:"id"`
	EventID        string          `json:"event_id"`
	SportKey       string          `json:"sport_key"`
	MatchName      string          `json:"match_name"`
	HomeTeam       string          `json:"home_team"`
	AwayTeam       string          `json:"away_team"`
	Selection      string          `json:"selection"` // HOME, AWAY, DRAW or a team name
	Odds           decimal.Decimal `json:"odds"`
	Stake          decimal.Decimal `json:"stake"`
	Status         BetStatus       `json:"status"`
	CommenceTime   time.Time       `json:"commence_time"`
	PlacedAt       time.Time       `json:"placed_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	FinalScore     *string         `json:"final_score,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// PotentialPayout returns stake * odds rounded to MoneyPlaces
func (b *Bet) PotentialPayout() decimal.Decimal {
	return b.Stake.Mul(b.Odds).Round(MoneyPlaces)
}

// IsPending returns true while the bet awaits settlement
func (b *Bet) IsPending() bool {
	return b.Status == BetStatusPending
}
