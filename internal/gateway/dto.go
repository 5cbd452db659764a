package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketH2H is the head-to-head market key
const MarketH2H = "h2h"

// OutcomeDraw is the outcome name the provider uses for a draw
const OutcomeDraw = "Draw"

// Event is one entry of the odds endpoint response
type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker is a bookmaker's set of markets for an event
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market returns the bookmaker's market with the given key
func (b Bookmaker) Market(key string) (Market, bool) {
	for _, m := range b.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return Market{}, false
}

// Market is a priced market such as h2h
type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Outcome is a single priced selection
type Outcome struct {
	Name  string           `json:"name"`
	Price decimal.Decimal  `json:"price"`
	Point *decimal.Decimal `json:"point,omitempty"`
}

// ScoreEvent is one entry of the scores endpoint response
type ScoreEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	Completed    bool        `json:"completed"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Scores       []TeamScore `json:"scores"` // nil until the match is reported
	LastUpdate   *time.Time  `json:"last_update"`
}

// TeamScore is a team's reported score. The provider sends it as a string.
type TeamScore struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// ScoreFor returns the raw score reported for team
func (e ScoreEvent) ScoreFor(team string) (string, bool) {
	for _, s := range e.Scores {
		if s.Name == team {
			return s.Score, true
		}
	}
	return "", false
}
