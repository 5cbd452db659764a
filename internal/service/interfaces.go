package service

import (
	"context"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Database is the transaction entry point shared by the ledger repositories.
// Satisfied by *pgxpool.Pool, *repository.MemoryLedger and pgxmock pools.
type Database interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LedgerService defines the business logic interface for the wallet and bets
type LedgerService interface {
	// InitializeWallet creates the wallet on first run. It is a no-op when
	// the wallet already exists.
	InitializeWallet(ctx context.Context, initialBalance decimal.Decimal) (*models.Wallet, error)

	// PlaceBet debits the stake and records a PENDING bet atomically
	// Returns the stored bet if the idempotency key was already used for the same request
	PlaceBet(ctx context.Context, req *PlaceBetRequest) (*models.Bet, error)

	// SettleBet moves a PENDING bet to WON or LOST and credits winnings
	SettleBet(ctx context.Context, betID uuid.UUID, won bool) (*models.Bet, error)

	// SettleBetWithScore is SettleBet that also records the final score
	SettleBetWithScore(ctx context.Context, betID uuid.UUID, won bool, finalScore string) (*models.Bet, error)

	// Deposit credits the wallet
	Deposit(ctx context.Context, amount decimal.Decimal) (*models.Wallet, error)

	GetWallet(ctx context.Context) (*models.Wallet, error)
	GetBet(ctx context.Context, betID uuid.UUID) (*models.Bet, error)

	// ListBets returns bets newest first, optionally filtered by status
	ListBets(ctx context.Context, status *models.BetStatus, limit, offset int) ([]*models.Bet, error)

	// ListPendingBets returns every bet still awaiting settlement
	ListPendingBets(ctx context.Context) ([]*models.Bet, error)

	// ListTransactions returns the wallet audit log newest first
	ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error)
}

// SettlementEnqueuer schedules the settlement job of a newly placed bet
type SettlementEnqueuer interface {
	Enqueue(ctx context.Context, bet *models.Bet) error
}

// Notifier pushes settlement results to connected clients
type Notifier interface {
	NotifySettlement(bet *models.Bet, wallet *models.Wallet)
}

// PlaceBetRequest represents the request to place a bet. Stake, odds and
// selection are checked inside the transaction, not by the validator.
// TwoWay marks a market without a draw price, on which DRAW cannot win.
type PlaceBetRequest struct {
	EventID        string          `json:"event_id" validate:"required"`
	SportKey       string          `json:"sport_key" validate:"required"`
	MatchName      string          `json:"match_name"`
	HomeTeam       string          `json:"home_team" validate:"required"`
	AwayTeam       string          `json:"away_team" validate:"required"`
	Selection      string          `json:"selection" validate:"required"`
	Odds           decimal.Decimal `json:"odds"`
	Stake          decimal.Decimal `json:"stake"`
	CommenceTime   time.Time       `json:"commence_time"`
	TwoWay         bool            `json:"two_way"`
	IdempotencyKey string          `json:"-"`
}
