package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletID is the primary key of the only wallet row
const WalletID = 1

// MoneyPlaces is the decimal scale of every stored amount and price
const MoneyPlaces = 2

// FitsMoneyScale reports whether d is representable in MoneyPlaces without
// rounding. Trailing zeros beyond the scale are fine.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyPlaces))
}

// Wallet is the singleton virtual bankroll
type Wallet struct {
	ID             int             `json:"id"`
	Balance        decimal.Decimal `json:"balance"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalWon       decimal.Decimal `json:"total_won"`
	TotalLost      decimal.Decimal `json:"total_lost"`
	PendingBets    decimal.Decimal `json:"pending_bets"` // Sum of PENDING stakes
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int64           `json:"version"`
}

// TransactionType classifies a wallet audit record
type TransactionType string

const (
	TransactionTypeDeposit   TransactionType = "DEPOSIT"
	TransactionTypeBetPlaced TransactionType = "BET_PLACED"
	TransactionTypeBetWon    TransactionType = "BET_WON"
	TransactionTypeBetLost   TransactionType = "BET_LOST"
)

// Transaction is an append-only wallet audit record
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"` // Signed: debits are negative
	BetID        *uuid.UUID      `json:"bet_id,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Clone returns a copy safe to mutate independently
func (w *Wallet) Clone() *Wallet {
	c := *w
	return &c
}
