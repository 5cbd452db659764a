package repository

import (
	"context"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines data access for the singleton wallet
type WalletRepository interface {
	// Initialize inserts the wallet row if it does not exist yet
	// MUST be called within a transaction
	// Returns true if the row was created by this call
	Initialize(ctx context.Context, tx pgx.Tx, wallet *models.Wallet) (bool, error)

	// Get retrieves the wallet
	// Returns ErrWalletNotInitialized if the row doesn't exist
	Get(ctx context.Context) (*models.Wallet, error)

	// GetForUpdate retrieves the wallet with FOR UPDATE lock
	// MUST be called within a transaction
	// Returns ErrWalletNotInitialized if the row doesn't exist
	GetForUpdate(ctx context.Context, tx pgx.Tx) (*models.Wallet, error)

	// Update writes balances back with optimistic locking
	// MUST be called within a transaction
	// Returns ErrOptimisticLock if version mismatch
	Update(ctx context.Context, tx pgx.Tx, wallet *models.Wallet) error
}

// BetRepository defines data access for bets
type BetRepository interface {
	// Create inserts a new bet
	// MUST be called within a transaction
	Create(ctx context.Context, tx pgx.Tx, bet *models.Bet) error

	// GetByID retrieves a bet by ID
	// Returns ErrBetNotFound if bet doesn't exist
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bet, error)

	// GetByIDForUpdate retrieves a bet with FOR UPDATE lock
	// MUST be called within a transaction
	// Returns ErrBetNotFound if bet doesn't exist
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Bet, error)

	// Settle moves a PENDING bet to WON or LOST
	// MUST be called within a transaction
	// Returns ErrBetAlreadySettled if the bet is no longer PENDING
	Settle(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.BetStatus, settledAt time.Time, finalScore *string) error

	// List returns bets newest first, optionally filtered by status
	List(ctx context.Context, status *models.BetStatus, limit, offset int) ([]*models.Bet, error)

	// ListPending returns every PENDING bet, oldest first
	ListPending(ctx context.Context) ([]*models.Bet, error)
}

// TransactionRepository defines data access for the append-only wallet audit log
type TransactionRepository interface {
	// Create appends a transaction record
	// MUST be called within a transaction
	Create(ctx context.Context, tx pgx.Tx, txn *models.Transaction) error

	// List returns transaction records newest first
	List(ctx context.Context, limit, offset int) ([]*models.Transaction, error)
}
