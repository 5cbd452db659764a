package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const walletColumns = `
	id, balance::TEXT, total_deposited::TEXT, total_won::TEXT, total_lost::TEXT,
	pending_bets::TEXT, updated_at, version
`

// PostgresWalletRepository implements WalletRepository using PostgreSQL.
// The wallet table carries CHECK (id = 1) so a second row can never exist.
type PostgresWalletRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresWalletRepository creates a new PostgreSQL wallet repository
func NewPostgresWalletRepository(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresWalletRepository {
	return &PostgresWalletRepository{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_wallet_repository").Logger(),
	}
}

// Initialize inserts the wallet row if it does not exist yet
func (r *PostgresWalletRepository) Initialize(ctx context.Context, tx pgx.Tx, wallet *models.Wallet) (bool, error) {
	query := `
		INSERT INTO wallet (id, balance, total_deposited, total_won, total_lost, pending_bets, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		ON CONFLICT (id) DO NOTHING
	`

	wallet.ID = models.WalletID
	wallet.UpdatedAt = time.Now()
	wallet.Version = 1

	result, err := tx.Exec(ctx, query,
		wallet.ID,
		wallet.Balance.String(),
		wallet.TotalDeposited.String(),
		wallet.TotalWon.String(),
		wallet.TotalLost.String(),
		wallet.PendingBets.String(),
		wallet.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to initialize wallet")
		return false, fmt.Errorf("initialize wallet: %w", err)
	}

	created := result.RowsAffected() == 1
	if created {
		r.logger.Info().
			Str("balance", wallet.Balance.String()).
			Msg("wallet initialized")
	}

	return created, nil
}

// Get retrieves the wallet
func (r *PostgresWalletRepository) Get(ctx context.Context) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet WHERE id = $1`
	return r.scanWallet(r.pool.QueryRow(ctx, query, models.WalletID))
}

// GetForUpdate retrieves the wallet with a row lock
func (r *PostgresWalletRepository) GetForUpdate(ctx context.Context, tx pgx.Tx) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet WHERE id = $1 FOR UPDATE`
	return r.scanWallet(tx.QueryRow(ctx, query, models.WalletID))
}

// Update writes balances back with optimistic locking
func (r *PostgresWalletRepository) Update(ctx context.Context, tx pgx.Tx, wallet *models.Wallet) error {
	query := `
		UPDATE wallet
		SET balance = $1, total_deposited = $2, total_won = $3, total_lost = $4,
		    pending_bets = $5, updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8
	`

	if wallet.Balance.IsNegative() {
		return fmt.Errorf("update wallet: %w", models.ErrInsufficientBalance)
	}

	now := time.Now()
	result, err := tx.Exec(ctx, query,
		wallet.Balance.String(),
		wallet.TotalDeposited.String(),
		wallet.TotalWon.String(),
		wallet.TotalLost.String(),
		wallet.PendingBets.String(),
		now,
		models.WalletID,
		wallet.Version,
	)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to update wallet")
		return fmt.Errorf("update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		r.logger.Warn().
			Int64("version", wallet.Version).
			Msg("optimistic lock failure on wallet update")
		return models.ErrOptimisticLock
	}

	wallet.UpdatedAt = now
	wallet.Version++

	r.logger.Debug().
		Str("balance", wallet.Balance.String()).
		Str("pending_bets", wallet.PendingBets.String()).
		Msg("wallet updated")

	return nil
}

// scanWallet scans a wallet row
func (r *PostgresWalletRepository) scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	var balance, deposited, won, lost, pending string

	err := row.Scan(&w.ID, &balance, &deposited, &won, &lost, &pending, &w.UpdatedAt, &w.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrWalletNotInitialized
		}
		r.logger.Error().Err(err).Msg("failed to scan wallet")
		return nil, fmt.Errorf("scan wallet: %w", err)
	}

	amounts := []struct {
		dst *decimal.Decimal
		src string
		col string
	}{
		{&w.Balance, balance, "balance"},
		{&w.TotalDeposited, deposited, "total_deposited"},
		{&w.TotalWon, won, "total_won"},
		{&w.TotalLost, lost, "total_lost"},
		{&w.PendingBets, pending, "pending_bets"},
	}
	for _, a := range amounts {
		v, err := decimal.NewFromString(a.src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", a.col, err)
		}
		*a.dst = v
	}

	return &w, nil
}
