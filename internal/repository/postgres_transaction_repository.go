package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PostgresTransactionRepository implements TransactionRepository using PostgreSQL.
// The table only ever receives INSERTs.
type PostgresTransactionRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresTransactionRepository creates a new PostgreSQL transaction repository
func NewPostgresTransactionRepository(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_transaction_repository").Logger(),
	}
}

// Create appends a transaction record
func (r *PostgresTransactionRepository) Create(ctx context.Context, tx pgx.Tx, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, amount, bet_id, balance_after, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	_, err := tx.Exec(ctx, query,
		txn.ID,
		txn.Type,
		txn.Amount.String(),
		txn.BetID,
		txn.BalanceAfter.String(),
		txn.Description,
		txn.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).
			Str("type", string(txn.Type)).
			Msg("failed to create transaction record")
		return fmt.Errorf("create transaction: %w", err)
	}

	r.logger.Debug().
		Str("transaction_id", txn.ID.String()).
		Str("type", string(txn.Type)).
		Str("amount", txn.Amount.String()).
		Msg("transaction recorded")

	return nil
}

// List returns transaction records newest first
func (r *PostgresTransactionRepository) List(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT id, type, amount::TEXT, bet_id, balance_after::TEXT, description, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query transactions")
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]*models.Transaction, 0)
	for rows.Next() {
		var txn models.Transaction
		var amountStr, balanceStr string

		if err := rows.Scan(
			&txn.ID,
			&txn.Type,
			&amountStr,
			&txn.BetID,
			&balanceStr,
			&txn.Description,
			&txn.CreatedAt,
		); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan transaction")
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		if txn.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		if txn.BalanceAfter, err = decimal.NewFromString(balanceStr); err != nil {
			return nil, fmt.Errorf("parse balance_after: %w", err)
		}

		txns = append(txns, &txn)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("rows error")
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return txns, nil
}
