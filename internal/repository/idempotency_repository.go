package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// IdempotencyRepository maps client idempotency keys to the bet they created
type IdempotencyRepository interface {
	// Check looks up a live key
	// Returns the bet ID when the key exists with the same request hash
	// Returns ErrIdempotencyMismatch if the key exists with a different hash
	Check(ctx context.Context, key string, requestHash string) (betID *uuid.UUID, err error)

	// StoreInTransaction records the key for a newly created bet
	// MUST be called within a transaction
	StoreInTransaction(ctx context.Context, tx pgx.Tx, key string, requestHash string, betID uuid.UUID, ttl time.Duration) error

	// CleanupExpired removes expired keys
	CleanupExpired(ctx context.Context) (int64, error)
}

// PostgresIdempotencyRepository implements IdempotencyRepository using PostgreSQL
type PostgresIdempotencyRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresIdempotencyRepository creates a new PostgreSQL idempotency repository
func NewPostgresIdempotencyRepository(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresIdempotencyRepository {
	return &PostgresIdempotencyRepository{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_idempotency_repository").Logger(),
	}
}

// Check looks up a live key
func (r *PostgresIdempotencyRepository) Check(ctx context.Context, key string, requestHash string) (*uuid.UUID, error) {
	query := `
		SELECT request_hash, bet_id
		FROM idempotency_keys
		WHERE idempotency_key = $1 AND expires_at > NOW()
	`

	var storedHash string
	var betID uuid.UUID

	err := r.pool.QueryRow(ctx, query, key).Scan(&storedHash, &betID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).
			Str("key", key).
			Msg("failed to check idempotency key")
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}

	if storedHash != requestHash {
		r.logger.Warn().
			Str("key", key).
			Msg("idempotency key hash mismatch")
		return nil, models.ErrIdempotencyMismatch
	}

	return &betID, nil
}

// StoreInTransaction records the key for a newly created bet
func (r *PostgresIdempotencyRepository) StoreInTransaction(ctx context.Context, tx pgx.Tx, key string, requestHash string, betID uuid.UUID, ttl time.Duration) error {
	query := `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, bet_id, created_at, expires_at)
		VALUES ($1, $2, $3, NOW(), NOW() + $4::interval)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
		    bet_id = EXCLUDED.bet_id,
		    expires_at = EXCLUDED.expires_at
	`

	if _, err := tx.Exec(ctx, query, key, requestHash, betID, ttl.String()); err != nil {
		r.logger.Error().Err(err).
			Str("key", key).
			Msg("failed to store idempotency key in transaction")
		return fmt.Errorf("store idempotency key: %w", err)
	}

	return nil
}

// CleanupExpired removes expired keys
func (r *PostgresIdempotencyRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < NOW()`)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to cleanup expired idempotency keys")
		return 0, fmt.Errorf("cleanup expired idempotency keys: %w", err)
	}

	deleted := result.RowsAffected()
	if deleted > 0 {
		r.logger.Info().
			Int64("deleted_count", deleted).
			Msg("cleaned up expired idempotency keys")
	}

	return deleted, nil
}

// ComputeRequestHash computes a SHA-256 hash of the JSON form of a request
func ComputeRequestHash(requestData interface{}) (string, error) {
	requestJSON, err := json.Marshal(requestData)
	if err != nil {
		return "", fmt.Errorf("marshal request data: %w", err)
	}

	hash := sha256.Sum256(requestJSON)
	return hex.EncodeToString(hash[:]), nil
}
