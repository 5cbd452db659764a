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
)

const settlementJobColumns = `
	job_key, bet_id, event_id, sport_key, requires_network, run_at,
	attempts, generation, last_error, created_at, updated_at
`

// PostgresSettlementQueue is a durable delayed-job queue keyed by job_key.
// Scheduling an existing key replaces it; claims use SKIP LOCKED so several
// workers can poll the same table.
type PostgresSettlementQueue struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresSettlementQueue creates a new PostgreSQL settlement queue
func NewPostgresSettlementQueue(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresSettlementQueue {
	return &PostgresSettlementQueue{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_settlement_queue").Logger(),
	}
}

// Schedule inserts or replaces the job for key, visible after delay
func (q *PostgresSettlementQueue) Schedule(ctx context.Context, key string, delay time.Duration, constraints models.JobConstraints, payload models.SettlementPayload) error {
	query := `
		INSERT INTO settlement_jobs (
			job_key, bet_id, event_id, sport_key, requires_network, run_at,
			attempts, generation, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 1, NOW(), NOW())
		ON CONFLICT (job_key) DO UPDATE
		SET bet_id = EXCLUDED.bet_id,
		    event_id = EXCLUDED.event_id,
		    sport_key = EXCLUDED.sport_key,
		    requires_network = EXCLUDED.requires_network,
		    run_at = EXCLUDED.run_at,
		    attempts = 0,
		    generation = settlement_jobs.generation + 1,
		    last_error = NULL,
		    updated_at = NOW()
	`

	if delay < 0 {
		delay = 0
	}
	runAt := time.Now().Add(delay)

	_, err := q.pool.Exec(ctx, query,
		key,
		payload.BetID,
		payload.EventID,
		payload.SportKey,
		constraints.RequiresNetwork,
		runAt,
	)
	if err != nil {
		q.logger.Error().Err(err).
			Str("job_key", key).
			Msg("failed to schedule settlement job")
		return fmt.Errorf("schedule settlement job: %w", err)
	}

	q.logger.Debug().
		Str("job_key", key).
		Time("run_at", runAt).
		Msg("settlement job scheduled")

	return nil
}

// ClaimDue leases up to limit visible jobs by pushing their run_at forward
func (q *PostgresSettlementQueue) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.SettlementJob, error) {
	query := `
		UPDATE settlement_jobs
		SET run_at = $2, updated_at = NOW()
		WHERE job_key IN (
			SELECT job_key FROM settlement_jobs
			WHERE run_at <= $1
			ORDER BY run_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + settlementJobColumns

	rows, err := q.pool.Query(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		q.logger.Error().Err(err).Msg("failed to claim settlement jobs")
		return nil, fmt.Errorf("claim settlement jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.SettlementJob, 0)
	for rows.Next() {
		job, err := scanSettlementJob(rows)
		if err != nil {
			q.logger.Error().Err(err).Msg("failed to scan settlement job")
			return nil, fmt.Errorf("scan settlement job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return jobs, nil
}

// Complete deletes the job if it still carries generation
func (q *PostgresSettlementQueue) Complete(ctx context.Context, key string, generation int64) error {
	result, err := q.pool.Exec(ctx,
		`DELETE FROM settlement_jobs WHERE job_key = $1 AND generation = $2`,
		key, generation,
	)
	if err != nil {
		q.logger.Error().Err(err).
			Str("job_key", key).
			Msg("failed to complete settlement job")
		return fmt.Errorf("complete settlement job: %w", err)
	}

	if result.RowsAffected() == 0 {
		q.logger.Debug().
			Str("job_key", key).
			Int64("generation", generation).
			Msg("settlement job replaced before completion")
	}

	return nil
}

// RetryLater records a failed attempt and hides the job for delay
func (q *PostgresSettlementQueue) RetryLater(ctx context.Context, key string, generation int64, delay time.Duration, errMsg string) error {
	query := `
		UPDATE settlement_jobs
		SET attempts = attempts + 1, run_at = $3, last_error = $4, updated_at = NOW()
		WHERE job_key = $1 AND generation = $2
	`

	result, err := q.pool.Exec(ctx, query, key, generation, time.Now().Add(delay), errMsg)
	if err != nil {
		q.logger.Error().Err(err).
			Str("job_key", key).
			Msg("failed to record settlement retry")
		return fmt.Errorf("record settlement retry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrStaleJob
	}

	return nil
}

// Get retrieves a job by key
func (q *PostgresSettlementQueue) Get(ctx context.Context, key string) (*models.SettlementJob, error) {
	query := `SELECT ` + settlementJobColumns + ` FROM settlement_jobs WHERE job_key = $1`

	job, err := scanSettlementJob(q.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("get settlement job: %w", err)
	}
	return job, nil
}

func scanSettlementJob(row pgx.Row) (*models.SettlementJob, error) {
	var job models.SettlementJob

	err := row.Scan(
		&job.Key,
		&job.Payload.BetID,
		&job.Payload.EventID,
		&job.Payload.SportKey,
		&job.Constraints.RequiresNetwork,
		&job.RunAt,
		&job.Attempts,
		&job.Generation,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
