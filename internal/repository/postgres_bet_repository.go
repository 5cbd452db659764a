package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const betColumns = `
	id, event_id, sport_key, match_name, home_team, away_team, selection,
	odds::TEXT, stake::TEXT, status, commence_time, placed_at, settled_at,
	final_score, idempotency_key
`

// PostgresBetRepository implements BetRepository using PostgreSQL
type PostgresBetRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresBetRepository creates a new PostgreSQL bet repository
func NewPostgresBetRepository(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresBetRepository {
	return &PostgresBetRepository{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_bet_repository").Logger(),
	}
}

// Create inserts a new bet
func (r *PostgresBetRepository) Create(ctx context.Context, tx pgx.Tx, bet *models.Bet) error {
	query := `
		INSERT INTO bets (
			id, event_id, sport_key, match_name, home_team, away_team, selection,
			odds, stake, status, commence_time, placed_at, idempotency_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if bet.ID == uuid.Nil {
		bet.ID = uuid.New()
	}
	if bet.PlacedAt.IsZero() {
		bet.PlacedAt = time.Now()
	}
	if bet.Status == "" {
		bet.Status = models.BetStatusPending
	}

	_, err := tx.Exec(ctx, query,
		bet.ID,
		bet.EventID,
		bet.SportKey,
		bet.MatchName,
		bet.HomeTeam,
		bet.AwayTeam,
		bet.Selection,
		bet.Odds.String(),
		bet.Stake.String(),
		bet.Status,
		bet.CommenceTime,
		bet.PlacedAt,
		bet.IdempotencyKey,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			r.logger.Debug().
				Str("bet_id", bet.ID.String()).
				Msg("bet already exists")
			return fmt.Errorf("duplicate bet: %w", err)
		}
		r.logger.Error().Err(err).
			Str("bet_id", bet.ID.String()).
			Str("event_id", bet.EventID).
			Msg("failed to create bet")
		return fmt.Errorf("create bet: %w", err)
	}

	r.logger.Info().
		Str("bet_id", bet.ID.String()).
		Str("event_id", bet.EventID).
		Str("selection", bet.Selection).
		Str("odds", bet.Odds.String()).
		Str("stake", bet.Stake.String()).
		Msg("bet created")

	return nil
}

// GetByID retrieves a bet by ID
func (r *PostgresBetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1`
	return r.scanBet(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a bet with a row lock
func (r *PostgresBetRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1 FOR UPDATE`
	return r.scanBet(tx.QueryRow(ctx, query, id))
}

// Settle moves a PENDING bet to its terminal status
func (r *PostgresBetRepository) Settle(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.BetStatus, settledAt time.Time, finalScore *string) error {
	query := `
		UPDATE bets
		SET status = $1, settled_at = $2, final_score = $3
		WHERE id = $4 AND status = $5
	`

	result, err := tx.Exec(ctx, query, status, settledAt, finalScore, id, models.BetStatusPending)
	if err != nil {
		r.logger.Error().Err(err).
			Str("bet_id", id.String()).
			Str("status", string(status)).
			Msg("failed to settle bet")
		return fmt.Errorf("settle bet: %w", err)
	}

	if result.RowsAffected() == 0 {
		r.logger.Warn().
			Str("bet_id", id.String()).
			Msg("bet not found or no longer pending")
		return models.ErrBetAlreadySettled
	}

	r.logger.Info().
		Str("bet_id", id.String()).
		Str("status", string(status)).
		Msg("bet settled")

	return nil
}

// List returns bets newest first, optionally filtered by status
func (r *PostgresBetRepository) List(ctx context.Context, status *models.BetStatus, limit, offset int) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE ($1::TEXT IS NULL OR status = $1)
		ORDER BY placed_at DESC
		LIMIT $2 OFFSET $3
	`

	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}

	rows, err := r.pool.Query(ctx, query, filter, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query bets")
		return nil, fmt.Errorf("query bets: %w", err)
	}
	defer rows.Close()

	return r.scanBets(rows)
}

// ListPending returns every PENDING bet, oldest first
func (r *PostgresBetRepository) ListPending(ctx context.Context) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE status = $1
		ORDER BY placed_at ASC
	`

	rows, err := r.pool.Query(ctx, query, models.BetStatusPending)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query pending bets")
		return nil, fmt.Errorf("query pending bets: %w", err)
	}
	defer rows.Close()

	return r.scanBets(rows)
}

// scanBet scans a single bet from a row
func (r *PostgresBetRepository) scanBet(row pgx.Row) (*models.Bet, error) {
	bet, err := scanBetRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBetNotFound
		}
		r.logger.Error().Err(err).Msg("failed to scan bet")
		return nil, fmt.Errorf("scan bet: %w", err)
	}
	return bet, nil
}

// scanBets scans multiple bets from rows
func (r *PostgresBetRepository) scanBets(rows pgx.Rows) ([]*models.Bet, error) {
	bets := make([]*models.Bet, 0)

	for rows.Next() {
		bet, err := scanBetRow(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan bet")
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("rows error")
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return bets, nil
}

func scanBetRow(row pgx.Row) (*models.Bet, error) {
	var bet models.Bet
	var oddsStr, stakeStr string

	err := row.Scan(
		&bet.ID,
		&bet.EventID,
		&bet.SportKey,
		&bet.MatchName,
		&bet.HomeTeam,
		&bet.AwayTeam,
		&bet.Selection,
		&oddsStr,
		&stakeStr,
		&bet.Status,
		&bet.CommenceTime,
		&bet.PlacedAt,
		&bet.SettledAt,
		&bet.FinalScore,
		&bet.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	bet.Odds, err = decimal.NewFromString(oddsStr)
	if err != nil {
		return nil, fmt.Errorf("parse odds: %w", err)
	}

	bet.Stake, err = decimal.NewFromString(stakeStr)
	if err != nil {
		return nil, fmt.Errorf("parse stake: %w", err)
	}

	return &bet, nil
}
