package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/cypherlabdev/bet-simulator-service/internal/repository"
	"github.com/cypherlabdev/bet-simulator-service/internal/settlement"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100

	idempotencyTTL = 24 * time.Hour
)

// LedgerServiceImpl implements the LedgerService interface
type LedgerServiceImpl struct {
	db              Database
	walletRepo      repository.WalletRepository
	betRepo         repository.BetRepository
	txnRepo         repository.TransactionRepository
	outboxRepo      repository.OutboxRepository
	idempotencyRepo repository.IdempotencyRepository
	enqueuer        SettlementEnqueuer
	notifier        Notifier
	metrics         *observability.Metrics
	logger          zerolog.Logger
	validator       *validator.Validate
	now             func() time.Time
}

// NewLedgerService creates a new ledger service instance. enqueuer and
// notifier may be nil.
func NewLedgerService(
	db Database,
	walletRepo repository.WalletRepository,
	betRepo repository.BetRepository,
	txnRepo repository.TransactionRepository,
	outboxRepo repository.OutboxRepository,
	idempotencyRepo repository.IdempotencyRepository,
	enqueuer SettlementEnqueuer,
	notifier Notifier,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) LedgerService {
	return &LedgerServiceImpl{
		db:              db,
		walletRepo:      walletRepo,
		betRepo:         betRepo,
		txnRepo:         txnRepo,
		outboxRepo:      outboxRepo,
		idempotencyRepo: idempotencyRepo,
		enqueuer:        enqueuer,
		notifier:        notifier,
		metrics:         metrics,
		logger:          logger.With().Str("component", "ledger_service").Logger(),
		validator:       validator.New(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// InitializeWallet inserts the wallet row on first run and records the
// opening balance as a deposit
func (s *LedgerServiceImpl) InitializeWallet(ctx context.Context, initialBalance decimal.Decimal) (*models.Wallet, error) {
	if initialBalance.IsNegative() || !models.FitsMoneyScale(initialBalance) {
		return nil, models.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now()
	wallet := &models.Wallet{
		ID:             models.WalletID,
		Balance:        initialBalance,
		TotalDeposited: initialBalance,
		TotalWon:       decimal.Zero,
		TotalLost:      decimal.Zero,
		PendingBets:    decimal.Zero,
		UpdatedAt:      now,
	}

	created, err := s.walletRepo.Initialize(ctx, tx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize wallet: %w", err)
	}

	if !created {
		existing, err := s.walletRepo.GetForUpdate(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to load wallet: %w", err)
		}
		s.metrics.WalletBalance.Set(existing.Balance.InexactFloat64())
		s.metrics.PendingBets.Set(existing.PendingBets.InexactFloat64())
		return existing, nil
	}

	if initialBalance.IsPositive() {
		txn := &models.Transaction{
			ID:           uuid.New(),
			Type:         models.TransactionTypeDeposit,
			Amount:       initialBalance,
			BalanceAfter: wallet.Balance,
			Description:  "Initial balance",
			CreatedAt:    now,
		}
		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return nil, fmt.Errorf("failed to record initial deposit: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.WalletBalance.Set(wallet.Balance.InexactFloat64())
	s.metrics.PendingBets.Set(0)

	s.logger.Info().
		Str("balance", wallet.Balance.String()).
		Msg("wallet initialized")

	return wallet, nil
}

// PlaceBet creates a PENDING bet and debits the stake in one transaction
func (s *LedgerServiceImpl) PlaceBet(ctx context.Context, req *PlaceBetRequest) (bet *models.Bet, err error) {
	ctx, span := observability.StartSpan(ctx, "ledger.place_bet",
		attribute.String("event_id", req.EventID),
		attribute.String("sport_key", req.SportKey),
	)
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.metrics.BetPlacementDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	// Validate request
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var requestHash string
	if req.IdempotencyKey != "" {
		requestHash, err = repository.ComputeRequestHash(req)
		if err != nil {
			return nil, fmt.Errorf("failed to compute request hash: %w", err)
		}

		existingID, err := s.idempotencyRepo.Check(ctx, req.IdempotencyKey, requestHash)
		if err != nil {
			if errors.Is(err, models.ErrIdempotencyMismatch) {
				s.logger.Warn().
					Str("idempotency_key", req.IdempotencyKey).
					Msg("idempotency key reused with different request")
				return nil, err
			}
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}

		if existingID != nil {
			existing, err := s.betRepo.GetByID(ctx, *existingID)
			if err != nil {
				return nil, fmt.Errorf("failed to load bet for idempotency key: %w", err)
			}
			s.logger.Info().
				Str("bet_id", existing.ID.String()).
				Str("idempotency_key", req.IdempotencyKey).
				Msg("returning existing bet from idempotency check")
			return existing, nil
		}
	}

	// Start database transaction
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := s.walletRepo.GetForUpdate(ctx, tx)
	if err != nil {
		if errors.Is(err, models.ErrWalletNotInitialized) {
			s.reject("wallet_not_initialized")
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	if err := checkPlacement(wallet, req); err != nil {
		s.reject(rejectReason(err))
		s.logger.Info().Err(err).
			Str("event_id", req.EventID).
			Str("stake", req.Stake.String()).
			Str("odds", req.Odds.String()).
			Str("balance", wallet.Balance.String()).
			Msg("bet rejected")
		return nil, err
	}

	now := s.now()
	bet = &models.Bet{
		ID:             uuid.New(),
		EventID:        req.EventID,
		SportKey:       req.SportKey,
		MatchName:      matchName(req),
		HomeTeam:       req.HomeTeam,
		AwayTeam:       req.AwayTeam,
		Selection:      req.Selection,
		Odds:           req.Odds,
		Stake:          req.Stake,
		Status:         models.BetStatusPending,
		CommenceTime:   req.CommenceTime,
		PlacedAt:       now,
		IdempotencyKey: req.IdempotencyKey,
	}

	if err := s.betRepo.Create(ctx, tx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	wallet.Balance = wallet.Balance.Sub(req.Stake)
	wallet.PendingBets = wallet.PendingBets.Add(req.Stake)
	wallet.UpdatedAt = now
	if err := s.walletRepo.Update(ctx, tx, wallet); err != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	betID := bet.ID
	txn := &models.Transaction{
		ID:           uuid.New(),
		Type:         models.TransactionTypeBetPlaced,
		Amount:       req.Stake.Neg(),
		BetID:        &betID,
		BalanceAfter: wallet.Balance,
		Description:  fmt.Sprintf("Bet on %s @ %s (%s)", bet.Selection, bet.Odds.String(), bet.MatchName),
		CreatedAt:    now,
	}
	if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	outboxEvent := &models.OutboxEvent{
		AggregateID:   bet.ID,
		AggregateType: models.AggregateTypeBet,
		EventType:     models.EventTypeBetPlaced,
		EventPayload: map[string]interface{}{
			"bet_id":           bet.ID.String(),
			"event_id":         bet.EventID,
			"sport_key":        bet.SportKey,
			"match_name":       bet.MatchName,
			"selection":        bet.Selection,
			"stake":            bet.Stake.String(),
			"odds":             bet.Odds.String(),
			"potential_payout": bet.PotentialPayout().String(),
			"balance_after":    wallet.Balance.String(),
			"placed_at":        bet.PlacedAt.Format(time.RFC3339),
		},
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxEvent); err != nil {
		return nil, fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if req.IdempotencyKey != "" {
		if err := s.idempotencyRepo.StoreInTransaction(ctx, tx, req.IdempotencyKey, requestHash, bet.ID, idempotencyTTL); err != nil {
			return nil, fmt.Errorf("failed to store idempotency key: %w", err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		s.metrics.DatabaseErrors.WithLabelValues("place", "commit").Inc()
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.metrics.DatabaseOperationDuration.WithLabelValues("place").Observe(time.Since(start).Seconds())

	// Update metrics
	s.metrics.BetsPlacedTotal.WithLabelValues(bet.SportKey).Inc()
	s.metrics.StakeTotal.Add(bet.Stake.InexactFloat64())
	s.metrics.WalletBalance.Set(wallet.Balance.InexactFloat64())
	s.metrics.PendingBets.Set(wallet.PendingBets.InexactFloat64())

	// Settlement scheduling is best-effort; ResumePending picks up misses at boot
	if s.enqueuer != nil {
		if err := s.enqueuer.Enqueue(ctx, bet); err != nil {
			s.logger.Error().Err(err).
				Str("bet_id", bet.ID.String()).
				Msg("failed to enqueue settlement")
		}
	}

	s.logger.Info().
		Str("bet_id", bet.ID.String()).
		Str("event_id", bet.EventID).
		Str("selection", bet.Selection).
		Str("stake", bet.Stake.String()).
		Str("odds", bet.Odds.String()).
		Msg("bet placed successfully")

	return bet, nil
}

// SettleBet settles a pending bet without recording a score
func (s *LedgerServiceImpl) SettleBet(ctx context.Context, betID uuid.UUID, won bool) (*models.Bet, error) {
	return s.settle(ctx, betID, won, nil)
}

// SettleBetWithScore settles a pending bet and stores the final score
func (s *LedgerServiceImpl) SettleBetWithScore(ctx context.Context, betID uuid.UUID, won bool, finalScore string) (*models.Bet, error) {
	return s.settle(ctx, betID, won, &finalScore)
}

func (s *LedgerServiceImpl) settle(ctx context.Context, betID uuid.UUID, won bool, finalScore *string) (*models.Bet, error) {
	start := time.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	bet, err := s.betRepo.GetByIDForUpdate(ctx, tx, betID)
	if err != nil {
		if errors.Is(err, models.ErrBetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock bet: %w", err)
	}
	if !bet.IsPending() {
		return nil, models.ErrBetAlreadySettled
	}

	wallet, err := s.walletRepo.GetForUpdate(ctx, tx)
	if err != nil {
		if errors.Is(err, models.ErrWalletNotInitialized) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	now := s.now()
	status := models.BetStatusLost
	amount := decimal.Zero
	payout := decimal.Zero
	txnType := models.TransactionTypeBetLost
	description := fmt.Sprintf("Lost bet on %s (%s)", bet.Selection, bet.MatchName)

	if won {
		status = models.BetStatusWon
		payout = bet.PotentialPayout()
		amount = payout
		txnType = models.TransactionTypeBetWon
		description = fmt.Sprintf("Won bet on %s (%s)", bet.Selection, bet.MatchName)
		wallet.Balance = wallet.Balance.Add(payout)
		wallet.TotalWon = wallet.TotalWon.Add(payout)
	} else {
		wallet.TotalLost = wallet.TotalLost.Add(bet.Stake)
	}
	wallet.PendingBets = wallet.PendingBets.Sub(bet.Stake)
	wallet.UpdatedAt = now

	if err := s.betRepo.Settle(ctx, tx, bet.ID, status, now, finalScore); err != nil {
		if errors.Is(err, models.ErrBetAlreadySettled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to settle bet: %w", err)
	}
	bet.Status = status
	bet.SettledAt = &now
	bet.FinalScore = finalScore

	if err := s.walletRepo.Update(ctx, tx, wallet); err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	id := bet.ID
	txn := &models.Transaction{
		ID:           uuid.New(),
		Type:         txnType,
		Amount:       amount,
		BetID:        &id,
		BalanceAfter: wallet.Balance,
		Description:  description,
		CreatedAt:    now,
	}
	if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	payload := map[string]interface{}{
		"bet_id":        bet.ID.String(),
		"event_id":      bet.EventID,
		"status":        string(status),
		"stake":         bet.Stake.String(),
		"payout":        payout.String(),
		"balance_after": wallet.Balance.String(),
		"settled_at":    now.Format(time.RFC3339),
	}
	if finalScore != nil {
		payload["final_score"] = *finalScore
	}
	outboxEvent := &models.OutboxEvent{
		AggregateID:   bet.ID,
		AggregateType: models.AggregateTypeBet,
		EventType:     models.EventTypeBetSettled,
		EventPayload:  payload,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxEvent); err != nil {
		return nil, fmt.Errorf("failed to insert outbox event: %w", err)
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		s.metrics.DatabaseErrors.WithLabelValues("settle", "commit").Inc()
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.metrics.DatabaseOperationDuration.WithLabelValues("settle").Observe(time.Since(start).Seconds())

	// Update metrics
	s.metrics.BetsSettledTotal.WithLabelValues(string(status)).Inc()
	if won {
		s.metrics.PayoutTotal.Add(payout.InexactFloat64())
	}
	s.metrics.WalletBalance.Set(wallet.Balance.InexactFloat64())
	s.metrics.PendingBets.Set(wallet.PendingBets.InexactFloat64())

	if s.notifier != nil {
		s.notifier.NotifySettlement(bet, wallet)
	}

	s.logger.Info().
		Str("bet_id", bet.ID.String()).
		Str("status", string(status)).
		Str("payout", payout.String()).
		Str("balance", wallet.Balance.String()).
		Msg("bet settled successfully")

	return bet, nil
}

// Deposit credits amount to the wallet
func (s *LedgerServiceImpl) Deposit(ctx context.Context, amount decimal.Decimal) (*models.Wallet, error) {
	if !amount.IsPositive() || !models.FitsMoneyScale(amount) {
		return nil, models.ErrInvalidAmount
	}
	start := time.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := s.walletRepo.GetForUpdate(ctx, tx)
	if err != nil {
		if errors.Is(err, models.ErrWalletNotInitialized) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	now := s.now()
	wallet.Balance = wallet.Balance.Add(amount)
	wallet.TotalDeposited = wallet.TotalDeposited.Add(amount)
	wallet.UpdatedAt = now
	if err := s.walletRepo.Update(ctx, tx, wallet); err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	txn := &models.Transaction{
		ID:           uuid.New(),
		Type:         models.TransactionTypeDeposit,
		Amount:       amount,
		BalanceAfter: wallet.Balance,
		Description:  "Deposit",
		CreatedAt:    now,
	}
	if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	outboxEvent := &models.OutboxEvent{
		AggregateID:   txn.ID,
		AggregateType: models.AggregateTypeWallet,
		EventType:     models.EventTypeWalletDeposited,
		EventPayload: map[string]interface{}{
			"transaction_id": txn.ID.String(),
			"amount":         amount.String(),
			"balance_after":  wallet.Balance.String(),
			"deposited_at":   now.Format(time.RFC3339),
		},
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxEvent); err != nil {
		return nil, fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.metrics.DatabaseErrors.WithLabelValues("deposit", "commit").Inc()
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.metrics.DatabaseOperationDuration.WithLabelValues("deposit").Observe(time.Since(start).Seconds())

	s.metrics.DepositsTotal.Inc()
	s.metrics.WalletBalance.Set(wallet.Balance.InexactFloat64())

	s.logger.Info().
		Str("amount", amount.String()).
		Str("balance", wallet.Balance.String()).
		Msg("deposit recorded")

	return wallet, nil
}

// GetWallet returns the current wallet
func (s *LedgerServiceImpl) GetWallet(ctx context.Context) (*models.Wallet, error) {
	return s.walletRepo.Get(ctx)
}

// GetBet retrieves a single bet by ID
func (s *LedgerServiceImpl) GetBet(ctx context.Context, betID uuid.UUID) (*models.Bet, error) {
	return s.betRepo.GetByID(ctx, betID)
}

// ListBets retrieves bets with pagination
func (s *LedgerServiceImpl) ListBets(ctx context.Context, status *models.BetStatus, limit, offset int) ([]*models.Bet, error) {
	limit, offset = normalizePage(limit, offset)
	return s.betRepo.List(ctx, status, limit, offset)
}

// ListPendingBets returns every PENDING bet, oldest first
func (s *LedgerServiceImpl) ListPendingBets(ctx context.Context) ([]*models.Bet, error) {
	return s.betRepo.ListPending(ctx)
}

// ListTransactions retrieves the audit log with pagination
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	limit, offset = normalizePage(limit, offset)
	return s.txnRepo.List(ctx, limit, offset)
}

func (s *LedgerServiceImpl) reject(reason string) {
	s.metrics.BetsRejectedTotal.WithLabelValues(reason).Inc()
}

// checkPlacement applies the placement preconditions in order; the first
// failure wins
func checkPlacement(wallet *models.Wallet, req *PlaceBetRequest) error {
	if req.Stake.GreaterThan(wallet.Balance) {
		return fmt.Errorf("%w: stake %s exceeds balance %s", models.ErrInsufficientBalance, req.Stake, wallet.Balance)
	}
	if !req.Stake.IsPositive() {
		return models.ErrInvalidStake
	}
	if !models.FitsMoneyScale(req.Stake) {
		return fmt.Errorf("%w: stake %s has more than %d decimal places", models.ErrInvalidStake, req.Stake, models.MoneyPlaces)
	}
	if req.Odds.LessThanOrEqual(decimal.NewFromInt(1)) {
		return models.ErrInvalidOdds
	}
	if !models.FitsMoneyScale(req.Odds) {
		return fmt.Errorf("%w: odds %s have more than %d decimal places", models.ErrInvalidOdds, req.Odds, models.MoneyPlaces)
	}
	return checkSelection(req)
}

// checkSelection rejects selections that can never win
func checkSelection(req *PlaceBetRequest) error {
	switch settlement.NormalizeSelection(req.Selection, req.HomeTeam, req.AwayTeam) {
	case "":
		return fmt.Errorf("%w: %q is neither a side nor a team in %s", models.ErrInvalidSelection, req.Selection, matchName(req))
	case models.SelectionDraw:
		if req.TwoWay {
			return fmt.Errorf("%w: no draw on a two-way market", models.ErrInvalidSelection)
		}
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, models.ErrInvalidStake):
		return "invalid_stake"
	case errors.Is(err, models.ErrInvalidOdds):
		return "invalid_odds"
	case errors.Is(err, models.ErrInvalidSelection):
		return "invalid_selection"
	default:
		return "other"
	}
}

func matchName(req *PlaceBetRequest) string {
	if req.MatchName != "" {
		return req.MatchName
	}
	return req.HomeTeam + " vs " + req.AwayTeam
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
