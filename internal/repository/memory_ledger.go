package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MemoryLedger is an in-process ledger store with the same transactional
// contract as the PostgreSQL repositories. Transactions are serialized and
// work on a staged copy of the state that replaces the committed state only
// on Commit, so a rolled back transaction leaves no trace.
type MemoryLedger struct {
	txMu  sync.Mutex   // held for the lifetime of a transaction or non-tx write
	mu    sync.RWMutex // guards state
	state *ledgerState
}

type idempotencyEntry struct {
	requestHash string
	betID       uuid.UUID
	expiresAt   time.Time
}

type ledgerState struct {
	wallet       *models.Wallet
	bets         map[uuid.UUID]*models.Bet
	transactions []*models.Transaction
	outbox       []*models.OutboxEvent
	idempotency  map[string]idempotencyEntry
}

func (s *ledgerState) clone() *ledgerState {
	c := &ledgerState{
		bets:         make(map[uuid.UUID]*models.Bet, len(s.bets)),
		transactions: slices.Clone(s.transactions),
		outbox:       slices.Clone(s.outbox),
		idempotency:  make(map[string]idempotencyEntry, len(s.idempotency)),
	}
	if s.wallet != nil {
		c.wallet = s.wallet.Clone()
	}
	for id, b := range s.bets {
		cp := *b
		c.bets[id] = &cp
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	return c
}

// NewMemoryLedger creates an empty ledger with no wallet
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		state: &ledgerState{
			bets:        make(map[uuid.UUID]*models.Bet),
			idempotency: make(map[string]idempotencyEntry),
		},
	}
}

// Begin starts a serialized transaction
func (l *MemoryLedger) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.txMu.Lock()
	l.mu.RLock()
	staged := l.state.clone()
	l.mu.RUnlock()

	return &memTx{ledger: l, staged: staged}, nil
}

// Wallets returns the wallet repository view of the ledger
func (l *MemoryLedger) Wallets() *MemoryWalletRepository { return &MemoryWalletRepository{ledger: l} }

// Bets returns the bet repository view of the ledger
func (l *MemoryLedger) Bets() *MemoryBetRepository { return &MemoryBetRepository{ledger: l} }

// Transactions returns the transaction repository view of the ledger
func (l *MemoryLedger) Transactions() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{ledger: l}
}

// Outbox returns the outbox repository view of the ledger
func (l *MemoryLedger) Outbox() *MemoryOutboxRepository { return &MemoryOutboxRepository{ledger: l} }

// Idempotency returns the idempotency repository view of the ledger
func (l *MemoryLedger) Idempotency() *MemoryIdempotencyRepository {
	return &MemoryIdempotencyRepository{ledger: l}
}

func (l *MemoryLedger) read(fn func(s *ledgerState)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.state)
}

// write applies a change outside any transaction
func (l *MemoryLedger) write(fn func(s *ledgerState) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.state)
}

// memTx satisfies pgx.Tx for the memory repositories. Only Commit and
// Rollback are implemented; the embedded nil Tx panics on anything else.
type memTx struct {
	pgx.Tx
	ledger *MemoryLedger
	staged *ledgerState
	done   bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.ledger.mu.Lock()
	t.ledger.state = t.staged
	t.ledger.mu.Unlock()
	t.ledger.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.ledger.txMu.Unlock()
	return nil
}

func stagedState(tx pgx.Tx) (*ledgerState, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, fmt.Errorf("memory ledger: unexpected transaction type %T", tx)
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt.staged, nil
}

// MemoryWalletRepository implements WalletRepository over a MemoryLedger
type MemoryWalletRepository struct {
	ledger *MemoryLedger
}

func (r *MemoryWalletRepository) Initialize(ctx context.Context, tx pgx.Tx, wallet *models.Wallet) (bool, error) {
	s, err := stagedState(tx)
	if err != nil {
		return false, err
	}
	if s.wallet != nil {
		return false, nil
	}

	wallet.ID = models.WalletID
	wallet.UpdatedAt = time.Now()
	wallet.Version = 1
	s.wallet = wallet.Clone()
	return true, nil
}

func (r *MemoryWalletRepository) Get(ctx context.Context) (*models.Wallet, error) {
	var w *models.Wallet
	r.ledger.read(func(s *ledgerState) {
		if s.wallet != nil {
			w = s.wallet.Clone()
		}
	})
	if w == nil {
		return nil, models.ErrWalletNotInitialized
	}
	return w, nil
}

func (r *MemoryWalletRepository) GetForUpdate(ctx context.Context, tx pgx.Tx) (*models.Wallet, error) {
	s, err := stagedState(tx)
	if err != nil {
		return nil, err
	}
	if s.wallet == nil {
		return nil, models.ErrWalletNotInitialized
	}
	return s.wallet.Clone(), nil
}

func (r *MemoryWalletRepository) Update(ctx context.Context, tx pgx.Tx, wallet *models.Wallet) error {
	s, err := stagedState(tx)
	if err != nil {
		return err
	}
	if s.wallet == nil {
		return models.ErrWalletNotInitialized
	}
	if s.wallet.Version != wallet.Version {
		return models.ErrOptimisticLock
	}
	if wallet.Balance.IsNegative() {
		return fmt.Errorf("update wallet: %w", models.ErrInsufficientBalance)
	}

	wallet.UpdatedAt = time.Now()
	wallet.Version++
	s.wallet = wallet.Clone()
	return nil
}

// MemoryBetRepository implements BetRepository over a MemoryLedger
type MemoryBetRepository struct {
	ledger *MemoryLedger
}

func (r *MemoryBetRepository) Create(ctx context.Context, tx pgx.Tx, bet *models.Bet) error {
	s, err := stagedState(tx)
	if err != nil {
		return err
	}

	if bet.ID == uuid.Nil {
		bet.ID = uuid.New()
	}
	if _, exists := s.bets[bet.ID]; exists {
		return fmt.Errorf("duplicate bet: %s", bet.ID)
	}
	if bet.PlacedAt.IsZero() {
		bet.PlacedAt = time.Now()
	}
	if bet.Status == "" {
		bet.Status = models.BetStatusPending
	}

	cp := *bet
	s.bets[bet.ID] = &cp
	return nil
}

func (r *MemoryBetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bet, error) {
	var bet *models.Bet
	r.ledger.read(func(s *ledgerState) {
		if b, ok := s.bets[id]; ok {
			cp := *b
			bet = &cp
		}
	})
	if bet == nil {
		return nil, models.ErrBetNotFound
	}
	return bet, nil
}

func (r *MemoryBetRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Bet, error) {
	s, err := stagedState(tx)
	if err != nil {
		return nil, err
	}
	b, ok := s.bets[id]
	if !ok {
		return nil, models.ErrBetNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryBetRepository) Settle(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.BetStatus, settledAt time.Time, finalScore *string) error {
	s, err := stagedState(tx)
	if err != nil {
		return err
	}
	b, ok := s.bets[id]
	if !ok || b.Status != models.BetStatusPending {
		return models.ErrBetAlreadySettled
	}

	cp := *b
	cp.Status = status
	cp.SettledAt = &settledAt
	cp.FinalScore = finalScore
	s.bets[id] = &cp
	return nil
}

func (r *MemoryBetRepository) List(ctx context.Context, status *models.BetStatus, limit, offset int) ([]*models.Bet, error) {
	var bets []*models.Bet
	r.ledger.read(func(s *ledgerState) {
		bets = collectBets(s, func(b *models.Bet) bool {
			return status == nil || b.Status == *status
		})
	})

	sort.SliceStable(bets, func(i, j int) bool { return bets[i].PlacedAt.After(bets[j].PlacedAt) })
	return paginate(bets, limit, offset), nil
}

func (r *MemoryBetRepository) ListPending(ctx context.Context) ([]*models.Bet, error) {
	var bets []*models.Bet
	r.ledger.read(func(s *ledgerState) {
		bets = collectBets(s, (*models.Bet).IsPending)
	})

	sort.SliceStable(bets, func(i, j int) bool { return bets[i].PlacedAt.Before(bets[j].PlacedAt) })
	return bets, nil
}

func collectBets(s *ledgerState, keep func(*models.Bet) bool) []*models.Bet {
	bets := make([]*models.Bet, 0, len(s.bets))
	for _, b := range s.bets {
		if keep(b) {
			cp := *b
			bets = append(bets, &cp)
		}
	}
	return bets
}

// MemoryTransactionRepository implements TransactionRepository over a MemoryLedger
type MemoryTransactionRepository struct {
	ledger *MemoryLedger
}

func (r *MemoryTransactionRepository) Create(ctx context.Context, tx pgx.Tx, txn *models.Transaction) error {
	s, err := stagedState(tx)
	if err != nil {
		return err
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	cp := *txn
	s.transactions = append(s.transactions, &cp)
	return nil
}

func (r *MemoryTransactionRepository) List(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	r.ledger.read(func(s *ledgerState) {
		txns = make([]*models.Transaction, 0, len(s.transactions))
		for i := len(s.transactions) - 1; i >= 0; i-- {
			cp := *s.transactions[i]
			txns = append(txns, &cp)
		}
	})
	return paginate(txns, limit, offset), nil
}

// MemoryOutboxRepository implements OutboxRepository over a MemoryLedger
type MemoryOutboxRepository struct {
	ledger *MemoryLedger
}

func (r *MemoryOutboxRepository) Create(ctx context.Context, tx pgx.Tx, event *models.OutboxEvent) error {
	s, err := stagedState(tx)
	if err != nil {
		return err
	}
	prepareOutboxEvent(event)

	cp := *event
	s.outbox = append(s.outbox, &cp)
	return nil
}

func (r *MemoryOutboxRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	events := make([]*models.OutboxEvent, 0)
	r.ledger.read(func(s *ledgerState) {
		for _, e := range s.outbox {
			if len(events) == limit {
				break
			}
			if !e.IsProcessed() && e.CanRetry() {
				cp := *e
				events = append(events, &cp)
			}
		}
	})
	return events, nil
}

func (r *MemoryOutboxRepository) MarkProcessed(ctx context.Context, eventID uuid.UUID) error {
	return r.update(eventID, func(e *models.OutboxEvent) {
		now := time.Now()
		e.ProcessedAt = &now
	})
}

func (r *MemoryOutboxRepository) IncrementRetryCount(ctx context.Context, eventID uuid.UUID, errorMsg string) error {
	return r.update(eventID, func(e *models.OutboxEvent) {
		e.RetryCount++
		e.LastError = &errorMsg
	})
}

func (r *MemoryOutboxRepository) CleanupProcessedEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	var deleted int64
	cutoff := time.Now().Add(-olderThan)

	err := r.ledger.write(func(s *ledgerState) error {
		kept := s.outbox[:0:0]
		for _, e := range s.outbox {
			if e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, e)
		}
		s.outbox = kept
		return nil
	})
	return deleted, err
}

func (r *MemoryOutboxRepository) update(eventID uuid.UUID, fn func(e *models.OutboxEvent)) error {
	return r.ledger.write(func(s *ledgerState) error {
		for i, e := range s.outbox {
			if e.ID == eventID {
				cp := *e
				fn(&cp)
				s.outbox[i] = &cp
				return nil
			}
		}
		return fmt.Errorf("event not found: %s", eventID)
	})
}

// MemoryIdempotencyRepository implements IdempotencyRepository over a MemoryLedger
type MemoryIdempotencyRepository struct {
	ledger *MemoryLedger
}

func (r *MemoryIdempotencyRepository) Check(ctx context.Context, key string, requestHash string) (*uuid.UUID, error) {
	var entry idempotencyEntry
	var found bool
	r.ledger.read(func(s *ledgerState) {
		entry, found = s.idempotency[key]
	})

	if !found || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	if entry.requestHash != requestHash {
		return nil, models.ErrIdempotencyMismatch
	}

	betID := entry.betID
	return &betID, nil
}

func (r *MemoryIdempotencyRepository) StoreInTransaction(ctx context.Context, tx pgx.Tx, key string, requestHash string, betID uuid.UUID, ttl time.Duration) error {
	s, err := stagedState(tx)
	if err != nil {
		return err
	}
	s.idempotency[key] = idempotencyEntry{
		requestHash: requestHash,
		betID:       betID,
		expiresAt:   time.Now().Add(ttl),
	}
	return nil
}

func (r *MemoryIdempotencyRepository) CleanupExpired(ctx context.Context) (int64, error) {
	var deleted int64
	now := time.Now()

	err := r.ledger.write(func(s *ledgerState) error {
		for k, v := range s.idempotency {
			if now.After(v.expiresAt) {
				delete(s.idempotency, k)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
