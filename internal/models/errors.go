package models

import "errors"

// Ledger errors
var (
	ErrWalletNotInitialized = errors.New("wallet not initialized")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidStake         = errors.New("invalid stake")
	ErrInvalidOdds          = errors.New("invalid odds")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidSelection     = errors.New("invalid selection")
	ErrBetNotFound          = errors.New("bet not found")
	ErrBetAlreadySettled    = errors.New("already settled")
	ErrOptimisticLock       = errors.New("optimistic lock failure: version mismatch")
	ErrIdempotencyMismatch  = errors.New("idempotency key exists with different request hash")
)

// Market and settlement errors
var (
	ErrNoMarketData = errors.New("no market data available")
	ErrUnknownSport = errors.New("unknown sport")
	ErrJobNotFound  = errors.New("settlement job not found")
	ErrStaleJob     = errors.New("settlement job was replaced")
)

// Advisory errors
var (
	ErrEstimateNotFound = errors.New("analysis estimate not found")
)
