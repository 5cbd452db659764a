package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a ledger event written in the same transaction as the state
// change and published to Kafka afterwards
type OutboxEvent struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	AggregateID   uuid.UUID              `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string                 `json:"aggregate_type" db:"aggregate_type"`
	EventType     string                 `json:"event_type" db:"event_type"`
	EventPayload  map[string]interface{} `json:"event_payload" db:"event_payload"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
	ProcessedAt   *time.Time             `json:"processed_at,omitempty" db:"processed_at"`
	RetryCount    int                    `json:"retry_count" db:"retry_count"`
	MaxRetries    int                    `json:"max_retries" db:"max_retries"`
	LastError     *string                `json:"last_error,omitempty" db:"last_error"`
}

// IsProcessed returns true if the event has been successfully published
func (e *OutboxEvent) IsProcessed() bool {
	return e.ProcessedAt != nil
}

// CanRetry returns true if the event can be retried
func (e *OutboxEvent) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// DefaultOutboxMaxRetries bounds publish attempts per event
const DefaultOutboxMaxRetries = 5

// AggregateType constants
const (
	AggregateTypeBet    = "bet"
	AggregateTypeWallet = "wallet"
)

// EventType constants
const (
	EventTypeBetPlaced       = "bet.placed"
	EventTypeBetSettled      = "bet.settled"
	EventTypeWalletDeposited = "wallet.deposited"
)
