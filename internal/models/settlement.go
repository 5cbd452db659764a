package models

import (
	"time"

	"github.com/google/uuid"
)

// JobConstraints are the execution constraints attached to a queued job
type JobConstraints struct {
	RequiresNetwork bool `json:"requires_network"`
}

// SettlementPayload identifies the bet a settlement job works on
type SettlementPayload struct {
	BetID    uuid.UUID `json:"bet_id"`
	EventID  string    `json:"event_id"`
	SportKey string    `json:"sport_key"`
}

// SettlementJob is a durable, uniquely keyed unit of settlement work.
// Scheduling an existing key replaces the job and bumps Generation.
type SettlementJob struct {
	Key         string            `json:"key"`
	Payload     SettlementPayload `json:"payload"`
	Constraints JobConstraints    `json:"constraints"`
	RunAt       time.Time         `json:"run_at"` // Not visible to workers before this
	Attempts    int               `json:"attempts"`
	Generation  int64             `json:"generation"`
	LastError   *string           `json:"last_error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// SettlementJobKey returns the dedupe key for a bet
func SettlementJobKey(betID uuid.UUID) string {
	return "settle-bet:" + betID.String()
}
