package settlement

import (
	"context"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
)

// Queue is a durable delayed-job queue with one live job per key.
// Delivery is at-least-once: a claimed job reappears once its lease expires.
type Queue interface {
	// Schedule inserts or replaces the job for key. A replace bumps the
	// generation and resets attempts.
	Schedule(ctx context.Context, key string, delay time.Duration, constraints models.JobConstraints, payload models.SettlementPayload) error

	// ClaimDue leases up to limit jobs whose run time has passed
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.SettlementJob, error)

	// Complete removes the job unless it was replaced since it was claimed
	Complete(ctx context.Context, key string, generation int64) error

	// RetryLater records a failed attempt and hides the job for delay.
	// Returns ErrStaleJob if the job was replaced since it was claimed.
	RetryLater(ctx context.Context, key string, generation int64, delay time.Duration, errMsg string) error

	// Get returns ErrJobNotFound for unknown keys
	Get(ctx context.Context, key string) (*models.SettlementJob, error)
}
