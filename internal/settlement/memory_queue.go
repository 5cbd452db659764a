package settlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
)

// MemoryQueue is an in-process Queue. Jobs do not survive a restart; pending
// bets are re-enqueued at boot by Scheduler.ResumePending.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]*models.SettlementJob
	now  func() time.Time
}

// NewMemoryQueue creates an empty queue. now defaults to time.Now.
func NewMemoryQueue(now func() time.Time) *MemoryQueue {
	if now == nil {
		now = time.Now
	}
	return &MemoryQueue{
		jobs: make(map[string]*models.SettlementJob),
		now:  now,
	}
}

func (q *MemoryQueue) Schedule(ctx context.Context, key string, delay time.Duration, constraints models.JobConstraints, payload models.SettlementPayload) error {
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	job, ok := q.jobs[key]
	if !ok {
		job = &models.SettlementJob{Key: key, CreatedAt: now}
		q.jobs[key] = job
	}

	job.Payload = payload
	job.Constraints = constraints
	job.RunAt = now.Add(delay)
	job.Attempts = 0
	job.Generation++
	job.LastError = nil
	job.UpdatedAt = now
	return nil
}

func (q *MemoryQueue) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.SettlementJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]*models.SettlementJob, 0)
	for _, job := range q.jobs {
		if !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*models.SettlementJob, 0, len(due))
	for _, job := range due {
		job.RunAt = now.Add(lease)
		job.UpdatedAt = now
		cp := *job
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (q *MemoryQueue) Complete(ctx context.Context, key string, generation int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, ok := q.jobs[key]; ok && job.Generation == generation {
		delete(q.jobs, key)
	}
	return nil
}

func (q *MemoryQueue) RetryLater(ctx context.Context, key string, generation int64, delay time.Duration, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[key]
	if !ok || job.Generation != generation {
		return models.ErrStaleJob
	}

	now := q.now()
	job.Attempts++
	job.RunAt = now.Add(delay)
	job.LastError = &errMsg
	job.UpdatedAt = now
	return nil
}

func (q *MemoryQueue) Get(ctx context.Context, key string) (*models.SettlementJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[key]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// Len returns the number of live jobs
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
