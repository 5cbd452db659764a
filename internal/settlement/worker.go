package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// JobProcessor runs a claimed job and records its outcome on the queue
type JobProcessor interface {
	Process(ctx context.Context, job *models.SettlementJob) (Decision, error)
}

// WorkerConfig tunes the poll loop
type WorkerConfig struct {
	PollInterval time.Duration
	Lease        time.Duration // claimed jobs reappear after this if a run dies
	BatchSize    int
	Concurrency  int
}

// Worker polls the queue for due jobs and runs them concurrently
type Worker struct {
	queue     Queue
	processor JobProcessor
	cfg       WorkerConfig
	sem       *semaphore.Weighted
	logger    zerolog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewWorker creates a settlement worker
func NewWorker(queue Queue, processor JobProcessor, cfg WorkerConfig, logger zerolog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Worker{
		queue:     queue,
		processor: processor,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		logger:    logger.With().Str("component", "settlement_worker").Logger(),
		now:       time.Now,
	}
}

// Start polls until ctx is cancelled, then waits for running jobs
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("concurrency", w.cfg.Concurrency).
		Msg("settlement worker started")

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.logger.Info().Msg("settlement worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil {
				w.logger.Error().Err(err).Msg("failed to poll settlement jobs")
			}
		}
	}
}

// Poll claims due jobs and starts each in its own goroutine. It returns the
// number of jobs started; use Wait to block until they finish.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	jobs, err := w.queue.ClaimDue(ctx, w.now(), w.cfg.Lease, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, job := range jobs {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			// shutting down; unstarted jobs reappear after the lease
			break
		}

		w.wg.Add(1)
		started++
		go func(job *models.SettlementJob) {
			defer w.wg.Done()
			defer w.sem.Release(1)
			w.process(ctx, job)
		}(job)
	}

	if started > 0 {
		w.logger.Debug().Int("jobs", started).Msg("settlement jobs started")
	}
	return started, nil
}

// Wait blocks until every started job has finished
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) process(ctx context.Context, job *models.SettlementJob) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("job_key", job.Key).
				Interface("panic", r).
				Msg("settlement job panicked")
		}
	}()

	decision, err := w.processor.Process(ctx, job)
	if err != nil {
		w.logger.Error().Err(err).
			Str("job_key", job.Key).
			Str("outcome", string(decision.Outcome)).
			Msg("failed to record settlement outcome")
	}
}
