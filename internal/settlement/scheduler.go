// Package settlement settles bets once their matches finish. Each pending bet
// owns one keyed job that either settles it or reschedules itself.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/gateway"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// SettlementDelay is how long after kick-off a match is assumed finished
	SettlementDelay = 2 * time.Hour
	// RescheduleDelay is the wait before checking an unfinished match again
	RescheduleDelay = 30 * time.Minute
	// ScoresDaysFrom is the look-back window sent to the scores endpoint
	ScoresDaysFrom = 3

	// MaxAttempts bounds back-off retries of a failing run
	MaxAttempts = 5
	// RetryBaseDelay is the first back-off delay; it doubles per attempt
	RetryBaseDelay = 30 * time.Second
)

// Outcome is how a settlement run ended
type Outcome string

const (
	OutcomeSettled     Outcome = "settled"
	OutcomeRescheduled Outcome = "rescheduled"
	OutcomeNoOp        Outcome = "noop"
	OutcomeAbandoned   Outcome = "abandoned"
	OutcomeRetried     Outcome = "retried"
)

// Decision is the result of one run
type Decision struct {
	Outcome    Outcome
	Delay      time.Duration // set for OutcomeRescheduled and OutcomeRetried
	Reason     string
	FinalScore string
	Won        bool
}

// BetSource reads bets for settlement
type BetSource interface {
	GetBet(ctx context.Context, id uuid.UUID) (*models.Bet, error)
	ListPendingBets(ctx context.Context) ([]*models.Bet, error)
}

// Settler applies a settlement to the ledger
type Settler interface {
	SettleBetWithScore(ctx context.Context, betID uuid.UUID, won bool, finalScore string) (*models.Bet, error)
}

// ScoresFetcher is the slice of the gateway the scheduler uses
type ScoresFetcher interface {
	FetchScores(ctx context.Context, sportKey string, eventIDs []string, daysFrom int) gateway.Result[[]gateway.ScoreEvent]
}

// InitialDelay returns how long to wait before the first settlement check
func InitialDelay(commence, now time.Time) time.Duration {
	delay := commence.Add(SettlementDelay).Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}

// RetryDelay returns the back-off before retry number attempt (1-based)
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return RetryBaseDelay << (attempt - 1)
}

// Enqueuer schedules settlement jobs for newly placed bets
type Enqueuer struct {
	queue   Queue
	metrics *observability.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEnqueuer creates an enqueuer over queue
func NewEnqueuer(queue Queue, metrics *observability.Metrics, logger zerolog.Logger) *Enqueuer {
	return &Enqueuer{
		queue:   queue,
		metrics: metrics,
		logger:  logger.With().Str("component", "settlement_enqueuer").Logger(),
		now:     time.Now,
	}
}

// Enqueue schedules (or replaces) the settlement job for a bet
func (e *Enqueuer) Enqueue(ctx context.Context, bet *models.Bet) error {
	delay := InitialDelay(bet.CommenceTime, e.now())
	if err := e.schedule(ctx, bet.ID, bet.EventID, bet.SportKey, delay); err != nil {
		return err
	}

	e.logger.Info().
		Str("bet_id", bet.ID.String()).
		Str("event_id", bet.EventID).
		Dur("delay", delay).
		Msg("settlement scheduled")

	return nil
}

func (e *Enqueuer) schedule(ctx context.Context, betID uuid.UUID, eventID, sportKey string, delay time.Duration) error {
	payload := models.SettlementPayload{BetID: betID, EventID: eventID, SportKey: sportKey}
	constraints := models.JobConstraints{RequiresNetwork: true}

	if err := e.queue.Schedule(ctx, models.SettlementJobKey(betID), delay, constraints, payload); err != nil {
		return fmt.Errorf("failed to schedule settlement: %w", err)
	}
	e.metrics.SettlementJobsScheduled.Inc()
	return nil
}

// Scheduler runs settlement jobs and writes their decisions back to the queue
type Scheduler struct {
	*Enqueuer
	bets    BetSource
	settler Settler
	scores  ScoresFetcher
	logger  zerolog.Logger
}

// NewScheduler creates a settlement scheduler
func NewScheduler(
	enqueuer *Enqueuer,
	bets BetSource,
	settler Settler,
	scores ScoresFetcher,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		Enqueuer: enqueuer,
		bets:     bets,
		settler:  settler,
		scores:   scores,
		logger:   logger.With().Str("component", "settlement_scheduler").Logger(),
	}
}

// ResumePending re-enqueues every pending bet. Scheduling replaces existing
// jobs, so running it more than once is harmless.
func (s *Scheduler) ResumePending(ctx context.Context) (int, error) {
	bets, err := s.bets.ListPendingBets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending bets: %w", err)
	}

	resumed := 0
	for _, bet := range bets {
		if err := s.Enqueue(ctx, bet); err != nil {
			s.logger.Error().Err(err).
				Str("bet_id", bet.ID.String()).
				Msg("failed to resume settlement")
			continue
		}
		resumed++
	}

	s.logger.Info().
		Int("pending", len(bets)).
		Int("resumed", resumed).
		Msg("pending settlements resumed")

	return resumed, nil
}

// Run performs one settlement attempt for job. A returned error means the
// attempt failed and should be retried with back-off.
func (s *Scheduler) Run(ctx context.Context, job *models.SettlementJob) (Decision, error) {
	betID := job.Payload.BetID
	log := s.logger.With().
		Str("bet_id", betID.String()).
		Str("event_id", job.Payload.EventID).
		Logger()

	bet, err := s.bets.GetBet(ctx, betID)
	if errors.Is(err, models.ErrBetNotFound) {
		log.Error().Msg("settlement job references a missing bet, abandoning")
		return Decision{Outcome: OutcomeAbandoned, Reason: "bet not found"}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load bet: %w", err)
	}

	if !bet.IsPending() {
		log.Debug().Str("status", string(bet.Status)).Msg("bet already settled")
		return Decision{Outcome: OutcomeNoOp, Reason: "already settled"}, nil
	}

	res := s.scores.FetchScores(ctx, bet.SportKey, []string{bet.EventID}, ScoresDaysFrom)
	if !res.OK() {
		log.Warn().Err(res.Err).
			Str("kind", res.Kind.String()).
			Int("status", res.StatusCode).
			Msg("scores unavailable, rescheduling")
		return reschedule("scores unavailable"), nil
	}

	event := findEvent(res.Value, bet.EventID)
	if event == nil {
		log.Debug().Msg("event missing from scores, rescheduling")
		return reschedule("event not in scores"), nil
	}

	in := ValidationInput{
		MatchCompleted: event.Completed,
		Selection:      bet.Selection,
		HomeTeam:       bet.HomeTeam,
		AwayTeam:       bet.AwayTeam,
	}
	// Live scores of an unfinished match are not read at all
	if event.Completed {
		if in.HomeScore, err = teamScore(event, event.HomeTeam); err == nil {
			in.AwayScore, err = teamScore(event, event.AwayTeam)
		}
		if err != nil {
			log.Warn().Err(err).Msg("invalid score data, rescheduling")
			return reschedule("invalid score data"), nil
		}
	}

	result := Validate(in)
	switch result.Status {
	case StatusNotReady:
		log.Debug().Str("reason", result.Reason).Msg("match not ready, rescheduling")
		return reschedule(result.Reason), nil
	case StatusInvalid:
		log.Warn().Str("reason", result.Reason).Msg("invalid match result, rescheduling")
		return reschedule(result.Reason), nil
	}

	_, err = s.settler.SettleBetWithScore(ctx, bet.ID, result.UserWon, result.FinalScore)
	switch {
	case errors.Is(err, models.ErrBetAlreadySettled):
		log.Info().Msg("bet settled concurrently")
		return Decision{Outcome: OutcomeNoOp, Reason: "already settled"}, nil
	case errors.Is(err, models.ErrBetNotFound):
		log.Error().Msg("bet disappeared during settlement, abandoning")
		return Decision{Outcome: OutcomeAbandoned, Reason: "bet not found"}, nil
	case err != nil:
		return Decision{}, fmt.Errorf("failed to settle bet: %w", err)
	}

	log.Info().
		Str("final_score", result.FinalScore).
		Bool("won", result.UserWon).
		Msg("bet settled")

	return Decision{
		Outcome:    OutcomeSettled,
		FinalScore: result.FinalScore,
		Won:        result.UserWon,
	}, nil
}

// Process runs job and applies the decision to the queue. Errors and panics
// from the run are retried with exponential back-off; once MaxAttempts is
// reached the job falls back to the regular reschedule.
func (s *Scheduler) Process(ctx context.Context, job *models.SettlementJob) (Decision, error) {
	ctx, span := observability.StartSpan(ctx, "settlement.run",
		attribute.String("bet_id", job.Payload.BetID.String()),
		attribute.Int("attempts", job.Attempts),
	)
	start := time.Now()

	decision, runErr := s.runSafely(ctx, job)
	if runErr != nil {
		decision = s.retryDecision(job, runErr)
	}

	err := s.apply(ctx, job, decision, runErr)

	s.metrics.SettlementRunDuration.Observe(time.Since(start).Seconds())
	s.metrics.SettlementRunsTotal.WithLabelValues(string(decision.Outcome)).Inc()
	span.SetAttributes(attribute.String("outcome", string(decision.Outcome)))
	observability.EndSpan(span, errors.Join(runErr, err))

	return decision, err
}

func (s *Scheduler) runSafely(ctx context.Context, job *models.SettlementJob) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("bet_id", job.Payload.BetID.String()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("settlement run panicked")
			err = fmt.Errorf("settlement run panicked: %v", r)
		}
	}()
	return s.Run(ctx, job)
}

func (s *Scheduler) retryDecision(job *models.SettlementJob, runErr error) Decision {
	attempt := job.Attempts + 1
	if attempt >= MaxAttempts {
		s.logger.Warn().Err(runErr).
			Str("bet_id", job.Payload.BetID.String()).
			Int("attempts", attempt).
			Msg("settlement retries exhausted, rescheduling")
		return Decision{Outcome: OutcomeRescheduled, Delay: RescheduleDelay, Reason: "retries exhausted"}
	}

	s.logger.Warn().Err(runErr).
		Str("bet_id", job.Payload.BetID.String()).
		Int("attempt", attempt).
		Msg("settlement run failed, retrying")
	return Decision{Outcome: OutcomeRetried, Delay: RetryDelay(attempt), Reason: runErr.Error()}
}

func (s *Scheduler) apply(ctx context.Context, job *models.SettlementJob, d Decision, runErr error) error {
	switch d.Outcome {
	case OutcomeSettled, OutcomeNoOp, OutcomeAbandoned:
		return s.queue.Complete(ctx, job.Key, job.Generation)

	case OutcomeRetried:
		s.metrics.SettlementRetriesTotal.Inc()
		err := s.queue.RetryLater(ctx, job.Key, job.Generation, d.Delay, runErr.Error())
		if errors.Is(err, models.ErrStaleJob) {
			// replaced while running; the new job carries on
			return nil
		}
		return err

	case OutcomeRescheduled:
		return s.schedule(ctx, job.Payload.BetID, job.Payload.EventID, job.Payload.SportKey, d.Delay)
	}

	return fmt.Errorf("unknown settlement outcome %q", d.Outcome)
}

func reschedule(reason string) Decision {
	return Decision{Outcome: OutcomeRescheduled, Delay: RescheduleDelay, Reason: reason}
}

func findEvent(events []gateway.ScoreEvent, eventID string) *gateway.ScoreEvent {
	for i := range events {
		if events[i].ID == eventID {
			return &events[i]
		}
	}
	return nil
}

// teamScore returns nil when the team has no reported score yet
func teamScore(event *gateway.ScoreEvent, team string) (*int, error) {
	raw, ok := event.ScoreFor(team)
	if !ok {
		return nil, nil
	}
	v, err := ParseScore(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
