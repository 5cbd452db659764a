package settlement

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/gateway"
	"github.com/cypherlabdev/bet-simulator-service/internal/mocks"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type schedulerSuite struct {
	scheduler   *Scheduler
	queue       *MemoryQueue
	clock       *testClock
	metrics     *observability.Metrics
	mockBets    *mocks.MockBetSource
	mockSettler *mocks.MockSettler
	mockScores  *mocks.MockScoresFetcher
}

// setupScheduler wires a scheduler over an in-memory queue and a fixed clock.
// scores overrides the mocked fetcher when non-nil.
func setupScheduler(t *testing.T, scores ScoresFetcher) *schedulerSuite {
	t.Helper()
	ctrl := gomock.NewController(t)

	s := &schedulerSuite{
		clock:       newTestClock(),
		metrics:     observability.NewMetricsWithRegistry(prometheus.NewRegistry()),
		mockBets:    mocks.NewMockBetSource(ctrl),
		mockSettler: mocks.NewMockSettler(ctrl),
		mockScores:  mocks.NewMockScoresFetcher(ctrl),
	}
	s.queue = NewMemoryQueue(s.clock.Now)

	enq := NewEnqueuer(s.queue, s.metrics, zerolog.Nop())
	enq.now = s.clock.Now

	if scores == nil {
		scores = s.mockScores
	}
	s.scheduler = NewScheduler(enq, s.mockBets, s.mockSettler, scores, zerolog.Nop())
	return s
}

func pendingBet(commence time.Time) *models.Bet {
	return &models.Bet{
		ID:           uuid.New(),
		EventID:      "evt-1",
		SportKey:     "soccer_epl",
		MatchName:    "Arsenal vs Chelsea",
		HomeTeam:     "Arsenal",
		AwayTeam:     "Chelsea",
		Selection:    models.SelectionHome,
		Odds:         decimal.RequireFromString("2.10"),
		Stake:        decimal.NewFromInt(100),
		Status:       models.BetStatusPending,
		CommenceTime: commence,
	}
}

// claimOne enqueues bet, makes it due and claims it
func (s *schedulerSuite) claimOne(t *testing.T, bet *models.Bet) *models.SettlementJob {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.scheduler.Enqueue(ctx, bet))
	s.clock.Advance(InitialDelay(bet.CommenceTime, s.clock.Now()))

	jobs, err := s.queue.ClaimDue(ctx, s.clock.Now(), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func scoresOK(events ...gateway.ScoreEvent) gateway.Result[[]gateway.ScoreEvent] {
	return gateway.Result[[]gateway.ScoreEvent]{Value: events, Kind: gateway.KindSuccess, StatusCode: http.StatusOK}
}

func finished(home, away string) gateway.ScoreEvent {
	return gateway.ScoreEvent{
		ID:        "evt-1",
		Completed: true,
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		Scores: []gateway.TeamScore{
			{Name: "Arsenal", Score: home},
			{Name: "Chelsea", Score: away},
		},
	}
}

func TestInitialDelay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 3*time.Hour, InitialDelay(now.Add(time.Hour), now))
	assert.Equal(t, time.Hour, InitialDelay(now.Add(-time.Hour), now))
	assert.Equal(t, time.Duration(0), InitialDelay(now.Add(-5*time.Hour), now))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, RetryDelay(0))
	assert.Equal(t, 30*time.Second, RetryDelay(1))
	assert.Equal(t, time.Minute, RetryDelay(2))
	assert.Equal(t, 4*time.Minute, RetryDelay(4))
}

func TestEnqueue_SchedulesUniqueJob(t *testing.T) {
	s := setupScheduler(t, nil)
	ctx := context.Background()
	bet := pendingBet(s.clock.Now().Add(time.Hour))

	require.NoError(t, s.scheduler.Enqueue(ctx, bet))
	require.NoError(t, s.scheduler.Enqueue(ctx, bet))

	job, err := s.queue.Get(ctx, models.SettlementJobKey(bet.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, s.queue.Len())
	assert.Equal(t, int64(2), job.Generation)
	assert.Equal(t, s.clock.Now().Add(3*time.Hour), job.RunAt)
	assert.True(t, job.Constraints.RequiresNetwork)
	assert.Equal(t, bet.ID, job.Payload.BetID)
	assert.Equal(t, "soccer_epl", job.Payload.SportKey)
	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.SettlementJobsScheduled))
}

func TestProcess_SettlesFinishedMatch(t *testing.T) {
	s := setupScheduler(t, nil)
	ctx := context.Background()
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(bet, nil)
	s.mockScores.EXPECT().
		FetchScores(gomock.Any(), "soccer_epl", []string{"evt-1"}, ScoresDaysFrom).
		Return(scoresOK(finished("2", "1")))
	s.mockSettler.EXPECT().
		SettleBetWithScore(gomock.Any(), bet.ID, true, "2 - 1").
		Return(bet, nil)

	decision, err := s.scheduler.Process(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, decision.Outcome)
	assert.True(t, decision.Won)
	assert.Equal(t, "2 - 1", decision.FinalScore)
	assert.Equal(t, 0, s.queue.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.SettlementRunsTotal.WithLabelValues("settled")))
}

func TestProcess_LosingSelection(t *testing.T) {
	s := setupScheduler(t, nil)
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	bet.Selection = "Chelsea"
	job := s.claimOne(t, bet)

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(bet, nil)
	s.mockScores.EXPECT().FetchScores(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(scoresOK(finished("2", "1")))
	s.mockSettler.EXPECT().SettleBetWithScore(gomock.Any(), bet.ID, false, "2 - 1").Return(bet, nil)

	decision, err := s.scheduler.Process(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, decision.Outcome)
	assert.False(t, decision.Won)
}

func TestProcess_ScoresServerErrorReschedules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sports/soccer_epl/scores", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := gateway.NewClient(gateway.Config{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second}, metrics, zerolog.Nop())

	s := setupScheduler(t, client)
	ctx := context.Background()
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(bet, nil)

	decision, err := s.scheduler.Process(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRescheduled, decision.Outcome)
	assert.Equal(t, RescheduleDelay, decision.Delay)

	next, err := s.queue.Get(ctx, models.SettlementJobKey(bet.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, s.queue.Len())
	assert.Equal(t, job.Key, next.Key)
	assert.Equal(t, int64(2), next.Generation)
	assert.Equal(t, 0, next.Attempts)
	assert.Equal(t, s.clock.Now().Add(30*time.Minute), next.RunAt)
}

func TestProcess_ReschedulesUntilReady(t *testing.T) {
	tests := []struct {
		name   string
		result gateway.Result[[]gateway.ScoreEvent]
	}{
		{
			name:   "match in progress",
			result: scoresOK(gateway.ScoreEvent{ID: "evt-1", HomeTeam: "Arsenal", AwayTeam: "Chelsea"}),
		},
		{
			name:   "completed without scores",
			result: scoresOK(gateway.ScoreEvent{ID: "evt-1", Completed: true, HomeTeam: "Arsenal", AwayTeam: "Chelsea"}),
		},
		{
			name:   "event not in response",
			result: scoresOK(),
		},
		{
			name:   "unparsable score",
			result: scoresOK(finished("two", "1")),
		},
		{
			name:   "negative score",
			result: scoresOK(finished("-1", "0")),
		},
		{
			name: "permanent failure",
			result: gateway.Result[[]gateway.ScoreEvent]{
				Kind:       gateway.KindPermanent,
				StatusCode: http.StatusUnauthorized,
				Err:        errors.New("unexpected status 401"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupScheduler(t, nil)
			bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
			job := s.claimOne(t, bet)

			s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(bet, nil)
			s.mockScores.EXPECT().FetchScores(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.result)

			decision, err := s.scheduler.Process(context.Background(), job)

			require.NoError(t, err)
			assert.Equal(t, OutcomeRescheduled, decision.Outcome)

			next, err := s.queue.Get(context.Background(), job.Key)
			require.NoError(t, err)
			assert.Equal(t, s.clock.Now().Add(RescheduleDelay), next.RunAt)
		})
	}
}

func TestProcess_LiveScoreOfUnfinishedMatchIsNotAFailure(t *testing.T) {
	s := setupScheduler(t, nil)
	var logs bytes.Buffer
	s.scheduler.logger = zerolog.New(&logs).Level(zerolog.WarnLevel)

	bet := pendingBet(s.clock.Now().Add(-time.Hour))
	job := s.claimOne(t, bet)

	live := finished("45'", "")
	live.Completed = false

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(bet, nil)
	s.mockScores.EXPECT().FetchScores(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(scoresOK(live))

	decision, err := s.scheduler.Process(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRescheduled, decision.Outcome)
	assert.Equal(t, "match not completed", decision.Reason)
	assert.Empty(t, logs.String(), "nothing logged at warn or above")
}

func TestProcess_AlreadySettledBetIsNoOp(t *testing.T) {
	s := setupScheduler(t, nil)
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	settled := *bet
	settled.Status = models.BetStatusWon
	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(&settled, nil)

	decision, err := s.scheduler.Process(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, decision.Outcome)
	assert.Equal(t, 0, s.queue.Len())
}

func TestProcess_ConcurrentSettlementIsNoOp(t *testing.T) {
	s := setupScheduler(t, nil)
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(bet, nil)
	s.mockScores.EXPECT().FetchScores(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(scoresOK(finished("0", "0")))
	s.mockSettler.EXPECT().SettleBetWithScore(gomock.Any(), bet.ID, false, "0 - 0").
		Return(nil, models.ErrBetAlreadySettled)

	decision, err := s.scheduler.Process(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, decision.Outcome)
	assert.Equal(t, 0, s.queue.Len())
}

func TestProcess_MissingBetIsAbandoned(t *testing.T) {
	s := setupScheduler(t, nil)
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(nil, models.ErrBetNotFound)

	decision, err := s.scheduler.Process(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, decision.Outcome)
	assert.Equal(t, 0, s.queue.Len())
}

func TestProcess_ErrorRetriesWithBackoff(t *testing.T) {
	s := setupScheduler(t, nil)
	ctx := context.Background()
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(nil, errors.New("connection reset"))

	decision, err := s.scheduler.Process(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRetried, decision.Outcome)
	assert.Equal(t, RetryBaseDelay, decision.Delay)

	next, err := s.queue.Get(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Attempts)
	assert.Equal(t, int64(1), next.Generation)
	assert.Equal(t, s.clock.Now().Add(RetryBaseDelay), next.RunAt)
	require.NotNil(t, next.LastError)
	assert.Contains(t, *next.LastError, "connection reset")
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.SettlementRetriesTotal))
}

func TestProcess_RetriesExhaustedFallsBackToReschedule(t *testing.T) {
	s := setupScheduler(t, nil)
	ctx := context.Background()
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	for i := 0; i < MaxAttempts-1; i++ {
		require.NoError(t, s.queue.RetryLater(ctx, job.Key, job.Generation, 0, "earlier failure"))
	}
	jobs, err := s.queue.ClaimDue(ctx, s.clock.Now(), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, MaxAttempts-1, jobs[0].Attempts)

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(nil, errors.New("still down"))

	decision, err := s.scheduler.Process(ctx, jobs[0])

	require.NoError(t, err)
	assert.Equal(t, OutcomeRescheduled, decision.Outcome)

	next, err := s.queue.Get(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Attempts)
	assert.Equal(t, int64(2), next.Generation)
	assert.Equal(t, s.clock.Now().Add(RescheduleDelay), next.RunAt)
}

func TestProcess_RetryOfReplacedJobIsDropped(t *testing.T) {
	s := setupScheduler(t, nil)
	ctx := context.Background()
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	// the bet is re-enqueued while the claimed run is still going
	require.NoError(t, s.scheduler.Enqueue(ctx, bet))

	s.mockBets.EXPECT().GetBet(gomock.Any(), bet.ID).Return(nil, errors.New("timeout"))

	decision, err := s.scheduler.Process(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRetried, decision.Outcome)

	next, err := s.queue.Get(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Generation)
	assert.Equal(t, 0, next.Attempts)
}

type panickingBets struct{}

func (panickingBets) GetBet(context.Context, uuid.UUID) (*models.Bet, error) {
	panic("nil map")
}

func (panickingBets) ListPendingBets(context.Context) ([]*models.Bet, error) {
	return nil, nil
}

func TestProcess_RecoversFromPanic(t *testing.T) {
	s := setupScheduler(t, nil)
	s.scheduler.bets = panickingBets{}
	ctx := context.Background()
	bet := pendingBet(s.clock.Now().Add(-3 * time.Hour))
	job := s.claimOne(t, bet)

	decision, err := s.scheduler.Process(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRetried, decision.Outcome)
	assert.Contains(t, decision.Reason, "panicked")

	next, err := s.queue.Get(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Attempts)
}

func TestResumePending(t *testing.T) {
	s := setupScheduler(t, nil)
	ctx := context.Background()
	overdue := pendingBet(s.clock.Now().Add(-5 * time.Hour))
	upcoming := pendingBet(s.clock.Now().Add(time.Hour))

	s.mockBets.EXPECT().ListPendingBets(gomock.Any()).Return([]*models.Bet{overdue, upcoming}, nil).Times(2)

	resumed, err := s.scheduler.ResumePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed)

	// a second boot replaces rather than duplicates
	resumed, err = s.scheduler.ResumePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed)
	assert.Equal(t, 2, s.queue.Len())

	job, err := s.queue.Get(ctx, models.SettlementJobKey(overdue.ID))
	require.NoError(t, err)
	assert.Equal(t, s.clock.Now(), job.RunAt)

	job, err = s.queue.Get(ctx, models.SettlementJobKey(upcoming.ID))
	require.NoError(t, err)
	assert.Equal(t, s.clock.Now().Add(3*time.Hour), job.RunAt)
}

func TestResumePending_ListError(t *testing.T) {
	s := setupScheduler(t, nil)
	s.mockBets.EXPECT().ListPendingBets(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := s.scheduler.ResumePending(context.Background())

	assert.ErrorContains(t, err, "failed to list pending bets")
	assert.Equal(t, 0, s.queue.Len())
}
