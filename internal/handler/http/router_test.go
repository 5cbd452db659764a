package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/advisory"
	"github.com/cypherlabdev/bet-simulator-service/internal/gateway"
	"github.com/cypherlabdev/bet-simulator-service/internal/market"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/cypherlabdev/bet-simulator-service/internal/repository"
	"github.com/cypherlabdev/bet-simulator-service/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMarkets struct {
	result *market.MarketsResult
	err    error
	sports []string
}

func (s *stubMarkets) GetMarkets(ctx context.Context, sportKey string) (*market.MarketsResult, error) {
	return s.result, s.err
}

func (s *stubMarkets) RefreshMarkets(ctx context.Context, sportKey string) (*market.MarketsResult, error) {
	return s.result, s.err
}

func (s *stubMarkets) Sports() []string {
	return s.sports
}

type testAPI struct {
	server  *httptest.Server
	ledger  service.LedgerService
	markets *stubMarkets
	reg     *prometheus.Registry
}

func setupTestAPI(t *testing.T, readiness ...ReadinessCheck) *testAPI {
	t.Helper()

	memLedger := repository.NewMemoryLedger()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWithRegistry(reg)
	ledger := service.NewLedgerService(
		memLedger,
		memLedger.Wallets(),
		memLedger.Bets(),
		memLedger.Transactions(),
		memLedger.Outbox(),
		memLedger.Idempotency(),
		nil,
		nil,
		metrics,
		zerolog.Nop(),
	)
	_, err := ledger.InitializeWallet(context.Background(), decimal.NewFromInt(10000))
	require.NoError(t, err)

	markets := &stubMarkets{}
	router := NewRouter(Config{
		Ledger:    ledger,
		Markets:   markets,
		Advisor:   advisory.NewAdvisor(advisory.NewAnalysisCache(0), zerolog.Nop()),
		Readiness: readiness,
		Metrics:   metrics,
		Logger:    zerolog.Nop(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testAPI{server: srv, ledger: ledger, markets: markets, reg: reg}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func betBody(stake string) map[string]any {
	return map[string]any{
		"event_id":      "evt-1",
		"sport_key":     "soccer_epl",
		"home_team":     "Arsenal",
		"away_team":     "Chelsea",
		"selection":     "HOME",
		"odds":          "2.10",
		"stake":         stake,
		"commence_time": time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC),
	}
}

func withField(body map[string]any, key string, value any) map[string]any {
	body[key] = value
	return body
}

func decodeBet(t *testing.T, data []byte) *models.Bet {
	t.Helper()
	var bet models.Bet
	require.NoError(t, json.Unmarshal(data, &bet))
	return &bet
}

func (a *testAPI) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	status, data := a.do(t, http.MethodGet, "/v1/wallet", nil)
	require.Equal(t, http.StatusOK, status)

	var wallet models.Wallet
	require.NoError(t, json.Unmarshal(data, &wallet))
	return wallet.Balance
}

func TestHealth(t *testing.T) {
	api := setupTestAPI(t)

	status, data := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestReady(t *testing.T) {
	healthy := ReadinessCheck{Name: "database", Check: func(context.Context) error { return nil }}
	broken := ReadinessCheck{Name: "cache", Check: func(context.Context) error { return errors.New("connection refused") }}

	status, data := setupTestAPI(t, healthy, ProducerCheck(nil)).do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(data), "kafka producer is nil")

	status, _ = setupTestAPI(t, healthy, broken).do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, data = setupTestAPI(t, healthy).do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `"ready"`)
}

func TestBetLifecycle(t *testing.T) {
	api := setupTestAPI(t)

	status, data := api.do(t, http.MethodPost, "/v1/bets", betBody("100"))
	require.Equal(t, http.StatusCreated, status, string(data))
	bet := decodeBet(t, data)
	assert.Equal(t, models.BetStatusPending, bet.Status)
	assert.Equal(t, "Arsenal vs Chelsea", bet.MatchName)
	assert.True(t, api.balance(t).Equal(decimal.NewFromInt(9900)))

	status, data = api.do(t, http.MethodGet, "/v1/bets/"+bet.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, bet.ID, decodeBet(t, data).ID)

	status, data = api.do(t, http.MethodGet, "/v1/bets?status=pending", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Bets []*models.Bet `json:"bets"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list.Bets, 1)

	status, data = api.do(t, http.MethodPost, "/v1/bets/"+bet.ID.String()+"/settle", map[string]any{"won": true, "final_score": "2 - 1"})
	require.Equal(t, http.StatusOK, status, string(data))
	settled := decodeBet(t, data)
	assert.Equal(t, models.BetStatusWon, settled.Status)
	require.NotNil(t, settled.FinalScore)
	assert.Equal(t, "2 - 1", *settled.FinalScore)
	assert.True(t, api.balance(t).Equal(decimal.NewFromInt(10110)))

	status, _ = api.do(t, http.MethodPost, "/v1/bets/"+bet.ID.String()+"/settle", map[string]any{"won": false})
	assert.Equal(t, http.StatusConflict, status)

	status, data = api.do(t, http.MethodGet, "/v1/wallet/transactions?limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	var txns struct {
		Transactions []*models.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(data, &txns))
	assert.Len(t, txns.Transactions, 3)
}

func TestPlaceBet_Errors(t *testing.T) {
	api := setupTestAPI(t)

	missingEvent := betBody("100")
	delete(missingEvent, "event_id")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"insufficient balance", betBody("10000.01"), http.StatusUnprocessableEntity},
		{"zero stake", betBody("0"), http.StatusUnprocessableEntity},
		{"sub-cent stake", betBody("100.005"), http.StatusUnprocessableEntity},
		{"sub-cent odds", withField(betBody("100"), "odds", "2.105"), http.StatusUnprocessableEntity},
		{"unknown team", withField(betBody("100"), "selection", "Liverpool"), http.StatusUnprocessableEntity},
		{"draw on two-way market", withField(withField(betBody("100"), "selection", "DRAW"), "two_way", true), http.StatusUnprocessableEntity},
		{"missing field", missingEvent, http.StatusBadRequest},
		{"malformed json", `{"event_id":`, http.StatusBadRequest},
		{"unknown field", `{"event_id":"evt-1","user_id":"u"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := api.do(t, http.MethodPost, "/v1/bets", tt.body)
			assert.Equal(t, tt.want, status, string(data))
		})
	}

	assert.True(t, api.balance(t).Equal(decimal.NewFromInt(10000)))
}

func TestPlaceBet_IdempotencyKey(t *testing.T) {
	api := setupTestAPI(t)

	status, data := api.do(t, http.MethodPost, "/v1/bets", betBody("100"), HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, status)
	first := decodeBet(t, data)

	status, data = api.do(t, http.MethodPost, "/v1/bets", betBody("100"), HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, first.ID, decodeBet(t, data).ID)
	assert.True(t, api.balance(t).Equal(decimal.NewFromInt(9900)))

	status, _ = api.do(t, http.MethodPost, "/v1/bets", betBody("50"), HeaderIdempotencyKey, "key-1")
	assert.Equal(t, http.StatusConflict, status)
}

func TestGetBet_Errors(t *testing.T) {
	api := setupTestAPI(t)

	status, _ := api.do(t, http.MethodGet, "/v1/bets/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/v1/bets/6f1c2a8e-5b0d-4c36-9f3e-7a1d2b3c4d5e", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(t, http.MethodGet, "/v1/bets?status=VOID", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/v1/bets?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodPost, "/v1/bets/6f1c2a8e-5b0d-4c36-9f3e-7a1d2b3c4d5e/settle", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status, "won is required")
}

func TestDeposit(t *testing.T) {
	api := setupTestAPI(t)

	status, _ := api.do(t, http.MethodPost, "/v1/wallet/deposit", map[string]any{"amount": "0"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = api.do(t, http.MethodPost, "/v1/wallet/deposit", map[string]any{"amount": "10.001"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, data := api.do(t, http.MethodPost, "/v1/wallet/deposit", map[string]any{"amount": "250.50"})
	require.Equal(t, http.StatusOK, status, string(data))
	assert.True(t, api.balance(t).Equal(decimal.RequireFromString("10250.50")))
}

func TestMarkets(t *testing.T) {
	api := setupTestAPI(t)

	api.markets.result = &market.MarketsResult{
		SportKey:  "soccer_epl",
		Snapshots: []models.OddsSnapshot{{EventID: "evt-1", HomeTeam: "Arsenal", AwayTeam: "Chelsea"}},
		Source:    market.SourceCache,
	}
	status, data := api.do(t, http.MethodGet, "/v1/sports/soccer_epl/markets", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `"source":"cache"`)

	api.markets.result, api.markets.err = nil, models.ErrNoMarketData
	status, _ = api.do(t, http.MethodGet, "/v1/sports/soccer_epl/markets", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	api.markets.err = fmt.Errorf("failed to refresh markets: %w", &market.FetchError{Kind: gateway.KindTransient, StatusCode: 500})
	status, _ = api.do(t, http.MethodPost, "/v1/sports/soccer_epl/markets/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status, "transient upstream failure")

	api.markets.err = fmt.Errorf("failed to refresh markets: %w", &market.FetchError{Kind: gateway.KindPermanent, StatusCode: 401})
	status, _ = api.do(t, http.MethodPost, "/v1/sports/soccer_epl/markets/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, status)

	api.markets.err = fmt.Errorf("%w: %q", models.ErrUnknownSport, "not_a_sport")
	status, _ = api.do(t, http.MethodGet, "/v1/sports/not_a_sport/markets", nil)
	assert.Equal(t, http.StatusNotFound, status)

	api.markets.sports = []string{"basketball_nba", "soccer_epl"}
	status, data = api.do(t, http.MethodGet, "/v1/sports", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"sports":["basketball_nba","soccer_epl"]}`, string(data))
}

func TestAdvisory(t *testing.T) {
	api := setupTestAPI(t)

	status, _ := api.do(t, http.MethodGet, "/v1/advisory/estimates/evt-1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(t, http.MethodPut, "/v1/advisory/estimates", map[string]any{
		"event_id": "evt-1", "probability": 1.4, "recommendation": "HOME", "confidence": 0.5,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, data := api.do(t, http.MethodPut, "/v1/advisory/estimates", map[string]any{
		"event_id": "evt-1", "probability": 0.6, "recommendation": "HOME", "confidence": 0.7,
	})
	require.Equal(t, http.StatusOK, status, string(data))

	status, _ = api.do(t, http.MethodGet, "/v1/advisory/estimates/evt-1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, data = api.do(t, http.MethodPost, "/v1/advisory/stake", map[string]any{"event_id": "evt-1", "odds": "2"})
	require.Equal(t, http.StatusOK, status, string(data))

	var advice advisory.StakeAdvice
	require.NoError(t, json.Unmarshal(data, &advice))
	assert.Empty(t, advice.Reason)
	assert.True(t, advice.Stake.Equal(decimal.NewFromInt(500)), "quarter kelly of the wallet, got %s", advice.Stake)
}

func TestMetricsMiddleware(t *testing.T) {
	api := setupTestAPI(t)

	api.do(t, http.MethodGet, "/v1/wallet", nil)
	api.do(t, http.MethodGet, "/v1/bets/not-a-uuid", nil)

	families, err := api.reg.Gather()
	require.NoError(t, err)

	routes := map[string]string{}
	for _, mf := range families {
		if mf.GetName() != "betsim_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			routes[labels["route"]] = labels["status"]
		}
	}
	assert.Equal(t, map[string]string{"/v1/wallet": "200", "/v1/bets/{id}": "400"}, routes)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", errInvalidRequest), http.StatusBadRequest},
		{models.ErrBetNotFound, http.StatusNotFound},
		{models.ErrEstimateNotFound, http.StatusNotFound},
		{fmt.Errorf("failed to settle bet: %w", models.ErrBetAlreadySettled), http.StatusConflict},
		{models.ErrIdempotencyMismatch, http.StatusConflict},
		{models.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{models.ErrInvalidStake, http.StatusUnprocessableEntity},
		{models.ErrInvalidOdds, http.StatusUnprocessableEntity},
		{models.ErrInvalidSelection, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %q", models.ErrUnknownSport, "x"), http.StatusNotFound},
		{&market.FetchError{Kind: gateway.KindTransient, StatusCode: 503}, http.StatusServiceUnavailable},
		{models.ErrWalletNotInitialized, http.StatusUnprocessableEntity},
		{models.ErrNoMarketData, http.StatusServiceUnavailable},
		{&market.FetchError{Kind: gateway.KindPermanent, StatusCode: 401}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
