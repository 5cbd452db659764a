package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oddsBody = `[
  {
    "id": "evt-1",
    "sport_key": "soccer_epl",
    "sport_title": "EPL",
    "commence_time": "2026-03-01T15:00:00Z",
    "home_team": "Arsenal",
    "away_team": "Chelsea",
    "bookmakers": [
      {
        "key": "bet365",
        "title": "Bet365",
        "last_update": "2026-03-01T10:00:00Z",
        "markets": [
          {
            "key": "h2h",
            "last_update": "2026-03-01T10:00:00Z",
            "outcomes": [
              {"name": "Arsenal", "price": 2.1},
              {"name": "Chelsea", "price": 3.6},
              {"name": "Draw", "price": 3.4}
            ]
          }
        ]
      }
    ]
  }
]`

const scoresBody = `[
  {
    "id": "evt-1",
    "sport_key": "soccer_epl",
    "sport_title": "EPL",
    "commence_time": "2026-03-01T15:00:00Z",
    "completed": true,
    "home_team": "Arsenal",
    "away_team": "Chelsea",
    "scores": [{"name": "Arsenal", "score": "2"}, {"name": "Chelsea", "score": "1"}],
    "last_update": "2026-03-01T17:00:00Z"
  },
  {
    "id": "evt-2",
    "sport_key": "soccer_epl",
    "sport_title": "EPL",
    "commence_time": "2026-03-02T15:00:00Z",
    "completed": false,
    "home_team": "Leeds",
    "away_team": "Everton",
    "scores": null,
    "last_update": null
  }
]`

func setupClient(t *testing.T, handler http.HandlerFunc) (*Client, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Regions: "uk",
		Timeout: time.Second,
	}, metrics, zerolog.Nop())
	return client, metrics
}

func TestFetchOdds_Success(t *testing.T) {
	client, metrics := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sports/soccer_epl/odds", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "uk", r.URL.Query().Get("regions"))
		assert.Equal(t, "h2h", r.URL.Query().Get("markets"))
		assert.Equal(t, "decimal", r.URL.Query().Get("oddsFormat"))

		w.Header().Set("x-requests-remaining", "487")
		w.Write([]byte(oddsBody))
	})

	res := client.FetchOdds(context.Background(), "soccer_epl")

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, res.Value, 1)

	event := res.Value[0]
	assert.Equal(t, "Arsenal", event.HomeTeam)
	assert.True(t, event.CommenceTime.Equal(time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)))

	h2h, ok := event.Bookmakers[0].Market(MarketH2H)
	require.True(t, ok)
	require.Len(t, h2h.Outcomes, 3)
	assert.Equal(t, "2.1", h2h.Outcomes[0].Price.String())

	assert.Equal(t, 487.0, testutil.ToFloat64(metrics.GatewayCreditsRemaining))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GatewayRequestsTotal.WithLabelValues("odds", "success")))
}

func TestFetchScores_Success(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sports/soccer_epl/scores", r.URL.Path)
		assert.Equal(t, "evt-1,evt-2", r.URL.Query().Get("eventIds"))
		assert.Equal(t, "3", r.URL.Query().Get("daysFrom"))
		w.Write([]byte(scoresBody))
	})

	res := client.FetchScores(context.Background(), "soccer_epl", []string{"evt-1", "evt-2"}, 3)

	require.True(t, res.OK())
	require.Len(t, res.Value, 2)

	done := res.Value[0]
	assert.True(t, done.Completed)
	score, ok := done.ScoreFor("Arsenal")
	assert.True(t, ok)
	assert.Equal(t, "2", score)

	pending := res.Value[1]
	assert.False(t, pending.Completed)
	assert.Nil(t, pending.Scores)
	_, ok = pending.ScoreFor("Leeds")
	assert.False(t, ok)
}

func TestGateway_Classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"server error", http.StatusInternalServerError, "boom", KindTransient},
		{"bad gateway", http.StatusBadGateway, "", KindTransient},
		{"rate limited", http.StatusTooManyRequests, "slow down", KindTransient},
		{"unauthorized", http.StatusUnauthorized, "bad key", KindPermanent},
		{"unknown sport", http.StatusNotFound, "", KindPermanent},
		{"malformed json", http.StatusOK, "{not json", KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			res := client.FetchScores(context.Background(), "soccer_epl", []string{"evt-1"}, 3)

			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Error(t, res.Err)
			assert.Nil(t, res.Value)
		})
	}
}

func TestGateway_EmptyArrayIsSuccess(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	res := client.FetchOdds(context.Background(), "soccer_epl")

	assert.True(t, res.OK())
	assert.Empty(t, res.Value)
}

func TestGateway_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	client.httpClient.Timeout = 50 * time.Millisecond

	res := client.FetchOdds(context.Background(), "soccer_epl")

	assert.Equal(t, KindTransient, res.Kind)
	assert.Equal(t, 0, res.StatusCode)
	assert.NotContains(t, res.Err.Error(), "secret", "api key must not leak into errors")
}

func TestGateway_TransportErrorIsTransient(t *testing.T) {
	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: "secret"}, metrics, zerolog.Nop())

	res := client.FetchOdds(context.Background(), "soccer_epl")

	assert.Equal(t, KindTransient, res.Kind)
	assert.Error(t, res.Err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "success", KindSuccess.String())
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "permanent", KindPermanent.String())
}
