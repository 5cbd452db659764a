package market

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/gateway"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/cypherlabdev/bet-simulator-service/internal/oddscache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher returns a canned result and counts calls
type stubFetcher struct {
	mu     sync.Mutex
	result gateway.Result[[]gateway.Event]
	gate   chan struct{} // when set, FetchOdds blocks until closed
	calls  atomic.Int32
}

func (f *stubFetcher) FetchOdds(ctx context.Context, sportKey string) gateway.Result[[]gateway.Event] {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

func (f *stubFetcher) set(res gateway.Result[[]gateway.Event]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = res
}

func okResult(events ...gateway.Event) gateway.Result[[]gateway.Event] {
	return gateway.Result[[]gateway.Event]{Value: events, Kind: gateway.KindSuccess, StatusCode: http.StatusOK}
}

func failResult(status int) gateway.Result[[]gateway.Event] {
	return gateway.Result[[]gateway.Event]{Kind: gateway.KindTransient, StatusCode: status, Err: errors.New("boom")}
}

func liveEvent(id string) gateway.Event {
	return testEvent(id, h2hBook("a", outcome("Arsenal", "2.10"), outcome("Chelsea", "3.60"), outcome("Draw", "3.40")))
}

type managerFixture struct {
	manager *Manager
	store   *oddscache.MemoryStore
	fetcher *stubFetcher
	metrics *observability.Metrics
	now     time.Time
}

func setupManager(t *testing.T) *managerFixture {
	t.Helper()

	fb, err := LoadFallback()
	require.NoError(t, err)

	f := &managerFixture{
		store:   oddscache.NewMemoryStore(),
		fetcher: &stubFetcher{},
		metrics: observability.NewMetricsWithRegistry(prometheus.NewRegistry()),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.manager = NewManager(f.store, f.fetcher, fb, Config{Sports: []string{"cricket_ipl"}}, f.metrics, zerolog.Nop())
	f.manager.now = func() time.Time { return f.now }
	return f
}

func (f *managerFixture) seed(t *testing.T, age time.Duration, ids ...string) {
	t.Helper()
	snaps := make([]models.OddsSnapshot, 0, len(ids))
	for _, id := range ids {
		snaps = append(snaps, BuildSnapshots([]gateway.Event{liveEvent(id)}, zerolog.Nop())...)
	}
	require.NoError(t, f.store.ReplaceSport(context.Background(), "soccer_epl", snaps, f.now.Add(-age)))
}

func TestGetMarkets_FreshCacheSkipsNetwork(t *testing.T) {
	f := setupManager(t)
	f.seed(t, 5*time.Minute, "cached-1", "cached-2")

	res, err := f.manager.GetMarkets(context.Background(), "soccer_epl")

	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.False(t, res.Stale)
	assert.Len(t, res.Snapshots, 2)
	assert.True(t, res.FetchedAt.Equal(f.now.Add(-5*time.Minute)))
	assert.Equal(t, int32(0), f.fetcher.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MarketCacheDecisions.WithLabelValues("soccer_epl", "fresh")))
}

func TestGetMarkets_StaleCacheServedAndRefreshed(t *testing.T) {
	f := setupManager(t)
	f.seed(t, 20*time.Minute, "old-1")
	f.fetcher.set(okResult(liveEvent("new-1"), liveEvent("new-2")))

	res, err := f.manager.GetMarkets(context.Background(), "soccer_epl")

	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.True(t, res.Stale)
	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, "old-1", res.Snapshots[0].EventID)

	f.manager.Wait()
	assert.Equal(t, int32(1), f.fetcher.calls.Load())

	cached, err := f.store.GetSport(context.Background(), "soccer_epl")
	require.NoError(t, err)
	assert.Len(t, cached, 2, "background refresh replaced the cache")

	meta, err := f.store.GetMetadata(context.Background(), "soccer_epl")
	require.NoError(t, err)
	assert.True(t, meta.LastFetchTime.Equal(f.now))
}

func TestGetMarkets_StaleBackgroundFailureIsSilent(t *testing.T) {
	f := setupManager(t)
	f.seed(t, time.Hour, "old-1")
	f.fetcher.set(failResult(http.StatusInternalServerError))

	res, err := f.manager.GetMarkets(context.Background(), "soccer_epl")
	require.NoError(t, err)
	assert.Len(t, res.Snapshots, 1)

	f.manager.Wait()
	cached, err := f.store.GetSport(context.Background(), "soccer_epl")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "old-1", cached[0].EventID)
}

func TestGetMarkets_ConcurrentStaleRefreshesCollapse(t *testing.T) {
	f := setupManager(t)
	f.seed(t, time.Hour, "old-1")
	f.fetcher.set(okResult(liveEvent("new-1")))
	f.fetcher.gate = make(chan struct{})

	for i := 0; i < 5; i++ {
		_, err := f.manager.GetMarkets(context.Background(), "soccer_epl")
		require.NoError(t, err)
	}

	// give every background goroutine time to join the in-flight call
	time.Sleep(100 * time.Millisecond)
	close(f.fetcher.gate)
	f.manager.Wait()

	assert.Equal(t, int32(1), f.fetcher.calls.Load())
}

func TestGetMarkets_EmptyCacheFetchesAndStores(t *testing.T) {
	f := setupManager(t)
	f.fetcher.set(okResult(liveEvent("new-1")))

	res, err := f.manager.GetMarkets(context.Background(), "soccer_epl")

	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, res.Source)
	assert.False(t, res.Stale)
	require.Len(t, res.Snapshots, 1)
	assert.True(t, res.FetchedAt.Equal(f.now))

	cached, err := f.store.GetSport(context.Background(), "soccer_epl")
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestGetMarkets_EmptyCacheFetchFailsUsesFallback(t *testing.T) {
	f := setupManager(t)
	f.fetcher.set(failResult(http.StatusServiceUnavailable))

	res, err := f.manager.GetMarkets(context.Background(), "soccer_epl")

	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.True(t, res.Stale)
	assert.Len(t, res.Snapshots, 3)

	cached, err := f.store.GetSport(context.Background(), "soccer_epl")
	require.NoError(t, err)
	assert.Empty(t, cached, "fallback data is never written to the cache")
}

func TestGetMarkets_EmptyNetworkResponseUsesFallback(t *testing.T) {
	f := setupManager(t)
	f.fetcher.set(okResult())

	res, err := f.manager.GetMarkets(context.Background(), "basketball_nba")

	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Len(t, res.Snapshots, 2)
}

func TestGetMarkets_NoDataAnywhere(t *testing.T) {
	f := setupManager(t)
	f.fetcher.set(failResult(http.StatusInternalServerError))

	_, err := f.manager.GetMarkets(context.Background(), "cricket_ipl")

	assert.ErrorIs(t, err, models.ErrNoMarketData)
}

func TestGetMarkets_UnknownSportRejected(t *testing.T) {
	f := setupManager(t)
	f.fetcher.set(okResult(liveEvent("evt-1")))

	for _, key := range []string{"not_a_sport", "../../admin", ""} {
		_, err := f.manager.GetMarkets(context.Background(), key)
		assert.ErrorIs(t, err, models.ErrUnknownSport)

		_, err = f.manager.RefreshMarkets(context.Background(), key)
		assert.ErrorIs(t, err, models.ErrUnknownSport)
	}

	assert.Equal(t, int32(0), f.fetcher.calls.Load())
	assert.Equal(t, 0, testutil.CollectAndCount(f.metrics.MarketCacheDecisions))
	assert.Equal(t, 0, testutil.CollectAndCount(f.metrics.MarketRefreshTotal))
}

func TestManager_Sports(t *testing.T) {
	f := setupManager(t)

	assert.Equal(t, []string{"basketball_nba", "cricket_ipl", "soccer_epl"}, f.manager.Sports())
}

func TestRefreshMarkets_FailureLeavesCacheUntouched(t *testing.T) {
	f := setupManager(t)
	f.seed(t, 2*time.Minute, "cached-1")
	f.fetcher.set(failResult(http.StatusTooManyRequests))

	_, err := f.manager.RefreshMarkets(context.Background(), "soccer_epl")

	require.Error(t, err)
	assert.True(t, IsTransient(err))

	cached, err := f.store.GetSport(context.Background(), "soccer_epl")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "cached-1", cached[0].EventID)
}

func TestRefreshMarkets_OverwritesFreshCache(t *testing.T) {
	f := setupManager(t)
	f.seed(t, time.Minute, "cached-1")
	f.fetcher.set(okResult(liveEvent("new-1"), liveEvent("new-2")))

	res, err := f.manager.RefreshMarkets(context.Background(), "soccer_epl")

	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, res.Source)
	assert.Len(t, res.Snapshots, 2)

	cached, err := f.store.GetSport(context.Background(), "soccer_epl")
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestIsCacheStale(t *testing.T) {
	f := setupManager(t)
	ctx := context.Background()

	stale, err := f.manager.IsCacheStale(ctx, "soccer_epl")
	require.NoError(t, err)
	assert.True(t, stale, "never fetched")

	f.seed(t, 15*time.Minute, "cached-1")
	stale, err = f.manager.IsCacheStale(ctx, "soccer_epl")
	require.NoError(t, err)
	assert.False(t, stale)

	f.now = f.now.Add(time.Second)
	stale, err = f.manager.IsCacheStale(ctx, "soccer_epl")
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestFetchError(t *testing.T) {
	err := &FetchError{Kind: gateway.KindPermanent, StatusCode: 401, Err: errors.New("bad key")}

	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "401")
	assert.EqualError(t, errors.Unwrap(err), "bad key")
}
