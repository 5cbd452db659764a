// Package market serves sports markets cache-first: fresh cache without a
// network call, stale cache with a background refresh, and a synchronous
// fetch (then the bundled fallback) only when nothing is cached.
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/gateway"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/cypherlabdev/bet-simulator-service/internal/oddscache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Source tells where a MarketsResult came from
type Source string

const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
)

// MarketsResult is what GetMarkets serves
type MarketsResult struct {
	SportKey  string                `json:"sport_key"`
	Snapshots []models.OddsSnapshot `json:"events"`
	Source    Source                `json:"source"`
	Stale     bool                  `json:"stale"`
	FetchedAt time.Time             `json:"fetched_at"`
}

// OddsFetcher is the slice of the gateway the manager uses
type OddsFetcher interface {
	FetchOdds(ctx context.Context, sportKey string) gateway.Result[[]gateway.Event]
}

// Config tunes the manager
type Config struct {
	StaleWindow    time.Duration // defaults to models.MarketStaleWindow
	RefreshTimeout time.Duration // bound on background refreshes; defaults to 30s

	// Sports is the set of sport keys served in addition to those in the
	// fallback dataset. Any other key is rejected with ErrUnknownSport.
	Sports []string
}

// Manager implements the cache-first market retrieval
type Manager struct {
	store    oddscache.Store
	fetcher  OddsFetcher
	fallback *Fallback
	window   time.Duration
	timeout  time.Duration
	sports   map[string]struct{}
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time

	group    singleflight.Group
	inFlight sync.WaitGroup
}

type refreshOutcome struct {
	snapshots []models.OddsSnapshot
	fetchedAt time.Time
}

// NewManager creates a market manager. fallback may be nil.
func NewManager(
	store oddscache.Store,
	fetcher OddsFetcher,
	fallback *Fallback,
	cfg Config,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Manager {
	if cfg.StaleWindow <= 0 {
		cfg.StaleWindow = models.MarketStaleWindow
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}

	sports := make(map[string]struct{}, len(cfg.Sports))
	for _, k := range cfg.Sports {
		sports[k] = struct{}{}
	}
	for _, k := range fallback.Sports() {
		sports[k] = struct{}{}
	}

	return &Manager{
		store:    store,
		fetcher:  fetcher,
		fallback: fallback,
		window:   cfg.StaleWindow,
		timeout:  cfg.RefreshTimeout,
		sports:   sports,
		metrics:  metrics,
		logger:   logger.With().Str("component", "market_manager").Logger(),
		now:      time.Now,
	}
}

// GetMarkets serves a sport's markets. It returns ErrNoMarketData only when
// cache, network and fallback all come up empty.
func (m *Manager) GetMarkets(ctx context.Context, sportKey string) (*MarketsResult, error) {
	if err := m.checkSport(sportKey); err != nil {
		return nil, err
	}
	cached, meta := m.readCache(ctx, sportKey)

	decision := Classify(meta, len(cached), m.now(), m.window)
	m.metrics.MarketCacheDecisions.WithLabelValues(sportKey, decision.String()).Inc()

	switch decision {
	case DecisionServeFresh:
		return &MarketsResult{
			SportKey:  sportKey,
			Snapshots: cached,
			Source:    SourceCache,
			FetchedAt: meta.LastFetchTime,
		}, nil

	case DecisionServeStaleAndRefresh:
		m.refreshInBackground(sportKey)

		result := &MarketsResult{
			SportKey:  sportKey,
			Snapshots: cached,
			Source:    SourceCache,
			Stale:     true,
		}
		if meta != nil {
			result.FetchedAt = meta.LastFetchTime
		}
		return result, nil
	}

	outcome, err := m.refresh(ctx, sportKey)
	if err == nil && len(outcome.snapshots) > 0 {
		return &MarketsResult{
			SportKey:  sportKey,
			Snapshots: outcome.snapshots,
			Source:    SourceNetwork,
			FetchedAt: outcome.fetchedAt,
		}, nil
	}
	if err != nil {
		m.logger.Warn().Err(err).
			Str("sport_key", sportKey).
			Msg("market fetch failed, trying fallback data")
	}

	fallback := m.fallback.Snapshots(sportKey, m.logger)
	if len(fallback) == 0 {
		return nil, fmt.Errorf("%w for %s", models.ErrNoMarketData, sportKey)
	}

	return &MarketsResult{
		SportKey:  sportKey,
		Snapshots: fallback,
		Source:    SourceFallback,
		Stale:     true,
	}, nil
}

// RefreshMarkets fetches a sport unconditionally and overwrites its cache.
// On fetch failure the cache is left untouched and the error returned.
func (m *Manager) RefreshMarkets(ctx context.Context, sportKey string) (*MarketsResult, error) {
	if err := m.checkSport(sportKey); err != nil {
		return nil, err
	}
	outcome, err := m.refresh(ctx, sportKey)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh markets: %w", err)
	}

	return &MarketsResult{
		SportKey:  sportKey,
		Snapshots: outcome.snapshots,
		Source:    SourceNetwork,
		FetchedAt: outcome.fetchedAt,
	}, nil
}

// IsCacheStale reports whether the sport's cache is missing or older than the window
func (m *Manager) IsCacheStale(ctx context.Context, sportKey string) (bool, error) {
	meta, err := m.store.GetMetadata(ctx, sportKey)
	if err != nil {
		return false, fmt.Errorf("failed to read cache metadata: %w", err)
	}
	if meta == nil {
		return true, nil
	}
	return models.IsStale(meta.LastFetchTime, m.now(), m.window), nil
}

// Sports lists the sport keys the manager serves
func (m *Manager) Sports() []string {
	out := make([]string, 0, len(m.sports))
	for k := range m.sports {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// checkSport runs before anything touches the cache, the provider or a
// sport-labelled metric
func (m *Manager) checkSport(sportKey string) error {
	if _, ok := m.sports[sportKey]; !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownSport, sportKey)
	}
	return nil
}

// Wait blocks until background refreshes started so far have finished
func (m *Manager) Wait() {
	m.inFlight.Wait()
}

// readCache treats cache read failures as an empty cache
func (m *Manager) readCache(ctx context.Context, sportKey string) ([]models.OddsSnapshot, *models.SportCacheMetadata) {
	cached, err := m.store.GetSport(ctx, sportKey)
	if err != nil {
		m.logger.Warn().Err(err).Str("sport_key", sportKey).Msg("odds cache read failed")
		return nil, nil
	}

	meta, err := m.store.GetMetadata(ctx, sportKey)
	if err != nil {
		m.logger.Warn().Err(err).Str("sport_key", sportKey).Msg("odds cache metadata read failed")
		meta = nil
	}
	return cached, meta
}

func (m *Manager) refreshInBackground(sportKey string) {
	m.inFlight.Add(1)
	go func() {
		defer m.inFlight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		if _, err := m.refresh(ctx, sportKey); err != nil {
			m.logger.Warn().Err(err).
				Str("sport_key", sportKey).
				Msg("background market refresh failed")
		}
	}()
}

// refresh collapses concurrent refreshes of one sport into a single fetch
func (m *Manager) refresh(ctx context.Context, sportKey string) (*refreshOutcome, error) {
	v, err, _ := m.group.Do(sportKey, func() (interface{}, error) {
		return m.fetchAndStore(ctx, sportKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*refreshOutcome), nil
}

func (m *Manager) fetchAndStore(ctx context.Context, sportKey string) (*refreshOutcome, error) {
	res := m.fetcher.FetchOdds(ctx, sportKey)
	if !res.OK() {
		m.metrics.MarketRefreshTotal.WithLabelValues(sportKey, res.Kind.String()).Inc()
		return nil, &FetchError{Kind: res.Kind, StatusCode: res.StatusCode, Err: res.Err}
	}

	snapshots := BuildSnapshots(res.Value, m.logger)
	fetchedAt := m.now()

	if err := m.store.ReplaceSport(ctx, sportKey, snapshots, fetchedAt); err != nil {
		// The fetched data is still served; the next request fetches again
		m.metrics.MarketRefreshTotal.WithLabelValues(sportKey, "store_failed").Inc()
		m.logger.Error().Err(err).
			Str("sport_key", sportKey).
			Msg("failed to update odds cache")
	} else {
		m.metrics.MarketRefreshTotal.WithLabelValues(sportKey, "success").Inc()
	}

	m.logger.Info().
		Str("sport_key", sportKey).
		Int("received", len(res.Value)).
		Int("kept", len(snapshots)).
		Msg("markets refreshed")

	return &refreshOutcome{snapshots: snapshots, fetchedAt: fetchedAt}, nil
}

// FetchError is returned when the odds provider call did not succeed
type FetchError struct {
	Kind       gateway.Kind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("odds fetch %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable fetch failure
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == gateway.KindTransient
}
