package market

import (
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
)

// Decision is the cache-first action taken for a markets request
type Decision int

const (
	// DecisionServeFresh serves cached data with no network call
	DecisionServeFresh Decision = iota
	// DecisionServeStaleAndRefresh serves cached data and refreshes in the background
	DecisionServeStaleAndRefresh
	// DecisionFetchRequired fetches synchronously because nothing is cached
	DecisionFetchRequired
)

func (d Decision) String() string {
	switch d {
	case DecisionServeFresh:
		return "fresh"
	case DecisionServeStaleAndRefresh:
		return "stale_refresh"
	case DecisionFetchRequired:
		return "fetch_required"
	default:
		return "unknown"
	}
}

// Classify decides how to serve a sport from its cache state. Cached events
// without metadata are treated as stale.
func Classify(meta *models.SportCacheMetadata, cachedCount int, now time.Time, window time.Duration) Decision {
	if cachedCount == 0 {
		return DecisionFetchRequired
	}
	if meta == nil || models.IsStale(meta.LastFetchTime, now, window) {
		return DecisionServeStaleAndRefresh
	}
	return DecisionServeFresh
}
