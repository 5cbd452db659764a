package advisory

import (
	"sync"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
)

// CachedEstimate is an estimate with its cache timestamp
type CachedEstimate struct {
	Estimate Estimate  `json:"estimate"`
	StoredAt time.Time `json:"stored_at"`
	Stale    bool      `json:"stale"`
}

// AnalysisCache keeps the latest estimate per event
type AnalysisCache struct {
	mu      sync.RWMutex
	entries map[string]CachedEstimate
	window  time.Duration
	now     func() time.Time
}

// NewAnalysisCache creates a cache. A zero window means
// models.AnalysisStaleWindow.
func NewAnalysisCache(window time.Duration) *AnalysisCache {
	if window <= 0 {
		window = models.AnalysisStaleWindow
	}
	return &AnalysisCache{
		entries: make(map[string]CachedEstimate),
		window:  window,
		now:     time.Now,
	}
}

// Put validates and stores an estimate, replacing any earlier one for the
// same event. Out-of-range estimates are rejected and never stored.
func (c *AnalysisCache) Put(e Estimate) error {
	if err := ValidateEstimate(e); err != nil {
		return err
	}

	now := c.now()
	if e.GeneratedAt.IsZero() {
		e.GeneratedAt = now
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.EventID] = CachedEstimate{Estimate: e, StoredAt: now}
	return nil
}

// Get returns the estimate for eventID with Stale set once it is older than
// the window
func (c *AnalysisCache) Get(eventID string) (CachedEstimate, bool) {
	c.mu.RLock()
	entry, ok := c.entries[eventID]
	c.mu.RUnlock()
	if !ok {
		return CachedEstimate{}, false
	}

	entry.Stale = models.IsStale(entry.StoredAt, c.now(), c.window)
	return entry, true
}

// Prune drops stale entries and returns how many were removed
func (c *AnalysisCache) Prune() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, entry := range c.entries {
		if models.IsStale(entry.StoredAt, now, c.window) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}
