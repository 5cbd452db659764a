// Package oddscache persists per-sport odds snapshots and their fetch
// metadata. A sport's snapshot set is always replaced as a whole.
package oddscache

import (
	"context"
	"sort"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
)

// Store is the odds cache contract shared by every backend
type Store interface {
	// GetSport returns the cached snapshots for a sport ordered by commence time.
	// An uncached sport yields an empty slice, not an error.
	GetSport(ctx context.Context, sportKey string) ([]models.OddsSnapshot, error)

	// GetMetadata returns nil when the sport has never been fetched
	GetMetadata(ctx context.Context, sportKey string) (*models.SportCacheMetadata, error)

	// ReplaceSport deletes the sport's snapshots, inserts the new set and
	// updates the metadata. Either all three happen or none do.
	ReplaceSport(ctx context.Context, sportKey string, snapshots []models.OddsSnapshot, fetchedAt time.Time) error

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
}

func sortSnapshots(snapshots []models.OddsSnapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		if !snapshots[i].CommenceTime.Equal(snapshots[j].CommenceTime) {
			return snapshots[i].CommenceTime.Before(snapshots[j].CommenceTime)
		}
		return snapshots[i].EventID < snapshots[j].EventID
	})
}

// stamp sets SportKey and CachedAt on a copy of snapshots. A sport holds
// at most one snapshot per event, so a repeated event id replaces the
// earlier entry in place.
func stamp(sportKey string, snapshots []models.OddsSnapshot, fetchedAt time.Time) []models.OddsSnapshot {
	out := make([]models.OddsSnapshot, 0, len(snapshots))
	seen := make(map[string]int, len(snapshots))
	for _, s := range snapshots {
		s.SportKey = sportKey
		s.CachedAt = fetchedAt
		if i, ok := seen[s.EventID]; ok {
			out[i] = s
			continue
		}
		seen[s.EventID] = len(out)
		out = append(out, s)
	}
	return out
}
