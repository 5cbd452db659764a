package oddscache

import (
	"context"
	"sync"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
)

// MemoryStore keeps the cache in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]models.OddsSnapshot
	metadata  map[string]models.SportCacheMetadata
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]models.OddsSnapshot),
		metadata:  make(map[string]models.SportCacheMetadata),
	}
}

func (s *MemoryStore) GetSport(ctx context.Context, sportKey string) ([]models.OddsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.OddsSnapshot, len(s.snapshots[sportKey]))
	copy(out, s.snapshots[sportKey])
	return out, nil
}

func (s *MemoryStore) GetMetadata(ctx context.Context, sportKey string) (*models.SportCacheMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.metadata[sportKey]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (s *MemoryStore) ReplaceSport(ctx context.Context, sportKey string, snapshots []models.OddsSnapshot, fetchedAt time.Time) error {
	stamped := stamp(sportKey, snapshots, fetchedAt)
	sortSnapshots(stamped)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[sportKey] = stamped
	s.metadata[sportKey] = models.SportCacheMetadata{
		SportKey:      sportKey,
		LastFetchTime: fetchedAt,
		EventCount:    len(stamped),
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
