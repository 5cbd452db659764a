package oddscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps one hash per sport (field = event id) and one metadata key
// per sport. Replacements run inside MULTI/EXEC.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a store over an existing client
func NewRedisStore(client *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "redis_odds_cache").Logger(),
	}
}

func snapshotsKey(sportKey string) string { return "odds:sport:" + sportKey }
func metadataKey(sportKey string) string  { return "odds:meta:" + sportKey }

func (s *RedisStore) GetSport(ctx context.Context, sportKey string) ([]models.OddsSnapshot, error) {
	fields, err := s.client.HGetAll(ctx, snapshotsKey(sportKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("read cached snapshots: %w", err)
	}

	snapshots := make([]models.OddsSnapshot, 0, len(fields))
	for eventID, raw := range fields {
		var snap models.OddsSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			s.logger.Warn().Err(err).
				Str("sport_key", sportKey).
				Str("event_id", eventID).
				Msg("skipping undecodable cached snapshot")
			continue
		}
		snapshots = append(snapshots, snap)
	}

	sortSnapshots(snapshots)
	return snapshots, nil
}

func (s *RedisStore) GetMetadata(ctx context.Context, sportKey string) (*models.SportCacheMetadata, error) {
	raw, err := s.client.Get(ctx, metadataKey(sportKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache metadata: %w", err)
	}

	var meta models.SportCacheMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode cache metadata: %w", err)
	}
	return &meta, nil
}

func (s *RedisStore) ReplaceSport(ctx context.Context, sportKey string, snapshots []models.OddsSnapshot, fetchedAt time.Time) error {
	stamped := stamp(sportKey, snapshots, fetchedAt)

	fields := make([]interface{}, 0, len(stamped)*2)
	for _, snap := range stamped {
		b, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", snap.EventID, err)
		}
		fields = append(fields, snap.EventID, b)
	}

	meta, err := json.Marshal(models.SportCacheMetadata{
		SportKey:      sportKey,
		LastFetchTime: fetchedAt,
		EventCount:    len(stamped),
	})
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, snapshotsKey(sportKey))
		if len(fields) > 0 {
			pipe.HSet(ctx, snapshotsKey(sportKey), fields...)
		}
		pipe.Set(ctx, metadataKey(sportKey), meta, 0)
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("sport_key", sportKey).
			Msg("failed to replace cached sport")
		return fmt.Errorf("replace cached sport: %w", err)
	}

	s.logger.Debug().
		Str("sport_key", sportKey).
		Int("event_count", len(stamped)).
		Msg("cached sport replaced")

	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
