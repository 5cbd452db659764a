package oddscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type snapshotRecord struct {
	SportKey     string    `gorm:"primaryKey;size:128"`
	EventID      string    `gorm:"primaryKey;size:128"`
	CommenceTime time.Time `gorm:"not null"`
	Payload      string    `gorm:"type:text;not null"`
	CachedAt     time.Time `gorm:"not null"`
}

func (snapshotRecord) TableName() string { return "odds_snapshots" }

type metadataRecord struct {
	SportKey      string    `gorm:"primaryKey;size:128"`
	LastFetchTime time.Time `gorm:"not null"`
	EventCount    int       `gorm:"not null"`
}

func (metadataRecord) TableName() string { return "sport_cache_metadata" }

// GormStore keeps the cache in a SQL database through gorm. SQLite serves
// the embedded single-process mode, PostgreSQL the shared mode.
type GormStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// OpenSQLite opens (or creates) an embedded SQLite cache database
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}

	// SQLite allows a single writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// OpenPostgres opens a PostgreSQL-backed cache database
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres cache: %w", err)
	}
	return db, nil
}

// NewGormStore migrates the cache tables and returns the store
func NewGormStore(db *gorm.DB, logger zerolog.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&snapshotRecord{}, &metadataRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate odds cache tables: %w", err)
	}

	return &GormStore{
		db:     db,
		logger: logger.With().Str("component", "gorm_odds_cache").Logger(),
	}, nil
}

func (s *GormStore) GetSport(ctx context.Context, sportKey string) ([]models.OddsSnapshot, error) {
	var records []snapshotRecord
	err := s.db.WithContext(ctx).
		Where("sport_key = ?", sportKey).
		Order("commence_time ASC, event_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("read cached snapshots: %w", err)
	}

	snapshots := make([]models.OddsSnapshot, 0, len(records))
	for _, rec := range records {
		var snap models.OddsSnapshot
		if err := json.Unmarshal([]byte(rec.Payload), &snap); err != nil {
			s.logger.Warn().Err(err).
				Str("sport_key", sportKey).
				Str("event_id", rec.EventID).
				Msg("skipping undecodable cached snapshot")
			continue
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

func (s *GormStore) GetMetadata(ctx context.Context, sportKey string) (*models.SportCacheMetadata, error) {
	var rec metadataRecord
	err := s.db.WithContext(ctx).Where("sport_key = ?", sportKey).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache metadata: %w", err)
	}

	return &models.SportCacheMetadata{
		SportKey:      rec.SportKey,
		LastFetchTime: rec.LastFetchTime,
		EventCount:    rec.EventCount,
	}, nil
}

func (s *GormStore) ReplaceSport(ctx context.Context, sportKey string, snapshots []models.OddsSnapshot, fetchedAt time.Time) error {
	stamped := stamp(sportKey, snapshots, fetchedAt)

	records := make([]snapshotRecord, 0, len(stamped))
	for _, snap := range stamped {
		b, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", snap.EventID, err)
		}
		records = append(records, snapshotRecord{
			EventID:      snap.EventID,
			SportKey:     sportKey,
			CommenceTime: snap.CommenceTime,
			Payload:      string(b),
			CachedAt:     fetchedAt,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sport_key = ?", sportKey).Delete(&snapshotRecord{}).Error; err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}

		if len(records) > 0 {
			if err := tx.Create(&records).Error; err != nil {
				return fmt.Errorf("insert snapshots: %w", err)
			}
		}

		meta := metadataRecord{SportKey: sportKey, LastFetchTime: fetchedAt, EventCount: len(records)}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error; err != nil {
			return fmt.Errorf("upsert metadata: %w", err)
		}
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
		Int("event_count", len(records)).
		Msg("cached sport replaced")

	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
