package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// cacheRecord is one persisted cache entry.
type cacheRecord struct {
	Key      string    `gorm:"column:cache_key;primaryKey;size:255"`
	Payload  []byte    `gorm:"column:payload"`
	StoredAt time.Time `gorm:"column:stored_at;index"`
}

func (cacheRecord) TableName() string {
	return "sun_cache"
}

// SQLite is a durable key-value store that survives process restarts.
// Values are stored as JSON.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&cacheRecord{}); err != nil {
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Get decodes the value stored under key into dst and returns when it was stored.
func (s *SQLite) Get(ctx context.Context, key string, dst any) (time.Time, error) {
	var rec cacheRecord
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(rec.Payload, dst); err != nil {
		return time.Time{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec.StoredAt, nil
}

// Put stores v under key, replacing any previous value.
func (s *SQLite) Put(ctx context.Context, key string, v any, storedAt time.Time) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	rec := cacheRecord{Key: key, Payload: payload, StoredAt: storedAt.UTC()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&cacheRecord{}).Error
}

// DeleteStoredBefore removes every entry stored before cutoff.
func (s *SQLite) DeleteStoredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("stored_at < ?", cutoff.UTC()).Delete(&cacheRecord{})
	return res.RowsAffected, res.Error
}

// Clear removes every entry.
func (s *SQLite) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&cacheRecord{}).Error
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
