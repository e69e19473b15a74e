package persistence

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Float64Slice stores a []float64 as JSON in SQLite.
type Float64Slice []float64

// Scan implements sql.Scanner.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float64Slice", value)
	}

	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// cacheEntryModel is the GORM model for one cached embedding. The content
// hash is the key: the cache is content-addressed, so an entry is only ever
// inserted or read, never keyed differently.
type cacheEntryModel struct {
	ID          int64        `gorm:"column:id;primaryKey;autoIncrement"`
	ContentHash string       `gorm:"column:content_hash;uniqueIndex"`
	Embedding   Float64Slice `gorm:"column:embedding;type:json"`
}

// TableName returns the cache table name.
func (cacheEntryModel) TableName() string { return "embedding_cache" }

// EmbeddingCache is a durable content-addressed cache mapping content hash
// to embedding vector. It has no eviction: identical content is embedded at
// most once for the lifetime of the cache.
type EmbeddingCache struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewEmbeddingCache creates the cache, migrating its table eagerly. A
// migration failure is fatal: the process must not run without durable
// storage.
func NewEmbeddingCache(db *gorm.DB, logger *slog.Logger) (*EmbeddingCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&cacheEntryModel{}); err != nil {
		return nil, fmt.Errorf("migrate embedding cache: %w", err)
	}
	return &EmbeddingCache{db: db, logger: logger}, nil
}

// Get returns the cached embedding for a content hash, reporting whether it
// was found.
func (c *EmbeddingCache) Get(ctx context.Context, contentHash string) ([]float64, bool, error) {
	var entry cacheEntryModel
	err := c.db.WithContext(ctx).
		Where("content_hash = ?", contentHash).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return []float64(entry.Embedding), true, nil
}

// Set stores an embedding under its content hash. Writing the same key
// again upserts; with content addressing the value is identical, so the
// call is effectively idempotent.
func (c *EmbeddingCache) Set(ctx context.Context, contentHash string, embedding []float64) error {
	vec := make(Float64Slice, len(embedding))
	copy(vec, embedding)

	entry := cacheEntryModel{ContentHash: contentHash, Embedding: vec}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Clear wipes all entries. Administrative use only.
func (c *EmbeddingCache) Clear(ctx context.Context) error {
	if err := c.db.WithContext(ctx).Where("1 = 1").Delete(&cacheEntryModel{}).Error; err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	c.logger.Info("embedding cache cleared")
	return nil
}

// ListSample returns up to limit cached content hashes, for diagnostics.
func (c *EmbeddingCache) ListSample(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	var hashes []string
	err := c.db.WithContext(ctx).
		Model(&cacheEntryModel{}).
		Order("content_hash").
		Limit(limit).
		Pluck("content_hash", &hashes).Error
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	return hashes, nil
}

// Count returns the number of cached embeddings.
func (c *EmbeddingCache) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&cacheEntryModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}
