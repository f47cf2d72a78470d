// internal/cache/cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"techpack-studio/internal/common/database"
	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/models"
)

const keyPrefix = "techpack"

// TechFileCache keeps the last generated tech files per (product, revision) in Redis.
// A nil *TechFileCache is a valid, always-missing cache.
type TechFileCache struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func New(redis *database.RedisClient, ttl time.Duration, log logger.Logger) *TechFileCache {
	return &TechFileCache{
		redis: redis,
		ttl:   ttl,
		logger: log.WithFields(map[string]interface{}{
			"component": "tech-file-cache",
		}),
	}
}

func Key(productID, revisionID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, productID, revisionID)
}

// Get returns the cached tech files. A miss is (zero, false, nil).
func (c *TechFileCache) Get(ctx context.Context, productID, revisionID string) (models.TechFiles, bool, error) {
	if c == nil || c.redis == nil {
		return models.TechFiles{}, false, nil
	}

	var files models.TechFiles
	err := c.redis.GetJSON(ctx, Key(productID, revisionID), &files)
	if errors.Is(err, database.ErrCacheMiss) {
		return models.TechFiles{}, false, nil
	}
	if err != nil {
		return models.TechFiles{}, false, err
	}
	return files, files.HasData(), nil
}

// Put stores files unless they hold nothing worth resuming.
func (c *TechFileCache) Put(ctx context.Context, productID, revisionID string, files models.TechFiles) error {
	if c == nil || c.redis == nil || !files.HasData() {
		return nil
	}
	if err := c.redis.SetJSON(ctx, Key(productID, revisionID), files, c.ttl); err != nil {
		return err
	}
	c.logger.Debug("tech files cached", map[string]interface{}{
		"productId":  productID,
		"revisionId": revisionID,
	})
	return nil
}

func (c *TechFileCache) Invalidate(ctx context.Context, productID, revisionID string) error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, Key(productID, revisionID))
}
