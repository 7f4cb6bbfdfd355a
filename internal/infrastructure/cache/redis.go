package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clinicrx/internal/config"
	"clinicrx/internal/core/id"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/pkg/logger"
)

const stockKeyPrefix = "clinicrx:stock:"

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStockCache shares batch rows between server instances.
// Redis errors are logged and treated as a miss.
type RedisStockCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ stock.Cache = (*RedisStockCache)(nil)

// NewRedisStockCache creates a cache on an existing client; the caller keeps ownership of it.
func NewRedisStockCache(client redis.UniversalClient, ttl time.Duration) *RedisStockCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisStockCache{client: client, ttl: ttl}
}

func stockKey(itemID id.ID) string {
	return stockKeyPrefix + itemID.String()
}

func (c *RedisStockCache) Get(ctx context.Context, itemID id.ID) (*stock.Batch, bool) {
	data, err := c.client.Get(ctx, stockKey(itemID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "stock cache get failed", "stock_item_id", itemID, "error", err)
		}
		return nil, false
	}

	cb := cachedBatch{Batch: &stock.Batch{}}
	if err := json.Unmarshal(data, &cb); err != nil {
		logger.Warn(ctx, "stock cache entry corrupt", "stock_item_id", itemID, "error", err)
		return nil, false
	}
	cb.Batch.MedicineKey = cb.MedicineKey
	return cb.Batch, true
}

func (c *RedisStockCache) Set(ctx context.Context, b *stock.Batch) {
	if b == nil {
		return
	}
	data, err := json.Marshal(cachedBatch{Batch: b, MedicineKey: b.MedicineKey})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, stockKey(b.ID), data, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "stock cache set failed", "stock_item_id", b.ID, "error", err)
	}
}

func (c *RedisStockCache) Invalidate(ctx context.Context, itemIDs ...id.ID) {
	if len(itemIDs) == 0 {
		return
	}
	keys := make([]string, len(itemIDs))
	for i, itemID := range itemIDs {
		keys[i] = stockKey(itemID)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn(ctx, "stock cache invalidate failed", "keys", len(keys), "error", err)
	}
}

// cachedBatch keeps the medicine key, which the API encoding omits.
type cachedBatch struct {
	*stock.Batch
	MedicineKey string `json:"medicineKey"`
}
