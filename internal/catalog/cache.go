package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-sync/internal/model"
)

// DefaultCacheTTL is how long a full catalog snapshot is reused.
const DefaultCacheTTL = 5 * time.Minute

// SnapshotCache holds full-catalog fetches between fallback resolutions.
// Implementations treat their own failures as misses.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]model.ProductRecord, bool)
	Set(ctx context.Context, key string, products []model.ProductRecord)
}

// snapshotKey identifies a full fetch by its size and ordering.
func snapshotKey(q model.FilterQuery) string {
	return "catalog:full:" + strconv.Itoa(q.Limit) + ":" + q.Sort + ":" + q.Order
}

type snapshotEntry struct {
	products  []model.ProductRecord
	fetchedAt time.Time
}

// MemoryCache is an in-process SnapshotCache with a fixed TTL.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]snapshotEntry
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl uses DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]snapshotEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]model.ProductRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.products, true
}

func (c *MemoryCache) Set(_ context.Context, key string, products []model.ProductRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = snapshotEntry{products: products, fetchedAt: c.now()}
}

// RedisCache shares snapshots between service instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to redisURL (redis://host:port/db) and pings it.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return newRedisCache(client, ttl, logger), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]model.ProductRecord, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("snapshot cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	var products []model.ProductRecord
	if err := json.Unmarshal(data, &products); err != nil {
		c.logger.Warn("snapshot cache entry corrupted", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return products, true
}

func (c *RedisCache) Set(ctx context.Context, key string, products []model.ProductRecord) {
	data, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ SnapshotCache = (*MemoryCache)(nil)
	_ SnapshotCache = (*RedisCache)(nil)
)
