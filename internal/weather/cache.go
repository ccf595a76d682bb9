package weather

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"energy-forecast/internal/models"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Cache stores serialized forecast bodies with a TTL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache stores entries in Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns ErrCacheMiss for absent keys
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a process-local TTL map
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !m.now().Before(entry.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expires: m.now().Add(ttl)}
	return nil
}

// CachedSource serves repeated (point, days) lookups from a cache.
// Failed fetches are never stored.
type CachedSource struct {
	source  Source
	cache   Cache
	ttl     time.Duration
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCachedSource wraps source. A ttl of zero or less disables caching.
func NewCachedSource(source Source, cache Cache, ttl time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CachedSource {
	return &CachedSource{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (c *CachedSource) FetchHourly(ctx context.Context, point models.GeoPoint, days int) (*models.HourlyWeatherSeries, error) {
	if c.ttl <= 0 || c.cache == nil {
		return c.source.FetchHourly(ctx, point, days)
	}

	key := cacheKey(point, days)
	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var series models.HourlyWeatherSeries
		if jsonErr := json.Unmarshal(raw, &series); jsonErr == nil {
			c.metrics.RecordCacheResult("hit")
			c.logger.Debug(ctx, "[CACHE_HIT] Serving cached hourly forecast", logging.Fields{"key": key})
			return &series, nil
		}
		c.metrics.RecordCacheResult("error")
	case errors.Is(err, ErrCacheMiss):
		c.metrics.RecordCacheResult("miss")
	default:
		c.metrics.RecordCacheResult("error")
		c.logger.Warn(ctx, "[CACHE_ERROR] Weather cache lookup failed", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}

	series, err := c.source.FetchHourly(ctx, point, days)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(series); err == nil {
		if err := c.cache.Set(ctx, key, encoded, c.ttl); err != nil {
			c.logger.Warn(ctx, "[CACHE_ERROR] Failed to store hourly forecast", logging.Fields{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return series, nil
}
