// Package cache stores computed report views in Redis or in process memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned for missing or expired keys
var ErrNotFound = errors.New("cache: key not found")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments an integer key, creating it at 1
	Incr(ctx context.Context, key string) (int64, error)
	Clear(ctx context.Context) error
	Close() error
}

// New builds the cache selected by cfg.Mode, falling back to memory when
// Redis is unreachable
func New(ctx context.Context, cfg *config.CacheConfig, logger *zap.Logger) Cache {
	if cfg.Mode != "redis" {
		return NewInMemoryCache()
	}
	rc, err := NewRedisCache(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory report cache", zap.String("addr", cfg.Addr), zap.Error(err))
		return NewInMemoryCache()
	}
	logger.Info("Report cache connected to Redis", zap.String("addr", cfg.Addr))
	return rc
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(ctx context.Context, addr string, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *RedisCache) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

func (m *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.data, key)
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Set stores value; a zero ttl never expires
func (m *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = entry
	return nil
}

func (m *InMemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *InMemoryCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	if entry, ok := m.data[key]; ok {
		parsed, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache: value at %s is not an integer", key)
		}
		n = parsed
	}
	n++
	m.data[key] = cacheEntry{value: []byte(strconv.FormatInt(n, 10))}
	return n, nil
}

func (m *InMemoryCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]cacheEntry)
	return nil
}

func (m *InMemoryCache) Close() error { return nil }

func GetJSON(ctx context.Context, cache Cache, key string, dest interface{}) error {
	data, err := cache.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func SetJSON(ctx context.Context, cache Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return cache.Set(ctx, key, data, ttl)
}
