package ncbi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/prisma-miner/internal/domain"
)

// Cache backends accepted by NewCache.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 24 * time.Hour
	redisKeyPrefix   = "prisma:esummary:"
)

// SummaryCache stores raw esummary documents by SummaryKey.
type SummaryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, doc []byte) error
}

// SummaryKey identifies an esummary batch independently of id order.
func SummaryKey(db string, ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sum := sha256.Sum256([]byte(strings.ToLower(db) + "|" + strings.Join(sorted, ",")))
	return strings.ToLower(db) + ":" + hex.EncodeToString(sum[:16])
}

// NewCache builds the configured backend. It returns nil for "none".
func NewCache(ctx context.Context, cfg domain.CacheConfig) (SummaryCache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", CacheMemory:
		return NewMemoryCache(cfg.Size, cfg.TTL), nil
	case CacheRedis:
		rc, err := NewRedisCache(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case CacheNone:
		return nil, nil
	}
	return nil, domain.NewValidationError("cache.backend", "must be memory, redis or none", cfg.Backend)
}

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	doc, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(doc), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, doc []byte) error {
	m.lru.Add(key, slices.Clone(doc))
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int { return m.lru.Len() }

// RedisCache shares esummary documents between processes.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

type cachedSummary struct {
	Doc       json.RawMessage `json:"doc"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, ttl), nil
}

func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{redis: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	key = redisKeyPrefix + key
	val, err := r.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get esummary cache: %w", err)
	}

	var cached cachedSummary
	if err := json.Unmarshal(val, &cached); err != nil {
		// Remove corrupted cache entry
		r.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		r.redis.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Doc, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, doc []byte) error {
	if !json.Valid(doc) {
		return fmt.Errorf("refusing to cache invalid esummary JSON for %s", key)
	}
	now := time.Now()
	data, err := json.Marshal(cachedSummary{
		Doc:       doc,
		CachedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal esummary cache data: %w", err)
	}
	return r.redis.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.redis.Close()
}
