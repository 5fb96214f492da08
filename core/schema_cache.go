package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// SchemaCache stores resolved action schemas across requests and replicas.
// Values are opaque to the cache; callers pass a pointer to decode into.
type SchemaCache interface {
	// Get loads the entry for actionID/scope into dst.
	// Returns false on a miss, a Redis error or corrupt data.
	Get(ctx context.Context, actionID, scope string, dst interface{}) bool

	// Set stores v for actionID/scope.
	Set(ctx context.Context, actionID, scope string, v interface{}) error

	// Stats returns cache statistics for monitoring.
	Stats() map[string]interface{}
}

// RedisSchemaCache provides Redis-backed schema caching with a TTL and key prefix.
type RedisSchemaCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string

	hits   int64
	misses int64
	errors int64
}

// SchemaCacheOption allows customization of the schema cache behavior.
type SchemaCacheOption func(*RedisSchemaCache)

// WithTTL sets the TTL for cached schemas. Default is DefaultSchemaCacheTTL.
func WithTTL(ttl time.Duration) SchemaCacheOption {
	return func(c *RedisSchemaCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPrefix sets the Redis key prefix. Default is DefaultRedisPrefix.
func WithPrefix(prefix string) SchemaCacheOption {
	return func(c *RedisSchemaCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// NewSchemaCache creates a Redis-backed schema cache.
//
//	cache := NewSchemaCache(redisClient,
//	    WithTTL(30 * time.Minute),
//	    WithPrefix("staging:schema:"),
//	)
func NewSchemaCache(redisClient *redis.Client, opts ...SchemaCacheOption) *RedisSchemaCache {
	cache := &RedisSchemaCache{
		client: redisClient,
		ttl:    DefaultSchemaCacheTTL,
		prefix: DefaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

func (c *RedisSchemaCache) key(actionID, scope string) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, actionID, scope)
}

// Get retrieves an entry from Redis. Failures degrade to a miss.
func (c *RedisSchemaCache) Get(ctx context.Context, actionID, scope string, dst interface{}) bool {
	val, err := c.client.Get(ctx, c.key(actionID, scope)).Bytes()
	if err != nil {
		if err != redis.Nil {
			atomic.AddInt64(&c.errors, 1)
		}
		atomic.AddInt64(&c.misses, 1)
		return false
	}

	if err := json.Unmarshal(val, dst); err != nil {
		atomic.AddInt64(&c.misses, 1)
		return false
	}

	atomic.AddInt64(&c.hits, 1)
	return true
}

// Set stores an entry in Redis.
func (c *RedisSchemaCache) Set(ctx context.Context, actionID, scope string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if err := c.client.Set(ctx, c.key(actionID, scope), data, c.ttl).Err(); err != nil {
		atomic.AddInt64(&c.errors, 1)
		return fmt.Errorf("failed to set schema in Redis: %w", err)
	}
	return nil
}

// Stats returns cache performance statistics for monitoring.
func (c *RedisSchemaCache) Stats() map[string]interface{} {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses

	stats := map[string]interface{}{
		"hits":          hits,
		"misses":        misses,
		"errors":        atomic.LoadInt64(&c.errors),
		"total_lookups": total,
	}
	if total > 0 {
		stats["hit_rate"] = float64(hits) / float64(total)
	}
	return stats
}

// NewRedisClient parses a redis:// URL, connects and pings the server.
func NewRedisClient(ctx context.Context, redisURL string, logger Logger) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", ErrInvalidConfiguration)
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %v: %w", err, ErrInvalidConfiguration)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if logger != nil {
			logger.Error("Failed to connect to Redis", map[string]interface{}{
				"operation": "redis_connect",
				"addr":      opt.Addr,
				"error":     err.Error(),
			})
		}
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opt.Addr, err)
	}

	if logger != nil {
		logger.Info("Connected to Redis", map[string]interface{}{
			"operation": "redis_connect",
			"addr":      opt.Addr,
			"db":        opt.DB,
		})
	}
	return client, nil
}
