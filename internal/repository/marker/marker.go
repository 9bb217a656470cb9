package marker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a marker is remembered.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "sos:fanout:"

// errAlertIDRequired is returned when no alert id is given.
var errAlertIDRequired = errors.New("alert id must be provided")

// Marker guards an alert against repeated fan-out.
type Marker interface {
	// Acquire returns true the first time it is called for alertID within the TTL.
	Acquire(ctx context.Context, alertID string) (bool, error)
	// Release forgets alertID so a retried trigger can run again.
	Release(ctx context.Context, alertID string) error
}

// RedisMarker stores markers in Redis with SET NX.
type RedisMarker struct {
	// rdb is the Redis client.
	rdb redis.UniversalClient
	// ttl bounds how long markers live.
	ttl time.Duration
}

// NewRedisMarker parses redisURL, checks the connection and returns a marker.
func NewRedisMarker(ctx context.Context, redisURL string, ttl time.Duration) (*RedisMarker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3

	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)

	if err = rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisMarkerWithClient(rdb, ttl), nil
}

// NewRedisMarkerWithClient wraps an existing client.
func NewRedisMarkerWithClient(rdb redis.UniversalClient, ttl time.Duration) *RedisMarker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisMarker{rdb: rdb, ttl: ttl}
}

// Acquire sets the marker if it does not exist yet.
func (m *RedisMarker) Acquire(ctx context.Context, alertID string) (bool, error) {
	if alertID == "" {
		return false, errAlertIDRequired
	}

	ok, err := m.rdb.SetNX(ctx, keyPrefix+alertID, time.Now().UTC().Format(time.RFC3339Nano), m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set fan-out marker: %w", err)
	}

	return ok, nil
}

// Release deletes the marker.
func (m *RedisMarker) Release(ctx context.Context, alertID string) error {
	if err := m.rdb.Del(ctx, keyPrefix+alertID).Err(); err != nil {
		return fmt.Errorf("delete fan-out marker: %w", err)
	}

	return nil
}

// Close closes the Redis client.
func (m *RedisMarker) Close() error {
	return m.rdb.Close()
}

// MemoryMarker keeps markers in process memory.
type MemoryMarker struct {
	// cache holds one entry per alert id.
	cache *gocache.Cache
	// ttl bounds how long markers live.
	ttl time.Duration
}

// NewMemoryMarker returns a marker that forgets entries after ttl.
func NewMemoryMarker(ttl time.Duration) *MemoryMarker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryMarker{
		cache: gocache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

// Acquire adds the marker; go-cache's Add fails when the key is present.
func (m *MemoryMarker) Acquire(_ context.Context, alertID string) (bool, error) {
	if alertID == "" {
		return false, errAlertIDRequired
	}

	return m.cache.Add(keyPrefix+alertID, struct{}{}, m.ttl) == nil, nil
}

// Release deletes the marker.
func (m *MemoryMarker) Release(_ context.Context, alertID string) error {
	m.cache.Delete(keyPrefix + alertID)

	return nil
}
