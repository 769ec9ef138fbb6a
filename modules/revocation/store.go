// Package revocation provides the Redis-backed set of credentials that were
// invalidated before their natural expiry.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	"github.com/redis/go-redis/v9"
)

// Marker is the value stored for a revoked credential.
const Marker = "revoked"

// Store keeps revoked credentials in Redis. Entries expire on their own once
// the credential would have expired anyway.
type Store struct {
	client *redis.Client
	prefix string
	stats  *Stats
}

// Stats tracks store activity.
type Stats struct {
	Puts   uint64 `json:"puts"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Puts    uint64 `json:"puts"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Errors  uint64 `json:"errors"`
	Lookups uint64 `json:"lookups"`
}

// Config holds store configuration.
type Config struct {
	RedisAddr string
	Password  string
	Prefix    string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr: "localhost:6379",
		Prefix:    "revoked:",
	}
}

// New creates a new store on top of an existing client.
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		stats:  &Stats{},
	}
}

// Put records key with the given marker until ttl elapses. A non-positive
// ttl means the credential is already past expiry and nothing is written.
func (s *Store) Put(ctx context.Context, key, marker string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, s.prefix+key, marker, ttl).Err(); err != nil {
		atomic.AddUint64(&s.stats.Errors, 1)
		return fmt.Errorf("%w: revocation put: %v", apperr.ErrStoreUnavailable, err)
	}

	atomic.AddUint64(&s.stats.Puts, 1)
	return nil
}

// Get returns the marker stored for key. The boolean is false when the key is
// absent. Any transport error is reported as ErrStoreUnavailable so callers
// never mistake an outage for an absent entry.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	marker, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&s.stats.Misses, 1)
			return "", false, nil
		}
		atomic.AddUint64(&s.stats.Errors, 1)
		return "", false, fmt.Errorf("%w: revocation get: %v", apperr.ErrStoreUnavailable, err)
	}

	atomic.AddUint64(&s.stats.Hits, 1)
	return marker, true, nil
}

// GetStats returns the current statistics.
func (s *Store) GetStats() StatsSnapshot {
	hits := atomic.LoadUint64(&s.stats.Hits)
	misses := atomic.LoadUint64(&s.stats.Misses)

	return StatsSnapshot{
		Puts:    atomic.LoadUint64(&s.stats.Puts),
		Hits:    hits,
		Misses:  misses,
		Errors:  atomic.LoadUint64(&s.stats.Errors),
		Lookups: hits + misses,
	}
}

// Ping checks if the Redis connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *Store) Close() error {
	return s.client.Close()
}
