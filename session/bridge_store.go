package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the bridge backend cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrBridgeNotFound is returned when no token is bridged under the given ID.
var ErrBridgeNotFound = errors.New("bridged session not found")

const minBridgeTTL = time.Second

// BridgeStore keeps bearer tokens posted by client-rendered contexts so that
// server-rendered requests carrying the matching bridge cookie can use them.
//
// Entries expire no later than the token they hold.
type BridgeStore struct {
	redis  redis.UniversalClient
	prefix string
	maxTTL time.Duration
}

// NewBridgeStore creates a [BridgeStore] backed by the given Redis client.
// prefix sets the key namespace; maxTTL caps entry lifetime when the token
// expiry is unknown or further away.
func NewBridgeStore(client redis.UniversalClient, prefix string, maxTTL time.Duration) *BridgeStore {
	if prefix == "" {
		prefix = "gs"
	}
	if maxTTL <= 0 {
		maxTTL = 15 * time.Minute
	}
	return &BridgeStore{
		redis:  client,
		prefix: prefix,
		maxTTL: maxTTL,
	}
}

func (s *BridgeStore) key(bridgeID string) string {
	return s.prefix + ":bridge:" + bridgeID
}

// TTLFor returns the lifetime of an entry for a token expiring at expiresAt.
// A zero expiresAt means unknown and yields the configured maximum.
func (s *BridgeStore) TTLFor(now, expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return s.maxTTL
	}
	ttl := expiresAt.Sub(now)
	if ttl > s.maxTTL {
		return s.maxTTL
	}
	return ttl
}

// Save stores raw under bridgeID for ttl. Tokens whose remaining lifetime is
// below one second are not stored.
//
//	Performance: 1 Redis SET.
func (s *BridgeStore) Save(ctx context.Context, bridgeID, raw string, ttl time.Duration) error {
	if bridgeID == "" || raw == "" {
		return errors.New("bridge id and token are required")
	}
	if ttl < minBridgeTTL {
		return fmt.Errorf("bridge ttl %s below minimum", ttl)
	}

	if err := s.redis.Set(ctx, s.key(bridgeID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load returns the token bridged under bridgeID.
//
//	Performance: 1 Redis GET.
func (s *BridgeStore) Load(ctx context.Context, bridgeID string) (string, error) {
	if bridgeID == "" {
		return "", ErrBridgeNotFound
	}

	raw, err := s.redis.Get(ctx, s.key(bridgeID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrBridgeNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return raw, nil
}

// Delete removes the bridged token. Deleting a missing entry is not an error.
func (s *BridgeStore) Delete(ctx context.Context, bridgeID string) error {
	if bridgeID == "" {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(bridgeID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *BridgeStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
