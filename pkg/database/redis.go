package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a cached value is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

func NewRedisClient(redisURL string) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Redis key prefixes for organization
const (
	KeyPrefixSession    = "session:"
	KeyPrefixOAuthState = "oauthstate:"
	KeyPrefixIdentity   = "identity:"
	KeyPrefixRateLimit  = "ratelimit:"
)

// Session storage. The value is the sealed OAuth token blob.

func SetSession(ctx context.Context, client *redis.Client, sessionID string, sealed []byte, ttl time.Duration) error {
	return client.Set(ctx, KeyPrefixSession+sessionID, sealed, ttl).Err()
}

func GetSession(ctx context.Context, client *redis.Client, sessionID string) ([]byte, error) {
	val, err := client.Get(ctx, KeyPrefixSession+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func DeleteSession(ctx context.Context, client *redis.Client, sessionID string) error {
	return client.Del(ctx, KeyPrefixSession+sessionID).Err()
}

// OAuth state tokens, single-use with a short TTL.

func SetOAuthState(ctx context.Context, client *redis.Client, state string, ttl time.Duration) error {
	return client.Set(ctx, KeyPrefixOAuthState+state, "1", ttl).Err()
}

// ConsumeOAuthState deletes the state and reports whether it existed.
func ConsumeOAuthState(ctx context.Context, client *redis.Client, state string) (bool, error) {
	n, err := client.Del(ctx, KeyPrefixOAuthState+state).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Identity provider response cache (short TTL, keyed per token).

func SetCachedIdentity(ctx context.Context, client *redis.Client, key string, data []byte, ttl time.Duration) error {
	return client.Set(ctx, KeyPrefixIdentity+key, data, ttl).Err()
}

func GetCachedIdentity(ctx context.Context, client *redis.Client, key string) ([]byte, error) {
	val, err := client.Get(ctx, KeyPrefixIdentity+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func DeleteCachedIdentity(ctx context.Context, client *redis.Client, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = KeyPrefixIdentity + k
	}
	return client.Del(ctx, full...).Err()
}

// Rate limiting

func IncrementRateLimit(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, error) {
	fullKey := KeyPrefixRateLimit + key
	pipe := client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
