package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/bft-labs/outqueue/internal/ports"
)

// Redis implements ports.KVStore on a redis server so queues survive the
// host process and can be picked up by another instance with the same key.
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	maxBytes int
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithKeyPrefix namespaces every key, e.g. "outqueue:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithValueLimit rejects values larger than maxBytes with
// ports.ErrQuotaExceeded.
func WithValueLimit(maxBytes int) RedisOption {
	return func(r *Redis) {
		r.maxBytes = maxBytes
	}
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConnectRedis initializes a client from a redis:// URL or a host:port.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Get returns the value stored under key.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// Set stores value under key without expiry.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if r.maxBytes > 0 && len(value) > r.maxBytes {
		return ports.ErrQuotaExceeded
	}
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

// Probe pings the server.
func (r *Redis) Probe(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrStoreUnavailable, err)
	}
	return nil
}
