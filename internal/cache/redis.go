package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"profile-service/internal/platform/metrics"
	"profile-service/pkg/platform/circuit"
	"profile-service/pkg/platform/sentinel"
)

// RedisCommands is the subset of *redis.Client the backend uses.
type RedisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisBackend is the external cache. While its circuit is open every call
// short-circuits: reads miss and writes are skipped.
type RedisBackend struct {
	client  RedisCommands
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type RedisOption func(*RedisBackend)

func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *RedisBackend) {
		r.logger = logger
	}
}

func WithRedisMetrics(m *metrics.Metrics) RedisOption {
	return func(r *RedisBackend) {
		r.metrics = m
	}
}

func WithRedisBreaker(b *circuit.Breaker) RedisOption {
	return func(r *RedisBackend) {
		r.breaker = b
	}
}

func NewRedisBackend(client RedisCommands, opts ...RedisOption) *RedisBackend {
	r := &RedisBackend{
		client:  client,
		breaker: circuit.New("redis-cache"),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if !r.breaker.Allow() {
		return nil, sentinel.ErrUnavailable
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.success()
		return nil, sentinel.ErrCacheMiss
	}
	if err != nil {
		r.failure(ctx, "get", err)
		return nil, sentinel.ErrUnavailable
	}
	r.success()
	return b, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.breaker.Allow() {
		return sentinel.ErrUnavailable
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.failure(ctx, "set", err)
		return sentinel.ErrUnavailable
	}
	r.success()
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if !r.breaker.Allow() {
		return sentinel.ErrUnavailable
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.failure(ctx, "del", err)
		return sentinel.ErrUnavailable
	}
	r.success()
	return nil
}

func (r *RedisBackend) failure(ctx context.Context, op string, err error) {
	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.metrics.SetCacheDegraded(true)
		r.logger.WarnContext(ctx, "redis cache circuit opened, serving from store", "op", op, "error", err)
	}
}

func (r *RedisBackend) success() {
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.metrics.SetCacheDegraded(false)
		r.logger.Info("redis cache circuit closed")
	}
}
