package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const redisKeyPrefix = "checkoutly:session:"

// RedisStore shares conversation state between server replicas.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore connects to redisURL (redis://[user:pass@]host:port/db) and pings it.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis URL must be provided")
	}
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{parsed.Addr},
		Username: parsed.Username,
		Password: parsed.Password,
		DB:       parsed.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	log.Info().Str("addr", parsed.Addr).Msg("memory_redis_connected")
	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, chatID string) (string, error) {
	ctx, span := tracer.Start(ctx, "memory.redis.get")
	defer span.End()

	product, err := s.client.Get(ctx, redisKeyPrefix+chatID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("redis get: %w", err)
	}
	return product, nil
}

// Set implements Store. The key's TTL is refreshed on every write.
func (s *RedisStore) Set(ctx context.Context, chatID, product string) error {
	if Ambiguous(product) {
		return nil
	}
	ctx, span := tracer.Start(ctx, "memory.redis.set",
		trace.WithAttributes(attribute.String("memory.product", product)))
	defer span.End()

	if err := s.client.Set(ctx, redisKeyPrefix+chatID, product, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
