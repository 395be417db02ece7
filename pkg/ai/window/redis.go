package window

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed fixed_window.lua
var fixedWindowScript string

// keyPrefix namespaces governance counters inside a shared Redis instance.
const keyPrefix = "aigov:"

// RedisStore is a fixed-window counter store backed by Redis.
//
// The increment-with-expiry cycle runs inside a Lua script, so it is atomic
// even when many application replicas share the same counters. Unlike
// MemoryStore, Redis evicts expired windows itself; no sweep is needed.
//
// Errors from Redis are returned to the caller; the rate limiter decides
// the failure policy (it fails closed).
type RedisStore struct {
	client    *redis.Client
	scriptSHA string
}

// NewRedisStore creates a Redis-backed store. It verifies connectivity and
// preloads the increment script.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	sha, err := client.ScriptLoad(ctx, fixedWindowScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load counter script: %w", err)
	}

	return &RedisStore{client: client, scriptSHA: sha}, nil
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key Key, window time.Duration) (Counter, error) {
	cmd := s.client.EvalSha(ctx, s.scriptSHA, []string{keyPrefix + key.String()}, window.Milliseconds())

	result, err := cmd.Result()
	if err != nil {
		return Counter{}, fmt.Errorf("counter increment failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return Counter{}, fmt.Errorf("unexpected counter script reply: %v", result)
	}

	count, _ := values[0].(int64)
	ttlMillis, _ := values[1].(int64)

	return Counter{
		Count:   count,
		ResetAt: time.Now().Add(time.Duration(ttlMillis) * time.Millisecond),
	}, nil
}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
