// Package kv is the transient key-value store: JSON values with a TTL that
// Redis expires on its own.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the process-wide Redis client.
type Store struct {
	client *redis.Client
}

// New builds a Store on top of an existing client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Set stores v JSON-encoded under key for ttl, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

// SetIfAbsent stores v under key only when the key does not exist. It reports
// whether the write happened.
func (s *Store) SetIfAbsent(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}
	ok, err := s.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("kv setnx: %w", err)
	}
	return ok, nil
}

// Get decodes the value under key into dst. It reports false when the key is
// absent or expired.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv get: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Exists reports whether key is live.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv exists: %w", err)
	}
	return n > 0, nil
}

// Delete removes keys and reports whether at least one of them existed. Only
// one concurrent caller observes true for the same key.
func (s *Store) Delete(ctx context.Context, keys ...string) (bool, error) {
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("kv del: %w", err)
	}
	return n > 0, nil
}

// Incr bumps the counter under key. The first increment starts a window of
// length ttl; later increments do not extend it.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kv incr: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("kv expire: %w", err)
		}
	}
	return n, nil
}

// TTL returns the remaining lifetime of key, or zero when it is absent.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kv ttl: %w", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
