package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const tableKeyPrefix = "fxtable:"

// RedisStore is a Redis-backed table store for deployments that want cache
// reuse across restarts. Redis owns eviction via key TTL; the ExpiresAt
// check on read guards against clock drift between writers.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func tableKey(base model.Code) string {
	return tableKeyPrefix + base.String()
}

func (s *RedisStore) Get(ctx context.Context, base model.Code) (*Entry, error) {
	data, err := s.client.Get(ctx, tableKey(base)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get table for %s: %w", base, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table for %s: %w", base, err)
	}

	if entry.Expired(time.Now()) {
		_ = s.client.Del(ctx, tableKey(base))
		return nil, nil
	}
	return &entry, nil
}

func (s *RedisStore) Set(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal table for %s: %w", entry.Base, err)
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("table for %s is already expired", entry.Base)
	}

	if err := s.client.Set(ctx, tableKey(entry.Base), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save table for %s: %w", entry.Base, err)
	}
	return nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
