// Package idempotency records which externally delivered events were already
// processed.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(source, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", source, eventID)
}

// Processed reports whether key was recorded and has not expired yet.
func (s *Store) Processed(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// MarkProcessed records key for the store's TTL. Callers mark an event only
// after its effects are durable.
func (s *Store) MarkProcessed(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}
