package syncqueue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryStore is a slice-backed queue store for dev and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items []Item
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds an item at the tail.
func (s *MemoryStore) Append(_ context.Context, it Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, it)
	return nil
}

// Items returns the queue in enqueue order.
func (s *MemoryStore) Items(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Replace swaps the queue contents.
func (s *MemoryStore) Replace(_ context.Context, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items[:0:0], items...)
	return nil
}

// Len returns the queue depth.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

// RedisStore keeps the queue in a Redis list so it survives restarts.
// RPUSH on enqueue and head-first reads keep FIFO order.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore builds a store over the given list key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "attendsync:offline"
	}
	return &RedisStore{client: client, key: key}
}

// Append adds an item at the tail.
func (s *RedisStore) Append(ctx context.Context, it Item) error {
	data, err := json.Marshal(it)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.key, data).Err()
}

// Items returns the queue in enqueue order.
func (s *RedisStore) Items(ctx context.Context) ([]Item, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		var it Item
		if err := json.Unmarshal([]byte(entry), &it); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// Replace swaps the queue contents atomically.
func (s *RedisStore) Replace(ctx context.Context, items []Item) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, s.key, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Len returns the queue depth.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	return int(n), err
}
