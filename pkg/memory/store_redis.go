package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "neuravault:memory:"

// RedisStore persists each user's timeline as a Redis list of JSON items,
// appended in arrival order. Useful when several instances share one store.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed store over an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisUserKey(userID string) string {
	return redisKeyPrefix + userID
}

// Append pushes one item onto the user's list.
func (s *RedisStore) Append(ctx context.Context, item MemoryItem) error {
	if item.UserID == "" {
		return ErrInvalidUserID
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("memory: marshal item: %w", err)
	}
	if err := s.client.RPush(ctx, redisUserKey(item.UserID), data).Err(); err != nil {
		return fmt.Errorf("memory: redis append: %w", err)
	}
	return nil
}

// GetAll reads the user's full list and returns it ascending by timestamp.
func (s *RedisStore) GetAll(ctx context.Context, userID string) ([]MemoryItem, error) {
	raw, err := s.client.LRange(ctx, redisUserKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory: redis range: %w", err)
	}
	items := make([]MemoryItem, 0, len(raw))
	for _, entry := range raw {
		var item MemoryItem
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			return nil, fmt.Errorf("memory: decode item: %w", err)
		}
		items = append(items, item)
	}
	sortChronological(items)
	return items, nil
}

// DeleteAll removes the user's list and returns how many items it held.
func (s *RedisStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	key := redisUserKey(userID)
	count, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("memory: redis len: %w", err)
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return 0, fmt.Errorf("memory: redis delete: %w", err)
	}
	return int(count), nil
}

// UserCounts scans the keyspace for timeline keys and reads each length.
func (s *RedisStore) UserCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		length, err := s.client.LLen(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("memory: redis len: %w", err)
		}
		counts[strings.TrimPrefix(key, redisKeyPrefix)] = int(length)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("memory: redis scan: %w", err)
	}
	return counts, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
