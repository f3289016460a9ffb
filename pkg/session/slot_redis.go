package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSlotPrefix = "docuquery:session:"

// RedisSlot keeps the value under a Redis key. A zero TTL keeps it until cleared.
type RedisSlot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisSlot returns the slot for one client id.
func NewRedisSlot(client *redis.Client, clientID string, ttl time.Duration) *RedisSlot {
	return &RedisSlot{client: client, key: SlotKey(clientID), ttl: ttl}
}

// SlotKey builds the Redis key for a client id.
func SlotKey(clientID string) string {
	return redisSlotPrefix + clientID
}

func (s *RedisSlot) Load(ctx context.Context) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisSlot) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *RedisSlot) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
