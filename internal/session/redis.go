package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisBackend stores each session as one JSON document under
// keyPrefix+id, expiring with the session.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend wraps an existing client. The caller owns the client.
func NewRedisBackend(client *redis.Client, keyPrefix string) *RedisBackend {
	return &RedisBackend{client: client, keyPrefix: keyPrefix}
}

func (b *RedisBackend) key(id string) string {
	return b.keyPrefix + id
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context, cookieValue string) (string, map[string]json.RawMessage, bool, error) {
	if _, err := uuid.Parse(cookieValue); err != nil {
		return "", nil, false, nil
	}

	data, err := b.client.Get(ctx, b.key(cookieValue)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, fmt.Errorf("loading session from redis: %w", err)
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return "", nil, false, fmt.Errorf("decoding session from redis: %w", err)
	}
	return cookieValue, values, true, nil
}

// Save implements Backend.
func (b *RedisBackend) Save(ctx context.Context, id string, values map[string]json.RawMessage, maxAge time.Duration) (string, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	if err := b.client.Set(ctx, b.key(id), data, maxAge).Err(); err != nil {
		return "", fmt.Errorf("saving session to redis: %w", err)
	}
	return id, nil
}

// Destroy implements Backend.
func (b *RedisBackend) Destroy(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, b.key(id)).Err(); err != nil {
		return fmt.Errorf("deleting session from redis: %w", err)
	}
	return nil
}
