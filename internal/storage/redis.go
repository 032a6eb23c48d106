package storage

import (
	"context"
	"fmt"

	"github.com/earthquake-city/quake-alerts/internal/dedup"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the set holding alerted ids
const DefaultRedisKey = "quake-alerts:alerted_ids"

// RedisStore keeps the seen-id set in a Redis SET
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ SeenStore = (*RedisStore)(nil)

// NewRedisStore connects using a redis:// URL and verifies the connection
func NewRedisStore(ctx context.Context, url, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}, nil
}

func (r *RedisStore) GetIDs(ctx context.Context) (dedup.IDSet, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read seen ids: %w", err)
	}
	return dedup.NewIDSet(members...), nil
}

func (r *RedisStore) AddIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.client.SAdd(ctx, r.key, toArgs(ids)...).Err(); err != nil {
		return fmt.Errorf("add seen ids: %w", err)
	}
	return nil
}

func (r *RedisStore) RemoveIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.client.SRem(ctx, r.key, toArgs(ids)...).Err(); err != nil {
		return fmt.Errorf("remove seen ids: %w", err)
	}
	return nil
}

// Close releases the client connection pool
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func toArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
