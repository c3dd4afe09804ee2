package snapshot

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore хранит снимок в одном ключе Redis.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore создаёт хранилище по указанному ключу.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Save записывает снимок без TTL.
func (r *RedisStore) Save(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, 0).Err()
}

// Load читает снимок; (nil, nil), если ключа ещё нет.
func (r *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
