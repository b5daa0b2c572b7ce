package ephemeral

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 100

// RedisStore implements Store on top of Redis.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "redis set failed").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "redis get failed").
			WithMetadata(map[string]any{"key": key})
	}
	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "redis delete failed")
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "redis exists failed")
	}
	return n > 0, nil
}

func (s *RedisStore) SetAdd(ctx context.Context, set, member string) error {
	if err := s.client.SAdd(ctx, set, member).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "redis set add failed")
	}
	return nil
}

func (s *RedisStore) SetContains(ctx context.Context, set, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "redis set membership failed")
	}
	return ok, nil
}

func (s *RedisStore) ScanByPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, globEscape(prefix)+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		// SCAN may return the same key more than once
		key := iter.Val()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "redis scan failed")
	}
	return keys, nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string {
	return globReplacer.Replace(s)
}
