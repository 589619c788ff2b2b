package cache

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/capacity-checker/internal/domain"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
)

// RedisStore is the shared fast store. Connection and protocol failures surface as
// TransientIOError so the tier manager can fall through.
type RedisStore struct {
	rdb goredis.UniversalClient
}

func NewRedisStore(rdb goredis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, ns types.CacheNamespace, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, ns.Key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Transient("redis", "get", err)
	}
	return raw, true, nil
}

func (s *RedisStore) Set(ctx context.Context, env types.CacheEnvelope) error {
	if err := s.rdb.Set(ctx, env.StorageKey(), env.Value, env.TTL).Err(); err != nil {
		return errs.Transient("redis", "set", err)
	}
	return nil
}

// SetMany writes every envelope inside MULTI/EXEC so readers never see half of a group.
func (s *RedisStore) SetMany(ctx context.Context, envs ...types.CacheEnvelope) error {
	if len(envs) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for _, env := range envs {
			p.Set(ctx, env.StorageKey(), env.Value, env.TTL)
		}
		return nil
	})
	if err != nil {
		return errs.Transient("redis", "set_many", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, ns types.CacheNamespace, key string) error {
	if err := s.rdb.Del(ctx, ns.Key(key)).Err(); err != nil {
		return errs.Transient("redis", "delete", err)
	}
	return nil
}
