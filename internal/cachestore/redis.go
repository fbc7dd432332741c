package cachestore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "survey:cache:"

// RedisStore implements Store on a shared redis instance, for distributed
// runs where every worker should see the same cache.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects a redis-backed store and verifies the connection.
func NewRedis(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrapf(err, "cachestore: redis ping %s", addr)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, fp string) (*Entry, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+fp).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cachestore: redis load")
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, eris.Wrap(err, "cachestore: redis decode entry")
	}
	return &e, nil
}

func (s *RedisStore) Store(ctx context.Context, fp string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "cachestore: redis encode entry")
	}
	if err := s.client.Set(ctx, redisKeyPrefix+fp, raw, 0).Err(); err != nil {
		return eris.Wrap(err, "cachestore: redis store")
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, eris.Wrap(err, "cachestore: redis scan")
	}
	return n, nil
}

func (s *RedisStore) Purge(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return n, eris.Wrap(err, "cachestore: redis delete")
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, eris.Wrap(err, "cachestore: redis scan")
	}
	return n, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
