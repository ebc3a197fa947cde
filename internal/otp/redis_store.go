package otp

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// 比较成功才删除，保证一次性
const consumeScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

const takeScript = `
local v = redis.call("GET", KEYS[1])
if v then
	redis.call("DEL", KEYS[1])
end
return v
`

type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Put(ctx context.Context, key, code string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, code, ttl).Err()
}

func (s *RedisStore) Verify(ctx context.Context, key, code string) (bool, error) {
	n, err := s.client.Eval(ctx, consumeScript, []string{s.prefix + key}, code).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) Take(ctx context.Context, key string) (string, bool, error) {
	code, err := s.client.Eval(ctx, takeScript, []string{s.prefix + key}).Text()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
