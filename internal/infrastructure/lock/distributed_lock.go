package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 钱包锁
// ============================================================================
//
// 同一用户的余额变更必须串行：加锁 SET key owner NX EX ttl，
// 释放时用 Lua 校验 owner 再删除，避免删掉已过期后被他人持有的锁。
// 数据库侧仍有 FOR UPDATE 与条件更新兜底，锁只负责削峰与快速失败。
//
// ============================================================================

var ErrLockFailed = errors.New("获取钱包锁失败")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock 基于 Redis 的互斥锁
type DistributedLock struct {
	client     redis.Cmdable
	key        string
	owner      string
	expiration time.Duration
}

func NewDistributedLock(client redis.Cmdable, key, owner string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		owner:      owner,
		expiration: expiration,
	}
}

// NewWalletLock 按用户维度创建钱包锁，owner 为随机 uuid
func NewWalletLock(client redis.Cmdable, userID int64, ttl time.Duration) *DistributedLock {
	return NewDistributedLock(client, WalletLockKey(userID), uuid.NewString(), ttl)
}

func WalletLockKey(userID int64) string {
	return fmt.Sprintf("wallet:lock:user:%d", userID)
}

func (l *DistributedLock) Key() string { return l.key }

// TryLock 非阻塞加锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.owner, l.expiration).Result()
}

// Lock 轮询加锁，超过 maxRetries 次返回 ErrLockFailed
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 仅当锁仍归自己持有时删除
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.owner).Err()
}
