package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired 未能取得锁
	ErrLockNotAcquired = errors.New("failed to acquire master wallet lock")
)

const masterLockKey = "gateway:tron:master_lock"

// releaseScript 只释放自己持有的锁
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// MasterLock 主钱包广播互斥锁
// 进程内的串行化由 service 层互斥锁完成；该锁阻止多实例部署时
// 不同进程交错使用主钱包的 ref_block 窗口
type MasterLock struct {
	rdb        redis.UniversalClient
	expiration time.Duration
	retry      time.Duration
}

// NewMasterLock 创建主钱包锁
func NewMasterLock(rdb redis.UniversalClient) *MasterLock {
	return &MasterLock{
		rdb:        rdb,
		expiration: 30 * time.Second,
		retry:      100 * time.Millisecond,
	}
}

// WithLock 在锁保护下执行 fn
func (l *MasterLock) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	token := uuid.New().String()

	if err := l.acquire(ctx, token); err != nil {
		return err
	}
	defer l.release(token)

	return fn(ctx)
}

// acquire 自旋获取锁直到成功或 ctx 结束
func (l *MasterLock) acquire(ctx context.Context, token string) error {
	for {
		ok, err := l.rdb.SetNX(ctx, masterLockKey, token, l.expiration).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLockNotAcquired, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

// release 释放锁，用独立超时防止调用方 ctx 已取消
func (l *MasterLock) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	l.rdb.Eval(ctx, releaseScript, []string{masterLockKey}, token)
}
