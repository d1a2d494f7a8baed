package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一账户同时发起两笔取款
//
//   goroutine1: 查询余额=100 -> 扣款100 -> 余额=0
//   goroutine2: 查询余额=100 -> 扣款100 -> 条件更新失败 -> 重试
//
// 条件更新已经保证不会超扣，锁的作用是让同一账户的请求排队，
// 减少冲突重试，多实例部署时尤其明显
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX PX timeout
// 释放：Lua 脚本先比较 value 再删除，避免误删别人的锁
//
// 【多把锁】
//
// 转账需要同时锁住两个账户。所有 key 按字典序加锁、逆序释放，
// 账户 ID 补零到固定宽度，字典序即数值序：
//   A->B 与 B->A 两笔转账都会先锁较小的账户，不会互相等待形成死锁
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 单个 key 的分布式锁
type DistributedLock struct {
	client     redis.Cmdable
	key        string        // 锁的 key
	value      string        // 锁持有者标识
	expiration time.Duration // 过期时间，持有者崩溃时锁自动释放
}

func NewDistributedLock(client redis.Cmdable, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return fmt.Errorf("%s: %w", l.key, ErrLockFailed)
}

// Unlock 释放锁，只删除自己持有的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// ============================================================================
// Locker：资金引擎使用的多 key 加锁接口
// ============================================================================

// Locker 按确定顺序获取一组锁，返回的 unlock 逆序释放
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// AccountKey 账户锁的 key
func AccountKey(accountID int64) string {
	return fmt.Sprintf("lock:account:%020d", accountID)
}

// ServiceBalanceKey 服务余额锁的 key，按组合键加锁
func ServiceBalanceKey(customerID, serviceTypeID int64) string {
	return fmt.Sprintf("lock:service:%020d:%020d", customerID, serviceTypeID)
}

// SortedKeys 去重并按字典序排序
func SortedKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RedisLocker 基于 DistributedLock 的 Locker
type RedisLocker struct {
	client     redis.Cmdable
	expiration time.Duration
	retryWait  time.Duration
	maxRetries int
}

func NewRedisLocker(client redis.Cmdable, expiration, retryWait time.Duration, maxRetries int) *RedisLocker {
	return &RedisLocker{
		client:     client,
		expiration: expiration,
		retryWait:  retryWait,
		maxRetries: maxRetries,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	// value 使用随机 token，同一请求的所有 key 共用，便于排查
	owner := uuid.NewString()

	held := make([]*DistributedLock, 0, len(keys))
	release := func() {
		// 释放不受请求 ctx 取消影响
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Unlock(unlockCtx)
		}
	}

	for _, key := range SortedKeys(keys) {
		l := NewDistributedLock(r.client, key, owner, r.expiration)
		if err := l.Lock(ctx, r.retryWait, r.maxRetries); err != nil {
			release()
			return nil, err
		}
		held = append(held, l)
	}

	return release, nil
}

// NoopLocker 不加锁，并发正确性完全由存储层的条件更新保证
type NoopLocker struct{}

func (NoopLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	return func() {}, nil
}
