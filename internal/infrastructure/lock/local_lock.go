package lock

import (
	"context"
	"sync"
)

// LocalLocker 进程内的按 key 加锁，未启用 Redis 的单实例部署使用
// 加锁顺序与 RedisLocker 相同
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	sorted := SortedKeys(keys)
	held := make([]*slot, 0, len(sorted))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i].ch
			l.drop(sorted[i])
		}
	}

	for _, key := range sorted {
		s := l.slot(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, s)
		case <-ctx.Done():
			l.drop(key)
			release()
			return nil, ctx.Err()
		}
	}

	return release, nil
}

// slot 取出 key 对应的槽位并增加引用
func (l *LocalLocker) slot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

// drop 减少引用，没有等待者时删除槽位
func (l *LocalLocker) drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
