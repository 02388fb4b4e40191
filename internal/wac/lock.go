package wac

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"github.com/umkmkit/hpp-backend/pkg/logger"
)

// Locker serializes ledger writes per ingredient key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker holding one mutex per key. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, entry, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(key, entry, true) })
	}, nil
}

func (k *KeyedMutex) release(key string, entry *keyedEntry, held bool) {
	if held {
		<-entry.ch
	}
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

const (
	defaultRedisLockTTL   = 30 * time.Second
	defaultRedisLockRetry = 50 * time.Millisecond
	defaultRedisLockTries = 40
)

// RedisLocker takes a redislock lease per key so ledger writes are
// serialized across processes. When the lease cannot be obtained the write
// proceeds and relies on the optimistic version check.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	logg   *logger.Logger
}

func NewRedisLocker(client *redislock.Client, prefix string, ttl time.Duration, logg *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultRedisLockTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, logg: logg}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(defaultRedisLockRetry), defaultRedisLockTries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithIngredientID(ctx, key), "could not obtain redis lock; relying on version check")
		}
		return func() {}, nil
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// the caller's context may already be done by now
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}

// Chain acquires every locker in order and releases them in reverse.
type Chain []Locker

func (c Chain) Lock(ctx context.Context, key string) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, locker := range c {
		if locker == nil {
			continue
		}
		unlock, err := locker.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}
