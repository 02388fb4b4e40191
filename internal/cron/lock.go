package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umkmkit/hpp-backend/pkg/instance"
	pkgredis "github.com/umkmkit/hpp-backend/pkg/redis"
)

const defaultLockTTL = 30 * time.Minute

// ErrLockLost is returned by Refresh when the lease expired or was taken over.
var ErrLockLost = errors.New("cron lock lost")

// Lock makes a cron cycle exclusive.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// refresher is implemented by leases that expire on their own.
type refresher interface {
	Refresh(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a TTL lease keyed on the environment. The stored value
// identifies the holder so a worker never deletes or extends a lease it lost.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis store required for cron lock")
	case key == "":
		return nil, errors.New("cron lock key required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := instance.ID() + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", l.key, err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Refresh pushes the expiry out by another TTL while this worker still holds
// the lease.
func (l *RedisLock) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}
	if !held {
		l.token = ""
		return ErrLockLost
	}
	if err := l.store.Set(ctx, l.key, l.token, l.ttl); err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	return nil
}

// Release drops the lease if this worker still holds it. A lease that already
// expired is not an error.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}
	if held {
		if err := l.store.Del(ctx, l.key); err != nil {
			return fmt.Errorf("delete %s: %w", l.key, err)
		}
	}
	l.token = ""
	return nil
}

// holds must be called with mu held.
func (l *RedisLock) holds(ctx context.Context) (bool, error) {
	if l.token == "" {
		return false, nil
	}
	current, err := l.store.Get(ctx, l.key)
	switch {
	case pkgredis.IsNil(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("read %s: %w", l.key, err)
	}
	return current == l.token, nil
}

// LocalLock only guards the current process; used without Redis.
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock { return &LocalLock{} }

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}
