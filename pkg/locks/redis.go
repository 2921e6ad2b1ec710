package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const backendRedis = "redis"

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker holds supplier locks in Redis so every process sees them.
type RedisLocker struct {
	store redisStore
	opts  Options
}

// NewRedisLocker constructs a Redis-backed supplier locker.
func NewRedisLocker(store redisStore, opts Options) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis store required for supplier locks")
	}
	return &RedisLocker{store: store, opts: opts.withDefaults()}, nil
}

// WithSupplierLock implements SupplierLocker.
func (l *RedisLocker) WithSupplierLock(ctx context.Context, supplierID uuid.UUID, fn func(ctx context.Context) error) error {
	key := l.store.LockKey(lockScope, supplierID.String())
	token := uuid.NewString()

	acquireCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	for {
		ok, err := l.store.SetNX(acquireCtx, key, token, l.opts.TTL)
		if err != nil && acquireCtx.Err() == nil {
			return fmt.Errorf("acquire supplier lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-acquireCtx.Done():
			if l.opts.Observer != nil {
				l.opts.Observer.ObserveLockTimeout(backendRedis)
			}
			return acquireErr(ctx, supplierID, l.opts.Timeout)
		case <-time.After(l.opts.Retry):
		}
	}

	defer func() {
		releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancelRelease()
		_, _ = l.store.CompareAndDelete(releaseCtx, key, token)
	}()

	return fn(ctx)
}
