package locks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const backendLocal = "local"

// LocalLocker holds supplier locks in-process. It is only correct when a single
// process mutates the ledger.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
	opts  Options
}

// NewLocalLocker constructs an in-process supplier locker.
func NewLocalLocker(opts Options) *LocalLocker {
	return &LocalLocker{
		slots: make(map[uuid.UUID]chan struct{}),
		opts:  opts.withDefaults(),
	}
}

func (l *LocalLocker) slot(supplierID uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[supplierID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[supplierID] = ch
	}
	return ch
}

// WithSupplierLock implements SupplierLocker.
func (l *LocalLocker) WithSupplierLock(ctx context.Context, supplierID uuid.UUID, fn func(ctx context.Context) error) error {
	ch := l.slot(supplierID)
	timer := time.NewTimer(l.opts.Timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
	case <-timer.C:
		if l.opts.Observer != nil {
			l.opts.Observer.ObserveLockTimeout(backendLocal)
		}
		return busyError(supplierID, l.opts.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ch }()

	return fn(ctx)
}
