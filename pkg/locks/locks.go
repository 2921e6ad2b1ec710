// Package locks serializes mutations that touch the same supplier's ledger.
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultTTL       = 30 * time.Second
	defaultRetryStep = 25 * time.Millisecond
	lockScope        = "supplier"
)

// SupplierLocker runs fn while holding the exclusive lock for supplierID.
// Acquisition that does not succeed within the configured timeout returns a CodeBusy error.
type SupplierLocker interface {
	WithSupplierLock(ctx context.Context, supplierID uuid.UUID, fn func(ctx context.Context) error) error
}

// TimeoutObserver is notified when acquisition gives up.
type TimeoutObserver interface {
	ObserveLockTimeout(backend string)
}

// Options configures lock acquisition.
type Options struct {
	Timeout  time.Duration
	TTL      time.Duration
	Retry    time.Duration
	Observer TimeoutObserver
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	if o.Retry <= 0 {
		o.Retry = defaultRetryStep
	}
	return o
}

func busyError(supplierID uuid.UUID, timeout time.Duration) error {
	return pkgerrors.New(pkgerrors.CodeBusy, fmt.Sprintf("supplier %s is locked by another operation (waited %s)", supplierID, timeout))
}

func acquireErr(ctx context.Context, supplierID uuid.UUID, timeout time.Duration) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return busyError(supplierID, timeout)
}
