// Package locks serialises work on a single order or lot across request handlers and instances.
package locks

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be obtained before the wait budget or ctx expired.
var ErrNotAcquired = errors.New("locks: lock not acquired")

// Release gives the lock back. It is safe to call once; later calls are no-ops.
type Release func(ctx context.Context) error

// Locker hands out exclusive leases per key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// OrderKey names the lock guarding an order and its line items.
func OrderKey(orderID string) string {
	return "fulfillment:lock:order:" + orderID
}

// LotKey names the lock guarding an inventory lot's reservations.
func LotKey(lotID string) string {
	return "fulfillment:lock:lot:" + lotID
}
