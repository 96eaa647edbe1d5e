package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlanaPvart7/Proyect2/internal/platform/locks"
)

type heldLocksKey struct{}

// lockSet serialises work on orders and lots. Keys already held by the calling context are not
// reacquired, which lets a line-item mutation run its reconcile under the same order lock.
type lockSet struct {
	locker locks.Locker
}

// with acquires keys in the given order, runs fn and releases in reverse order.
func (l lockSet) with(ctx context.Context, keys []string, fn func(context.Context) error) (err error) {
	if l.locker == nil {
		return fn(ctx)
	}
	held, _ := ctx.Value(heldLocksKey{}).(map[string]struct{})
	next := make(map[string]struct{}, len(held)+len(keys))
	for key := range held {
		next[key] = struct{}{}
	}

	var releases []locks.Release
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			if releaseErr := releases[i](context.WithoutCancel(ctx)); releaseErr != nil && err == nil {
				err = fmt.Errorf("%w: release lock: %v", ErrUnavailable, releaseErr)
			}
		}
	}()

	for _, key := range keys {
		if _, ok := next[key]; ok {
			continue
		}
		release, acquireErr := l.locker.Acquire(ctx, key)
		if acquireErr != nil {
			if errors.Is(acquireErr, locks.ErrNotAcquired) {
				return fmt.Errorf("%w: %s is busy, retry later", ErrConflict, key)
			}
			return fmt.Errorf("%w: acquire lock: %v", ErrUnavailable, acquireErr)
		}
		releases = append(releases, release)
		next[key] = struct{}{}
	}

	return fn(context.WithValue(ctx, heldLocksKey{}, next))
}
