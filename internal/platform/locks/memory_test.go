package locks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	m := NewKeyedMutex(0)
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, OrderKey("o-1"))
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := inside.Add(1)
			for {
				prev := maxInside.Load()
				if n <= prev || maxInside.CompareAndSwap(prev, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			_ = release(ctx)
		}()
	}
	wg.Wait()

	if got := maxInside.Load(); got != 1 {
		t.Fatalf("expected at most one holder, saw %d", got)
	}
	if m.size() != 0 {
		t.Fatalf("expected slots to be reclaimed, %d left", m.size())
	}
}

func TestKeyedMutexDistinctKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex(50 * time.Millisecond)
	ctx := context.Background()

	releaseOrder, err := m.Acquire(ctx, OrderKey("o-1"))
	if err != nil {
		t.Fatalf("Acquire order: %v", err)
	}
	defer releaseOrder(ctx)

	releaseLot, err := m.Acquire(ctx, LotKey("lot-1"))
	if err != nil {
		t.Fatalf("expected lot lock while order lock held: %v", err)
	}
	_ = releaseLot(ctx)
}

func TestKeyedMutexTimesOut(t *testing.T) {
	m := NewKeyedMutex(20 * time.Millisecond)
	ctx := context.Background()

	release, err := m.Acquire(ctx, LotKey("lot-1"))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := m.Acquire(ctx, LotKey("lot-1")); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	_ = release(ctx)
	_ = release(ctx)

	again, err := m.Acquire(ctx, LotKey("lot-1"))
	if err != nil {
		t.Fatalf("expected lock to be free after release: %v", err)
	}
	_ = again(ctx)
	if m.size() != 0 {
		t.Fatalf("expected no slots left, got %d", m.size())
	}
}
