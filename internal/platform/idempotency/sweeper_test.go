package idempotency

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "user:u1|short", "fp-1", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve short: %v", err)
	}
	if _, err := store.Reserve(ctx, "user:u1|long", "fp-2", fixedTime, time.Hour); err != nil {
		t.Fatalf("reserve long: %v", err)
	}

	removed, err := store.CleanupExpired(ctx, fixedTime.Add(2*time.Minute), 0)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one expired record removed, got %d", removed)
	}

	res, err := store.Reserve(ctx, "user:u1|long", "fp-2", fixedTime.Add(3*time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("reserve again: %v", err)
	}
	if res.State != ReservationStatePending {
		t.Fatalf("expected surviving record to stay pending, got %v", res.State)
	}
}

func TestMemoryStoreReclaimsExpiredKeyWithNewFingerprint(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "user:u1|k", "fp-1", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	res, err := store.Reserve(ctx, "user:u1|k", "fp-2", fixedTime.Add(time.Hour), time.Minute)
	if err != nil {
		t.Fatalf("expected expired key to be reclaimed, got %v", err)
	}
	if res.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v", res.State)
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Sweep(ctx, NewMemoryStore(), time.Millisecond, 10, nil)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
