package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
)

func TestAvailabilityCountsOnlyReservingOrders(t *testing.T) {
	f := newFixture(t)
	f.store.addProduct("prod-1", "Widget", "10.00")
	f.store.addLot("lot-1", "prod-1", 10)

	f.seedOpenOrder("ord-open")
	f.store.addItem(domain.OrderLineItem{ID: "itm-a", OrderID: "ord-open", ProductID: "prod-1", LotID: "lot-1", Quantity: 4})

	f.store.addOrder("ord-done", "user-3")
	f.store.addRecord("ord-done", statusInProgress, f.now.Add(-2*time.Hour))
	f.store.addRecord("ord-done", statusDelivered, f.now.Add(-time.Hour))
	f.store.addItem(domain.OrderLineItem{ID: "itm-b", OrderID: "ord-done", ProductID: "prod-1", LotID: "lot-1", Quantity: 3})

	// No status history: non-reserving.
	f.store.addOrder("ord-orphan", "user-4")
	f.store.addItem(domain.OrderLineItem{ID: "itm-c", OrderID: "ord-orphan", ProductID: "prod-1", LotID: "lot-1", Quantity: 2})

	got, err := f.availability.Availability(context.Background(), "lot-1")
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if got.Stock != 10 || got.Reserved != 4 || got.Available != 6 {
		t.Fatalf("expected stock=10 reserved=4 available=6, got %+v", got)
	}
	if got.Inconsistent || got.Oversold != 0 {
		t.Fatalf("expected consistent lot, got %+v", got)
	}
	if got.Available != got.Stock-got.Reserved {
		t.Fatalf("available must equal stock minus reserved")
	}
}

func TestAvailabilityLotWithoutItems(t *testing.T) {
	f := newFixture(t)
	f.store.addLot("lot-1", "prod-1", 7)

	got, err := f.availability.Availability(context.Background(), "lot-1")
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if got.Reserved != 0 || got.Available != 7 {
		t.Fatalf("unexpected availability %+v", got)
	}
}

func TestAvailabilityFlagsOversoldLotOncePerVersion(t *testing.T) {
	f := newFixture(t)
	f.store.addLot("lot-1", "prod-1", 2)
	f.seedOpenOrder("ord-1")
	f.store.addItem(domain.OrderLineItem{ID: "itm-1", OrderID: "ord-1", ProductID: "prod-1", LotID: "lot-1", Quantity: 5})

	for i := 0; i < 2; i++ {
		got, err := f.availability.Availability(context.Background(), "lot-1")
		if err != nil {
			t.Fatalf("Availability must not fail on oversold stock: %v", err)
		}
		if !got.Inconsistent || got.Oversold != 3 || got.Available != 0 || got.Reserved != 5 {
			t.Fatalf("expected oversold by 3, got %+v", got)
		}
	}

	if n := f.logs.count("availability.inconsistent"); n != 2 {
		t.Fatalf("expected every detection to be logged, got %d", n)
	}
	events := f.events.ofType(EventInventoryOversold)
	if len(events) != 1 {
		t.Fatalf("expected a single oversold event for the lot version, got %d", len(events))
	}
	if events[0].LotID != "lot-1" || events[0].Payload["oversold"] != 3 {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestAvailabilityExcludingLineItem(t *testing.T) {
	f := newFixture(t)
	f.store.addLot("lot-1", "prod-1", 10)
	f.seedOpenOrder("ord-1")
	f.store.addItem(domain.OrderLineItem{ID: "itm-1", OrderID: "ord-1", ProductID: "prod-1", LotID: "lot-1", Quantity: 4})

	lot := f.store.lots["lot-1"]
	got, err := f.availability.ForLot(context.Background(), lot, ExcludingLineItem("itm-1"))
	if err != nil {
		t.Fatalf("ForLot: %v", err)
	}
	if got.Reserved != 0 || got.Available != 10 {
		t.Fatalf("expected excluded item to be ignored, got %+v", got)
	}
}

func TestAvailabilityForLotsBatches(t *testing.T) {
	f := newFixture(t)
	f.store.addLot("lot-1", "prod-1", 10)
	f.store.addLot("lot-2", "prod-2", 5)
	f.seedOpenOrder("ord-1")
	f.store.addItem(domain.OrderLineItem{ID: "itm-1", OrderID: "ord-1", ProductID: "prod-1", LotID: "lot-1", Quantity: 4})
	f.store.addItem(domain.OrderLineItem{ID: "itm-2", OrderID: "ord-1", ProductID: "prod-2", LotID: "lot-2", Quantity: 5})

	got, err := f.availability.ForLots(context.Background(), []domain.InventoryLot{f.store.lots["lot-1"], f.store.lots["lot-2"]})
	if err != nil {
		t.Fatalf("ForLots: %v", err)
	}
	if got["lot-1"].Available != 6 || got["lot-2"].Available != 0 || got["lot-2"].Inconsistent {
		t.Fatalf("unexpected batch result %+v", got)
	}
}

func TestAvailabilityErrors(t *testing.T) {
	f := newFixture(t)

	if _, err := f.availability.Availability(context.Background(), "bad id!"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if _, err := f.availability.Availability(context.Background(), "lot-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
