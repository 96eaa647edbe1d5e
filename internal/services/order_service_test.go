package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
)

func TestOrderServiceCreate(t *testing.T) {
	f := newFixture(t)

	view, err := f.orders.Create(context.Background(), CreateOrderCommand{
		PaymentMethod: " card ",
		DeliveryType:  "<i>pickup</i>",
		Requester:     owner,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	order := view.Order
	if order.UserID != owner.UserID || order.PaymentMethod != "card" || order.DeliveryType != "pickup" {
		t.Fatalf("unexpected order %+v", order)
	}
	if !order.Totals.Equal(domain.ZeroTotals()) {
		t.Fatalf("expected zero totals, got %+v", order.Totals)
	}
	if view.CurrentStatus == nil || view.CurrentStatus.StatusID != statusInProgress {
		t.Fatalf("expected in-progress status, got %+v", view.CurrentStatus)
	}

	history, err := f.orders.History(context.Background(), order.ID, owner)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].StatusID != statusInProgress || history[0].ActorID != owner.UserID {
		t.Fatalf("unexpected history %+v", history)
	}
	if len(f.events.ofType(EventOrderCreated)) != 1 {
		t.Fatalf("expected order created event")
	}
}

func TestOrderServiceCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		cmd  CreateOrderCommand
		want error
	}{
		{"anonymous", CreateOrderCommand{PaymentMethod: "card", DeliveryType: "pickup"}, ErrForbidden},
		{"missing payment", CreateOrderCommand{DeliveryType: "pickup", Requester: owner}, ErrInvalidInput},
		{"markup only delivery", CreateOrderCommand{PaymentMethod: "card", DeliveryType: "<br/>", Requester: owner}, ErrInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.orders.Create(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if len(f.store.orders) != 0 {
		t.Fatalf("rejected orders must not be stored")
	}
}

func TestOrderServiceGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	f.seedOpenOrder("ord-1")

	if _, err := f.orders.Get(context.Background(), "ord-1", stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.orders.History(context.Background(), "ord-1", stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on history, got %v", err)
	}
	view, err := f.orders.Get(context.Background(), "ord-1", admin)
	if err != nil {
		t.Fatalf("admin Get: %v", err)
	}
	if view.CurrentStatus == nil || view.CurrentStatus.StatusID != statusInProgress {
		t.Fatalf("unexpected status %+v", view.CurrentStatus)
	}
	if _, err := f.orders.Get(context.Background(), "ord-missing", owner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.orders.Get(context.Background(), "", owner); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestOrderServiceList(t *testing.T) {
	f := newFixture(t)
	f.seedOpenOrder("ord-1")
	f.seedOpenOrder("ord-2")
	f.store.addOrder("ord-3", stranger.UserID)

	page, err := f.orders.List(context.Background(), OrderListFilter{Requester: owner})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected owner's 2 orders, got %d", len(page.Items))
	}
	for _, view := range page.Items {
		if view.CurrentStatus == nil || view.CurrentStatus.StatusID != statusInProgress {
			t.Fatalf("expected status on every listed order, got %+v", view)
		}
	}

	if _, err := f.orders.List(context.Background(), OrderListFilter{UserID: stranger.UserID, Requester: owner}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.orders.List(context.Background(), OrderListFilter{AllUsers: true, Requester: owner}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	all, err := f.orders.List(context.Background(), OrderListFilter{AllUsers: true, Requester: admin})
	if err != nil {
		t.Fatalf("admin List: %v", err)
	}
	if len(all.Items) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(all.Items))
	}
	if all.Items[2].CurrentStatus != nil {
		t.Fatalf("order without history must have no current status")
	}
}

func TestOrderServiceRecomputeDetectsDrift(t *testing.T) {
	f := newFixture(t)
	f.store.addProduct("prod-1", "Widget", "10.00")
	f.seedOpenOrder("ord-1")
	f.store.addItem(domain.OrderLineItem{ID: "itm-1", OrderID: "ord-1", ProductID: "prod-1", Quantity: 3})

	view, err := f.orders.Recompute(context.Background(), "ord-1", owner)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	money(t, view.Order.Totals.Subtotal, "30.00")
	money(t, view.Order.Totals.Taxes, "4.50")
	money(t, view.Order.Totals.Total, "34.50")

	if _, err := f.orders.Recompute(context.Background(), "ord-1", stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
