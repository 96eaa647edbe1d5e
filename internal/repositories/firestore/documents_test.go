package firestore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
)

func TestCatalogDocumentRoundsCost(t *testing.T) {
	product := catalogDocument{Name: "Blonde", Cost: 69.989999, Discount: 10, Active: true}.toDomain("cat-1")
	if !product.UnitCost.Equal(decimal.RequireFromString("69.99")) {
		t.Fatalf("expected cost 69.99, got %s", product.UnitCost)
	}
	if product.ID != "cat-1" || !product.Active || product.Discount != 10 {
		t.Fatalf("unexpected product %+v", product)
	}
}

func TestOrderDocumentKeepsExactTotals(t *testing.T) {
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	order := domain.Order{
		ID:     "ord-1",
		UserID: "user-1",
		Totals: domain.OrderTotals{
			Subtotal: decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2")),
			Taxes:    decimal.RequireFromString("0.05"),
			Discount: decimal.Zero,
			Total:    decimal.RequireFromString("0.35"),
		},
		Revision:       3,
		TotalsRevision: 2,
		CreatedAt:      at,
		UpdatedAt:      at,
		ReconciledAt:   &at,
	}

	doc := newOrderDocument(order)
	if doc.Subtotal != "0.30" || doc.Total != "0.35" || doc.Discount != "0.00" {
		t.Fatalf("unexpected stored totals %+v", doc)
	}
	back, err := doc.toDomain("ord-1")
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	if !back.Totals.Equal(order.Totals) || !back.TotalsStale() {
		t.Fatalf("unexpected order %+v", back)
	}
	if back.ReconciledAt == nil || !back.ReconciledAt.Equal(at) {
		t.Fatalf("expected reconciled at to survive, got %v", back.ReconciledAt)
	}
}

func TestOrderDocumentRejectsCorruptMoney(t *testing.T) {
	if _, err := (orderDocument{Subtotal: "abc"}).toDomain("ord-1"); err == nil {
		t.Fatalf("expected decode error")
	}
	order, err := (orderDocument{}).toDomain("ord-2")
	if err != nil {
		t.Fatalf("empty money fields must decode as zero: %v", err)
	}
	if !order.Totals.Equal(domain.ZeroTotals()) {
		t.Fatalf("expected zero totals, got %+v", order.Totals)
	}
}

func TestPageLots(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []domain.InventoryLot{
		{ID: "a", EntryDate: base},
		{ID: "b", EntryDate: base.Add(2 * time.Hour)},
		{ID: "c", EntryDate: base.Add(time.Hour)},
		{ID: "d", EntryDate: base.Add(2 * time.Hour)},
	}
	sortLotsByEntryDesc(lots)
	got := ""
	for _, lot := range lots {
		got += lot.ID
	}
	if got != "bdca" {
		t.Fatalf("expected newest first with id tiebreak, got %s", got)
	}

	page := pageLots(lots, domain.OffsetPagination{Skip: 1, Limit: 2})
	if len(page) != 2 || page[0].ID != "d" || page[1].ID != "c" {
		t.Fatalf("unexpected page %+v", page)
	}
	if len(pageLots(lots, domain.OffsetPagination{Skip: 10})) != 0 {
		t.Fatalf("expected empty page past the end")
	}
}
