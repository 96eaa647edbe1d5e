package firestore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
)

const (
	catalogCollection           = "catalogs"
	inventoryCollection         = "inventory"
	ordersCollection            = "orders"
	lineItemsCollection         = "order_details"
	statusRecordsCollection     = "order_status_record"
	statusDefinitionsCollection = "order_statuses"
)

// catalogDocument is written by the catalog service, which stores cost as a float.
type catalogDocument struct {
	Name        string  `firestore:"name"`
	Description string  `firestore:"description"`
	Cost        float64 `firestore:"cost"`
	Discount    int     `firestore:"discount"`
	Active      bool    `firestore:"active"`
}

func (d catalogDocument) toDomain(id string) domain.CatalogProduct {
	return domain.CatalogProduct{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		UnitCost:    domain.MoneyFromFloat(d.Cost),
		Discount:    d.Discount,
		Active:      d.Active,
	}
}

// Documents owned by this service store money as decimal strings.

type lotDocument struct {
	CatalogID     string    `firestore:"catalogId"`
	Stock         int       `firestore:"stock"`
	EntryDate     time.Time `firestore:"entryDate"`
	PurchasePrice string    `firestore:"purchasePrice"`
	SalePrice     string    `firestore:"salePrice"`
	Observation   string    `firestore:"observation,omitempty"`
	Active        bool      `firestore:"active"`
	Version       int64     `firestore:"version"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func newLotDocument(lot domain.InventoryLot) lotDocument {
	return lotDocument{
		CatalogID:     lot.CatalogID,
		Stock:         lot.Stock,
		EntryDate:     lot.EntryDate.UTC(),
		PurchasePrice: lot.PurchasePrice.StringFixed(2),
		SalePrice:     lot.SalePrice.StringFixed(2),
		Observation:   lot.Observation,
		Active:        lot.Active,
		Version:       lot.Version,
		CreatedAt:     lot.CreatedAt.UTC(),
		UpdatedAt:     lot.UpdatedAt.UTC(),
	}
}

func (d lotDocument) toDomain(id string) (domain.InventoryLot, error) {
	purchase, err := parseMoney("purchasePrice", d.PurchasePrice)
	if err != nil {
		return domain.InventoryLot{}, fmt.Errorf("lot %s: %w", id, err)
	}
	sale, err := parseMoney("salePrice", d.SalePrice)
	if err != nil {
		return domain.InventoryLot{}, fmt.Errorf("lot %s: %w", id, err)
	}
	return domain.InventoryLot{
		ID:            id,
		CatalogID:     d.CatalogID,
		Stock:         d.Stock,
		EntryDate:     d.EntryDate.UTC(),
		PurchasePrice: purchase,
		SalePrice:     sale,
		Observation:   d.Observation,
		Active:        d.Active,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

type orderDocument struct {
	UserID         string     `firestore:"userId"`
	PaymentMethod  string     `firestore:"paymentMethod"`
	DeliveryType   string     `firestore:"deliveryType"`
	Subtotal       string     `firestore:"subtotal"`
	Taxes          string     `firestore:"taxes"`
	Discount       string     `firestore:"discount"`
	Total          string     `firestore:"total"`
	Revision       int64      `firestore:"revision"`
	TotalsRevision int64      `firestore:"totalsRevision"`
	CreatedAt      time.Time  `firestore:"createdAt"`
	UpdatedAt      time.Time  `firestore:"updatedAt"`
	ReconciledAt   *time.Time `firestore:"reconciledAt,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		UserID:         order.UserID,
		PaymentMethod:  order.PaymentMethod,
		DeliveryType:   order.DeliveryType,
		Revision:       order.Revision,
		TotalsRevision: order.TotalsRevision,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
	doc.setTotals(order.Totals)
	if order.ReconciledAt != nil {
		at := order.ReconciledAt.UTC()
		doc.ReconciledAt = &at
	}
	return doc
}

func (d *orderDocument) setTotals(totals domain.OrderTotals) {
	d.Subtotal = totals.Subtotal.StringFixed(2)
	d.Taxes = totals.Taxes.StringFixed(2)
	d.Discount = totals.Discount.StringFixed(2)
	d.Total = totals.Total.StringFixed(2)
}

func (d orderDocument) toDomain(id string) (domain.Order, error) {
	var totals domain.OrderTotals
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"subtotal", d.Subtotal, &totals.Subtotal},
		{"taxes", d.Taxes, &totals.Taxes},
		{"discount", d.Discount, &totals.Discount},
		{"total", d.Total, &totals.Total},
	}
	for _, field := range fields {
		value, err := parseMoney(field.name, field.raw)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s: %w", id, err)
		}
		*field.dst = value
	}
	order := domain.Order{
		ID:             id,
		UserID:         d.UserID,
		PaymentMethod:  d.PaymentMethod,
		DeliveryType:   d.DeliveryType,
		Totals:         totals,
		Revision:       d.Revision,
		TotalsRevision: d.TotalsRevision,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.ReconciledAt != nil {
		at := d.ReconciledAt.UTC()
		order.ReconciledAt = &at
	}
	return order, nil
}

type lineItemDocument struct {
	OrderID   string    `firestore:"orderId"`
	ProductID string    `firestore:"productId"`
	LotID     string    `firestore:"lotId,omitempty"`
	Quantity  int       `firestore:"quantity"`
	Note      string    `firestore:"note,omitempty"`
	Active    bool      `firestore:"active"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newLineItemDocument(item domain.OrderLineItem) lineItemDocument {
	return lineItemDocument{
		OrderID:   item.OrderID,
		ProductID: item.ProductID,
		LotID:     item.LotID,
		Quantity:  item.Quantity,
		Note:      item.Note,
		Active:    item.Active,
		CreatedAt: item.CreatedAt.UTC(),
		UpdatedAt: item.UpdatedAt.UTC(),
	}
}

func (d lineItemDocument) toDomain(id string) domain.OrderLineItem {
	return domain.OrderLineItem{
		ID:        id,
		OrderID:   d.OrderID,
		ProductID: d.ProductID,
		LotID:     d.LotID,
		Quantity:  d.Quantity,
		Note:      d.Note,
		Active:    d.Active,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type statusRecordDocument struct {
	OrderID   string    `firestore:"orderId"`
	StatusID  string    `firestore:"statusId"`
	ActorID   string    `firestore:"actorId,omitempty"`
	Timestamp time.Time `firestore:"timestamp"`
}

func newStatusRecordDocument(record domain.OrderStatusRecord) statusRecordDocument {
	return statusRecordDocument{
		OrderID:   record.OrderID,
		StatusID:  record.StatusID,
		ActorID:   record.ActorID,
		Timestamp: record.Timestamp.UTC(),
	}
}

func (d statusRecordDocument) toDomain(id string) domain.OrderStatusRecord {
	return domain.OrderStatusRecord{
		ID:        id,
		OrderID:   d.OrderID,
		StatusID:  d.StatusID,
		ActorID:   d.ActorID,
		Timestamp: d.Timestamp.UTC(),
	}
}

type statusDefinitionDocument struct {
	Description string    `firestore:"description"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (d statusDefinitionDocument) toDomain(id string) domain.StatusDefinition {
	return domain.StatusDefinition{
		ID:          id,
		Description: d.Description,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func parseMoney(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode %s: %w", field, err)
	}
	return value, nil
}
