package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// OffsetPagination expresses skip/limit style paging used by inventory listings.
type OffsetPagination struct {
	Skip  int
	Limit int
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// CatalogProduct is the read-only view of a catalog entry used for pricing and stock intake.
type CatalogProduct struct {
	ID          string
	Name        string
	Description string
	UnitCost    decimal.Decimal
	Discount    int
	Active      bool
}

// InventoryLot is a stocked batch of a single catalog product.
// Reserved and available quantities are never stored on the lot; see Availability.
type InventoryLot struct {
	ID            string
	CatalogID     string
	Stock         int
	EntryDate     time.Time
	PurchasePrice decimal.Decimal
	SalePrice     decimal.Decimal
	Observation   string
	Active        bool
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Availability is the derived reservation view of a lot at read time.
type Availability struct {
	LotID     string
	Stock     int
	Reserved  int
	Available int
	// Oversold is reserved minus stock when reservations exceed the lot; zero otherwise.
	Oversold     int
	Inconsistent bool
	Version      int64
	ComputedAt   time.Time
}

// InventoryLotView pairs a lot with its catalog reference and derived availability.
type InventoryLotView struct {
	Lot          InventoryLot
	Catalog      *CatalogProduct
	Availability Availability
}

// OrderTotals carries the monetary fields rederived from active line items.
type OrderTotals struct {
	Subtotal decimal.Decimal
	Taxes    decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// ZeroTotals returns the totals of an order without qualifying line items.
func ZeroTotals() OrderTotals {
	return OrderTotals{
		Subtotal: decimal.Zero,
		Taxes:    decimal.Zero,
		Discount: decimal.Zero,
		Total:    decimal.Zero,
	}
}

// Equal reports whether both totals carry identical amounts.
func (t OrderTotals) Equal(other OrderTotals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.Taxes.Equal(other.Taxes) &&
		t.Discount.Equal(other.Discount) &&
		t.Total.Equal(other.Total)
}

// Order is a purchase transaction owned by a single user.
type Order struct {
	ID            string
	UserID        string
	PaymentMethod string
	DeliveryType  string
	Totals        OrderTotals
	// Revision increments on every line-item mutation.
	Revision int64
	// TotalsRevision is the revision the stored totals were derived from.
	TotalsRevision int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ReconciledAt   *time.Time
}

// TotalsStale reports whether a line-item mutation happened after the last successful reconcile.
func (o Order) TotalsStale() bool {
	return o.Revision != o.TotalsRevision
}

// OrderView is an order together with its current status.
type OrderView struct {
	Order         Order
	CurrentStatus *OrderStatusRecord
}

// OrderLineItem is one product-quantity entry inside an order.
type OrderLineItem struct {
	ID        string
	OrderID   string
	ProductID string
	LotID     string
	Quantity  int
	Note      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItemView denormalizes the catalog name and cost for listings.
type LineItemView struct {
	Item        OrderLineItem
	ProductName string
	UnitCost    decimal.Decimal
	LineTotal   decimal.Decimal
	Resolved    bool
}

// OrderStatusRecord is an immutable fact that an order entered a status at a point in time.
type OrderStatusRecord struct {
	ID        string
	OrderID   string
	StatusID  string
	ActorID   string
	Timestamp time.Time
}

// StatusDefinition enumerates an order status that lifecycle transitions may target.
type StatusDefinition struct {
	ID          string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
