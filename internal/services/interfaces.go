package services

import (
	"context"
	"time"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	CatalogProduct     = domain.CatalogProduct
	InventoryLot       = domain.InventoryLot
	InventoryLotView   = domain.InventoryLotView
	Availability       = domain.Availability
	Order              = domain.Order
	OrderView          = domain.OrderView
	OrderTotals        = domain.OrderTotals
	OrderLineItem      = domain.OrderLineItem
	LineItemView       = domain.LineItemView
	OrderStatusRecord  = domain.OrderStatusRecord
	StatusDefinition   = domain.StatusDefinition
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogReference resolves product identity and unit cost from the external catalog.
type CatalogReference interface {
	ResolveProduct(ctx context.Context, productID string) (CatalogProduct, error)
	// ResolveProducts returns the products that resolve; unknown ids are absent from the map.
	ResolveProducts(ctx context.Context, productIDs []string) (map[string]CatalogProduct, error)
}

// StatusLedger is the append-only order status log and its latest-by-timestamp projection.
type StatusLedger interface {
	Append(ctx context.Context, orderID, statusID, actorID string) (OrderStatusRecord, error)
	Current(ctx context.Context, orderID string) (OrderStatusRecord, bool, error)
	CurrentMany(ctx context.Context, orderIDs []string) (map[string]OrderStatusRecord, error)
	History(ctx context.Context, orderID string) ([]OrderStatusRecord, error)
	// IsReserving reports whether orders in statusID hold stock.
	IsReserving(statusID string) bool
}

// AvailabilityCalculator derives reserved and available quantity for lots at read time.
type AvailabilityCalculator interface {
	Availability(ctx context.Context, lotID string) (Availability, error)
	ForLot(ctx context.Context, lot InventoryLot, opts ...AvailabilityOption) (Availability, error)
	ForLots(ctx context.Context, lots []InventoryLot) (map[string]Availability, error)
}

// Reconciler rederives order totals from active line items.
type Reconciler interface {
	Recompute(ctx context.Context, orderID string) (OrderTotals, error)
	RecomputeOrder(ctx context.Context, orderID string) (Order, error)
}

// LineItemService manages the line items of an order and keeps totals reconciled.
type LineItemService interface {
	Add(ctx context.Context, cmd AddLineItemCommand) (LineItemResult, error)
	Update(ctx context.Context, cmd UpdateLineItemCommand) (LineItemResult, error)
	Remove(ctx context.Context, cmd RemoveLineItemCommand) (LineItemResult, error)
	List(ctx context.Context, orderID string, requester Requester) ([]LineItemView, error)
}

// LifecycleController advances orders through statuses by appending ledger records.
type LifecycleController interface {
	Transition(ctx context.Context, cmd TransitionCommand) (TransitionResult, error)
	Finalize(ctx context.Context, orderID string, requester Requester) (TransitionResult, error)
	Override(ctx context.Context, cmd TransitionCommand) (TransitionResult, error)
}

// InventoryService covers lot intake and management.
type InventoryService interface {
	CreateLot(ctx context.Context, cmd CreateLotCommand) (InventoryLotView, error)
	GetLot(ctx context.Context, lotID string) (InventoryLotView, error)
	ListLots(ctx context.Context, filter LotListFilter) ([]InventoryLotView, error)
	UpdateLot(ctx context.Context, cmd UpdateLotCommand) (InventoryLotView, error)
	DeactivateLot(ctx context.Context, lotID string, requester Requester) (InventoryLotView, error)
	Availability(ctx context.Context, lotID string) (Availability, error)
}

// OrderService covers order creation, reads and recompute-only retries.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (OrderView, error)
	Get(ctx context.Context, orderID string, requester Requester) (OrderView, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error)
	History(ctx context.Context, orderID string, requester Requester) ([]OrderStatusRecord, error)
	Recompute(ctx context.Context, orderID string, requester Requester) (OrderView, error)
}

// StatusDefinitionService manages the catalogue of order statuses.
type StatusDefinitionService interface {
	Create(ctx context.Context, cmd StatusDefinitionCommand) (StatusDefinition, error)
	Get(ctx context.Context, statusID string) (StatusDefinition, error)
	List(ctx context.Context, includeInactive bool) ([]StatusDefinition, error)
	Update(ctx context.Context, cmd StatusDefinitionCommand) (StatusDefinition, error)
	Deactivate(ctx context.Context, statusID string, requester Requester) (StatusDefinition, error)
	// Seed inserts missing definitions; existing ones are left untouched.
	Seed(ctx context.Context, definitions map[string]string) (int, error)
}

// SystemService exposes health information for probes.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// AddLineItemCommand adds a product to an order.
type AddLineItemCommand struct {
	OrderID   string
	ProductID string
	// LotID is optional; when set the quantity is checked against the lot's availability.
	LotID     string
	Quantity  int
	Note      string
	Requester Requester
}

// UpdateLineItemCommand changes the quantity and/or note of an active line item.
type UpdateLineItemCommand struct {
	OrderID    string
	LineItemID string
	Quantity   *int
	Note       *string
	Requester  Requester
}

// RemoveLineItemCommand soft-deletes a line item.
type RemoveLineItemCommand struct {
	OrderID    string
	LineItemID string
	Requester  Requester
}

// LineItemResult reports the mutated item and the order as of the reconcile that followed it.
// Warnings is non-empty when reconciliation failed and the stored totals may be stale.
type LineItemResult struct {
	Item     OrderLineItem
	Order    Order
	Warnings []string
}

// TransitionCommand requests a move of an order to StatusID.
type TransitionCommand struct {
	OrderID   string
	StatusID  string
	Requester Requester
}

// TransitionResult carries the appended record and the status it replaced.
type TransitionResult struct {
	Record   OrderStatusRecord
	Previous *OrderStatusRecord
}

// CreateLotCommand records a stock intake.
type CreateLotCommand struct {
	CatalogID     string
	Stock         int
	EntryDate     time.Time
	PurchasePrice string
	SalePrice     string
	Observation   string
	Requester     Requester
}

// UpdateLotCommand edits the stock count and/or observation of a lot.
type UpdateLotCommand struct {
	LotID       string
	Stock       *int
	Observation *string
	Requester   Requester
}

// LotListFilter narrows lot listings.
type LotListFilter struct {
	CatalogID     string
	AvailableOnly bool
	IncludeAll    bool
	Skip          int
	Limit         int
}

// CreateOrderCommand opens an empty order for the requester.
type CreateOrderCommand struct {
	PaymentMethod string
	DeliveryType  string
	Requester     Requester
}

// OrderListFilter narrows order listings. Admins may set UserID or AllUsers.
type OrderListFilter struct {
	UserID     string
	AllUsers   bool
	Pagination domain.Pagination
	Requester  Requester
}

// StatusDefinitionCommand creates or updates a status definition.
type StatusDefinitionCommand struct {
	ID          string
	Description string
	Active      *bool
	Requester   Requester
}
