package repositories

import (
	"context"
	"time"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	LineItems() LineItemRepository
	StatusRecords() StatusRecordRepository
	StatusDefinitions() StatusDefinitionRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository resolves catalog products owned by the external catalog store.
type CatalogRepository interface {
	Get(ctx context.Context, productID string) (domain.CatalogProduct, error)
	// GetMany returns the products that exist; missing ids are absent from the map.
	GetMany(ctx context.Context, productIDs []string) (map[string]domain.CatalogProduct, error)
}

// InventoryListFilter narrows lot listings.
type InventoryListFilter struct {
	CatalogID     string
	AvailableOnly bool
	IncludeAll    bool
	Pagination    domain.OffsetPagination
}

// InventoryRepository persists inventory lots.
type InventoryRepository interface {
	Insert(ctx context.Context, lot domain.InventoryLot) error
	Get(ctx context.Context, lotID string) (domain.InventoryLot, error)
	List(ctx context.Context, filter InventoryListFilter) ([]domain.InventoryLot, error)
	// Update persists stock, observation and active flag, bumping the lot version.
	// A non-zero expectedVersion is compared against the stored version first.
	Update(ctx context.Context, lot domain.InventoryLot, expectedVersion int64) (domain.InventoryLot, error)
	// BumpVersions increments the version of every listed lot so in-flight availability checks retry.
	BumpVersions(ctx context.Context, lotIDs []string, now time.Time) error
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID     string
	Pagination domain.Pagination
}

// TotalsFunc derives totals from the order and its active line items inside a reconcile transaction.
type TotalsFunc func(ctx context.Context, order domain.Order, items []domain.OrderLineItem) (domain.OrderTotals, error)

// OrderRepository persists orders and their reconciled totals.
type OrderRepository interface {
	// Insert creates the order and its initial status record atomically.
	Insert(ctx context.Context, order domain.Order, initial domain.OrderStatusRecord) error
	Get(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// ReconcileTotals reads the order and its active line items, applies fn and stores the result
	// together with the revision it was derived from. Concurrent line-item writes abort and retry it.
	ReconcileTotals(ctx context.Context, orderID string, reconciledAt time.Time, fn TotalsFunc) (domain.Order, error)
}

// LotGuard ties a line-item write to the lot version its availability check observed.
// A zero value disables the guard.
type LotGuard struct {
	LotID   string
	Version int64
}

// Enabled reports whether the guard carries a lot to compare.
func (g LotGuard) Enabled() bool {
	return g.LotID != ""
}

// LineItemRepository persists order line items. Every write bumps the parent order revision
// and, when guarded, the lot version in the same transaction.
type LineItemRepository interface {
	// Insert fails with OrderErrorDuplicateProduct when an active item for the product exists.
	Insert(ctx context.Context, item domain.OrderLineItem, guard LotGuard) error
	// Update persists quantity, note, active flag and timestamp of an existing item.
	Update(ctx context.Context, item domain.OrderLineItem, guard LotGuard) error
	Get(ctx context.Context, orderID, itemID string) (domain.OrderLineItem, error)
	ListActiveByOrder(ctx context.Context, orderID string) ([]domain.OrderLineItem, error)
	FindActiveByProduct(ctx context.Context, orderID, productID string) (domain.OrderLineItem, bool, error)
	ListActiveByLot(ctx context.Context, lotID string) ([]domain.OrderLineItem, error)
}

// StatusRecordRepository stores the append-only order status log.
type StatusRecordRepository interface {
	Append(ctx context.Context, record domain.OrderStatusRecord) error
	Latest(ctx context.Context, orderID string) (domain.OrderStatusRecord, bool, error)
	// LatestMany returns the latest record per order; orders without history are absent.
	LatestMany(ctx context.Context, orderIDs []string) (map[string]domain.OrderStatusRecord, error)
	History(ctx context.Context, orderID string) ([]domain.OrderStatusRecord, error)
}

// StatusDefinitionRepository manages the catalogue of order statuses.
type StatusDefinitionRepository interface {
	Insert(ctx context.Context, def domain.StatusDefinition) error
	Get(ctx context.Context, statusID string) (domain.StatusDefinition, error)
	List(ctx context.Context, includeInactive bool) ([]domain.StatusDefinition, error)
	Update(ctx context.Context, def domain.StatusDefinition) error
}

// HealthRepository collects dependency health for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
