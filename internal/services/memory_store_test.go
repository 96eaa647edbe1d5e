package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	"github.com/AlanaPvart7/Proyect2/internal/platform/locks"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

type memRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *memRepoError) Error() string       { return e.msg }
func (e *memRepoError) IsNotFound() bool    { return e.notFound }
func (e *memRepoError) IsConflict() bool    { return e.conflict }
func (e *memRepoError) IsUnavailable() bool { return e.unavailable }

func notFound(kind, id string) error {
	return &memRepoError{msg: fmt.Sprintf("%s %s not found", kind, id), notFound: true}
}

// memoryStore backs every repository interface with maps so services run against realistic state.
type memoryStore struct {
	mu       sync.Mutex
	products map[string]domain.CatalogProduct
	lots     map[string]domain.InventoryLot
	orders   map[string]domain.Order
	items    map[string]domain.OrderLineItem
	records  []domain.OrderStatusRecord
	statuses map[string]domain.StatusDefinition

	// lotRaces makes the next guarded writes lose against a concurrent writer.
	lotRaces     int
	reconcileErr error
	reconciles   int
	bumped       []string
	// afterBump runs once, outside the store mutex, after the next BumpVersions.
	afterBump    func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products: map[string]domain.CatalogProduct{},
		lots:     map[string]domain.InventoryLot{},
		orders:   map[string]domain.Order{},
		items:    map[string]domain.OrderLineItem{},
		statuses: map[string]domain.StatusDefinition{},
	}
}

func (m *memoryStore) addProduct(id, name, cost string) {
	m.products[id] = domain.CatalogProduct{ID: id, Name: name, UnitCost: decimal.RequireFromString(cost), Active: true}
}

func (m *memoryStore) addLot(id, catalogID string, stock int) {
	m.lots[id] = domain.InventoryLot{ID: id, CatalogID: catalogID, Stock: stock, Active: true, Version: 1}
}

func (m *memoryStore) addOrder(id, userID string) {
	m.orders[id] = domain.Order{ID: id, UserID: userID, Totals: domain.ZeroTotals()}
}

func (m *memoryStore) addItem(item domain.OrderLineItem) {
	item.Active = true
	m.items[item.ID] = item
}

func (m *memoryStore) addRecord(orderID, statusID string, at time.Time) {
	m.records = append(m.records, domain.OrderStatusRecord{
		ID:        fmt.Sprintf("seed_%d", len(m.records)),
		OrderID:   orderID,
		StatusID:  statusID,
		Timestamp: at,
	})
}

func (m *memoryStore) addStatus(id string, active bool) {
	m.statuses[id] = domain.StatusDefinition{ID: id, Description: id, Active: active}
}

func (m *memoryStore) applyGuard(guard repositories.LotGuard, now time.Time) error {
	if !guard.Enabled() {
		return nil
	}
	lot, ok := m.lots[guard.LotID]
	if !ok {
		return repositories.NewInventoryError(repositories.InventoryErrorLotNotFound, "lot not found", nil)
	}
	if m.lotRaces > 0 {
		m.lotRaces--
		lot.Version++
		m.lots[lot.ID] = lot
	}
	if lot.Version != guard.Version {
		return repositories.NewInventoryError(repositories.InventoryErrorVersionConflict, "lot version changed", nil)
	}
	lot.Version++
	lot.UpdatedAt = now
	m.lots[lot.ID] = lot
	return nil
}

type memCatalogRepo struct{ *memoryStore }

func (r memCatalogRepo) Get(_ context.Context, id string) (domain.CatalogProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return domain.CatalogProduct{}, notFound("catalog", id)
	}
	return product, nil
}

func (r memCatalogRepo) GetMany(_ context.Context, ids []string) (map[string]domain.CatalogProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]domain.CatalogProduct{}
	for _, id := range ids {
		if product, ok := r.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

type memInventoryRepo struct{ *memoryStore }

func (r memInventoryRepo) Insert(_ context.Context, lot domain.InventoryLot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lots[lot.ID] = lot
	return nil
}

func (r memInventoryRepo) Get(_ context.Context, id string) (domain.InventoryLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok {
		return domain.InventoryLot{}, repositories.NewInventoryError(repositories.InventoryErrorLotNotFound, "lot "+id+" not found", nil)
	}
	return lot, nil
}

func (r memInventoryRepo) List(_ context.Context, filter repositories.InventoryListFilter) ([]domain.InventoryLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.InventoryLot
	for _, lot := range r.lots {
		if !filter.IncludeAll && !lot.Active {
			continue
		}
		if filter.AvailableOnly && lot.Stock <= 0 {
			continue
		}
		if filter.CatalogID != "" && lot.CatalogID != filter.CatalogID {
			continue
		}
		out = append(out, lot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memInventoryRepo) Update(_ context.Context, lot domain.InventoryLot, expected int64) (domain.InventoryLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.lots[lot.ID]
	if !ok {
		return domain.InventoryLot{}, repositories.NewInventoryError(repositories.InventoryErrorLotNotFound, "lot not found", nil)
	}
	if r.lotRaces > 0 {
		r.lotRaces--
		stored.Version++
		r.lots[lot.ID] = stored
	}
	if expected != 0 && stored.Version != expected {
		return domain.InventoryLot{}, repositories.NewInventoryError(repositories.InventoryErrorVersionConflict, "lot version changed", nil)
	}
	stored.Stock = lot.Stock
	stored.Observation = lot.Observation
	stored.Active = lot.Active
	stored.UpdatedAt = lot.UpdatedAt
	stored.Version++
	r.lots[lot.ID] = stored
	return stored, nil
}

func (r memInventoryRepo) BumpVersions(_ context.Context, ids []string, now time.Time) error {
	r.mu.Lock()
	for _, id := range ids {
		if lot, ok := r.lots[id]; ok {
			lot.Version++
			lot.UpdatedAt = now
			r.lots[id] = lot
			r.bumped = append(r.bumped, id)
		}
	}
	hook := r.afterBump
	r.afterBump = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

type memOrderRepo struct{ *memoryStore }

func (r memOrderRepo) Insert(_ context.Context, order domain.Order, initial domain.OrderStatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return &memRepoError{msg: "order exists", conflict: true}
	}
	r.orders[order.ID] = order
	r.records = append(r.records, initial)
	return nil
}

func (r memOrderRepo) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorOrderNotFound, "order "+id+" not found", nil)
	}
	return order, nil
}

func (r memOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, order := range r.orders {
		if filter.UserID == "" || order.UserID == filter.UserID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.CursorPage[domain.Order]{Items: out}, nil
}

func (r memOrderRepo) ReconcileTotals(ctx context.Context, id string, at time.Time, fn repositories.TotalsFunc) (domain.Order, error) {
	r.mu.Lock()
	r.reconciles++
	if r.reconcileErr != nil {
		err := r.reconcileErr
		r.mu.Unlock()
		return domain.Order{}, err
	}
	order, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorOrderNotFound, "order "+id+" not found", nil)
	}
	var items []domain.OrderLineItem
	for _, item := range r.items {
		if item.OrderID == id && item.Active {
			items = append(items, item)
		}
	}
	r.mu.Unlock()

	totals, err := fn(ctx, order, items)
	if err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	order = r.orders[id]
	order.Totals = totals
	order.TotalsRevision = order.Revision
	order.UpdatedAt = at
	order.ReconciledAt = &at
	r.orders[id] = order
	return order, nil
}

type memLineItemRepo struct{ *memoryStore }

func (r memLineItemRepo) Insert(_ context.Context, item domain.OrderLineItem, guard repositories.LotGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[item.OrderID]
	if !ok {
		return repositories.NewOrderError(repositories.OrderErrorOrderNotFound, "order not found", nil)
	}
	for _, existing := range r.items {
		if existing.OrderID == item.OrderID && existing.ProductID == item.ProductID && existing.Active {
			return repositories.NewOrderError(repositories.OrderErrorDuplicateProduct, "duplicate product", nil)
		}
	}
	if err := r.applyGuard(guard, item.UpdatedAt); err != nil {
		return err
	}
	r.items[item.ID] = item
	order.Revision++
	r.orders[order.ID] = order
	return nil
}

func (r memLineItemRepo) Update(_ context.Context, item domain.OrderLineItem, guard repositories.LotGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return repositories.NewOrderError(repositories.OrderErrorLineItemNotFound, "line item not found", nil)
	}
	if err := r.applyGuard(guard, item.UpdatedAt); err != nil {
		return err
	}
	r.items[item.ID] = item
	order := r.orders[item.OrderID]
	order.Revision++
	r.orders[order.ID] = order
	return nil
}

func (r memLineItemRepo) Get(_ context.Context, orderID, itemID string) (domain.OrderLineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok || item.OrderID != orderID {
		return domain.OrderLineItem{}, repositories.NewOrderError(repositories.OrderErrorLineItemNotFound, "line item not found", nil)
	}
	return item, nil
}

func (r memLineItemRepo) ListActiveByOrder(_ context.Context, orderID string) ([]domain.OrderLineItem, error) {
	return r.filterItems(func(item domain.OrderLineItem) bool { return item.OrderID == orderID }), nil
}

func (r memLineItemRepo) FindActiveByProduct(_ context.Context, orderID, productID string) (domain.OrderLineItem, bool, error) {
	items := r.filterItems(func(item domain.OrderLineItem) bool {
		return item.OrderID == orderID && item.ProductID == productID
	})
	if len(items) == 0 {
		return domain.OrderLineItem{}, false, nil
	}
	return items[0], true, nil
}

func (r memLineItemRepo) ListActiveByLot(_ context.Context, lotID string) ([]domain.OrderLineItem, error) {
	return r.filterItems(func(item domain.OrderLineItem) bool { return item.LotID == lotID }), nil
}

func (r memLineItemRepo) filterItems(keep func(domain.OrderLineItem) bool) []domain.OrderLineItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderLineItem
	for _, item := range r.items {
		if item.Active && keep(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memStatusRecordRepo struct{ *memoryStore }

func (r memStatusRecordRepo) Append(_ context.Context, record domain.OrderStatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r memStatusRecordRepo) Latest(_ context.Context, orderID string) (domain.OrderStatusRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latestLocked(orderID)
}

func (r memStatusRecordRepo) latestLocked(orderID string) (domain.OrderStatusRecord, bool, error) {
	var (
		latest domain.OrderStatusRecord
		found  bool
	)
	for _, record := range r.records {
		if record.OrderID != orderID {
			continue
		}
		if !found || record.Timestamp.After(latest.Timestamp) {
			latest, found = record, true
		}
	}
	return latest, found, nil
}

func (r memStatusRecordRepo) LatestMany(_ context.Context, orderIDs []string) (map[string]domain.OrderStatusRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]domain.OrderStatusRecord{}
	for _, id := range orderIDs {
		if record, ok, _ := r.latestLocked(id); ok {
			out[id] = record
		}
	}
	return out, nil
}

func (r memStatusRecordRepo) History(_ context.Context, orderID string) ([]domain.OrderStatusRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderStatusRecord
	for _, record := range r.records {
		if record.OrderID == orderID {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type memStatusDefinitionRepo struct{ *memoryStore }

func (r memStatusDefinitionRepo) Insert(_ context.Context, def domain.StatusDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.statuses[def.ID]; ok {
		return &memRepoError{msg: "status exists", conflict: true}
	}
	r.statuses[def.ID] = def
	return nil
}

func (r memStatusDefinitionRepo) Get(_ context.Context, id string) (domain.StatusDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.statuses[id]
	if !ok {
		return domain.StatusDefinition{}, notFound("status", id)
	}
	return def, nil
}

func (r memStatusDefinitionRepo) List(_ context.Context, includeInactive bool) ([]domain.StatusDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StatusDefinition
	for _, def := range r.statuses {
		if includeInactive || def.Active {
			out = append(out, def)
		}
	}
	return out, nil
}

func (r memStatusDefinitionRepo) Update(_ context.Context, def domain.StatusDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.statuses[def.ID]; !ok {
		return notFound("status", def.ID)
	}
	r.statuses[def.ID] = def
	return nil
}

type captureEvents struct {
	mu     sync.Mutex
	events []FulfillmentEvent
}

func (c *captureEvents) PublishEvent(_ context.Context, event FulfillmentEvent) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return event.ID, nil
}

func (c *captureEvents) ofType(eventType string) []FulfillmentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []FulfillmentEvent
	for _, event := range c.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type captureLogs struct {
	mu     sync.Mutex
	events []string
	fields []map[string]any
}

func (c *captureLogs) log(_ context.Context, event string, fields map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	c.fields = append(c.fields, fields)
}

func (c *captureLogs) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e == event {
			n++
		}
	}
	return n
}

const (
	statusInProgress = "inprogress"
	statusOrdered    = "ordered"
	statusProcessing = "processing"
	statusDelivered  = "delivered"
	statusCancelled  = "cancelled"
)

type fixture struct {
	store        *memoryStore
	now          time.Time
	events       *captureEvents
	logs         *captureLogs
	catalog      CatalogReference
	ledger       StatusLedger
	availability AvailabilityCalculator
	reconciler   Reconciler
	lineItems    LineItemService
	lifecycle    LifecycleController
	orders       OrderService
	inventory    InventoryService
	statuses     StatusDefinitionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemoryStore()
	for _, id := range []string{statusInProgress, statusOrdered, statusProcessing, statusDelivered, statusCancelled} {
		store.addStatus(id, true)
	}

	f := &fixture{
		store:  store,
		now:    time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		events: &captureEvents{},
		logs:   &captureLogs{},
	}
	clock := func() time.Time { return f.now }
	var seq int
	var seqMu sync.Mutex
	ids := func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("%04d", seq)
	}
	locker := locks.NewKeyedMutex(time.Second)

	var err error
	must := func(step string) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", step, err)
		}
	}

	f.catalog, err = NewCatalogReference(CatalogReferenceDeps{Catalog: memCatalogRepo{store}})
	must("NewCatalogReference")
	f.ledger, err = NewStatusLedger(StatusLedgerDeps{
		Records:           memStatusRecordRepo{store},
		ReservingStatuses: []string{statusInProgress, statusOrdered, statusProcessing},
		Clock:             clock,
		IDGenerator:       ids,
	})
	must("NewStatusLedger")
	f.availability, err = NewAvailabilityCalculator(AvailabilityCalculatorDeps{
		Inventory: memInventoryRepo{store},
		LineItems: memLineItemRepo{store},
		Ledger:    f.ledger,
		Events:    f.events,
		Clock:     clock,
		Logger:    f.logs.log,
	})
	must("NewAvailabilityCalculator")
	f.reconciler, err = NewReconciler(ReconcilerDeps{
		Orders:  memOrderRepo{store},
		Catalog: f.catalog,
		Locker:  locker,
		Events:  f.events,
		Clock:   clock,
		Logger:  f.logs.log,
	})
	must("NewReconciler")
	f.lineItems, err = NewLineItemService(LineItemServiceDeps{
		Orders:          memOrderRepo{store},
		LineItems:       memLineItemRepo{store},
		Inventory:       memInventoryRepo{store},
		Catalog:         f.catalog,
		Availability:    f.availability,
		Reconciler:      f.reconciler,
		Locker:          locker,
		Events:          f.events,
		ReserveAttempts: 3,
		Clock:           clock,
		IDGenerator:     ids,
		Logger:          f.logs.log,
	})
	must("NewLineItemService")
	f.lifecycle, err = NewLifecycleController(LifecycleControllerDeps{
		Orders:      memOrderRepo{store},
		LineItems:   memLineItemRepo{store},
		Inventory:   memInventoryRepo{store},
		Statuses:    memStatusDefinitionRepo{store},
		Ledger:      f.ledger,
		Locker:      locker,
		Events:      f.events,
		InProgress:  statusInProgress,
		Ordered:     statusOrdered,
		Clock:       clock,
		IDGenerator: ids,
		Logger:      f.logs.log,
	})
	must("NewLifecycleController")
	f.orders, err = NewOrderService(OrderServiceDeps{
		Orders:      memOrderRepo{store},
		Ledger:      f.ledger,
		Reconciler:  f.reconciler,
		Events:      f.events,
		InProgress:  statusInProgress,
		Clock:       clock,
		IDGenerator: ids,
		Logger:      f.logs.log,
	})
	must("NewOrderService")
	f.inventory, err = NewInventoryService(InventoryServiceDeps{
		Inventory:    memInventoryRepo{store},
		Catalog:      f.catalog,
		Availability: f.availability,
		Locker:       locker,
		Events:       f.events,
		Clock:        clock,
		IDGenerator:  ids,
		Logger:       f.logs.log,
	})
	must("NewInventoryService")
	f.statuses, err = NewStatusDefinitionService(StatusDefinitionServiceDeps{
		Statuses: memStatusDefinitionRepo{store},
		Clock:    clock,
		Logger:   f.logs.log,
	})
	must("NewStatusDefinitionService")

	return f
}

var (
	owner    = Requester{UserID: "user-1"}
	stranger = Requester{UserID: "user-2"}
	admin    = Requester{UserID: "admin-1", IsAdmin: true}
)

// seedOpenOrder stores an order owned by owner with an in-progress status record.
func (f *fixture) seedOpenOrder(id string) {
	f.store.addOrder(id, owner.UserID)
	f.store.addRecord(id, statusInProgress, f.now.Add(-time.Hour))
}

func money(t *testing.T, d decimal.Decimal, want string) {
	t.Helper()
	if !d.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("expected %s, got %s", want, d.String())
	}
}
