package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// AvailabilityOption tunes a single availability computation.
type AvailabilityOption func(*availabilityQuery)

type availabilityQuery struct {
	excludeItemID string
}

// ExcludingLineItem leaves itemID out of the reserved sum, used when an item's own quantity changes.
func ExcludingLineItem(itemID string) AvailabilityOption {
	return func(q *availabilityQuery) { q.excludeItemID = itemID }
}

// AvailabilityCalculatorDeps bundles the collaborators of the availability calculator.
type AvailabilityCalculatorDeps struct {
	Inventory repositories.InventoryRepository
	LineItems repositories.LineItemRepository
	Ledger    StatusLedger
	Events    EventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type availabilityCalculator struct {
	inventory repositories.InventoryRepository
	lineItems repositories.LineItemRepository
	ledger    StatusLedger
	events    eventEmitter
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)

	// reported remembers the lot version an oversell was last published for.
	reported sync.Map
}

// NewAvailabilityCalculator builds a read-only calculator over line items and the status ledger.
func NewAvailabilityCalculator(deps AvailabilityCalculatorDeps) (AvailabilityCalculator, error) {
	if deps.Inventory == nil {
		return nil, errors.New("availability calculator: inventory repository is required")
	}
	if deps.LineItems == nil {
		return nil, errors.New("availability calculator: line item repository is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("availability calculator: status ledger is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	utc := func() time.Time { return clock().UTC() }
	return &availabilityCalculator{
		inventory: deps.Inventory,
		lineItems: deps.LineItems,
		ledger:    deps.Ledger,
		events:    eventEmitter{publisher: deps.Events, newID: newULID, clock: utc, logger: logger},
		clock:     utc,
		logger:    logger,
	}, nil
}

func (c *availabilityCalculator) Availability(ctx context.Context, lotID string) (Availability, error) {
	lotID, err := ValidateIdentifier("lot id", lotID)
	if err != nil {
		return Availability{}, err
	}
	lot, err := c.inventory.Get(ctx, lotID)
	if err != nil {
		return Availability{}, mapRepositoryError(err)
	}
	if !lot.Active {
		return Availability{}, fmt.Errorf("%w: lot %s is inactive", ErrNotFound, lotID)
	}
	return c.ForLot(ctx, lot)
}

func (c *availabilityCalculator) ForLot(ctx context.Context, lot InventoryLot, opts ...AvailabilityOption) (Availability, error) {
	var query availabilityQuery
	for _, opt := range opts {
		if opt != nil {
			opt(&query)
		}
	}

	items, err := c.lineItems.ListActiveByLot(ctx, lot.ID)
	if err != nil {
		return Availability{}, mapRepositoryError(err)
	}
	current, err := c.ledger.CurrentMany(ctx, orderIDsOf(items))
	if err != nil {
		return Availability{}, err
	}
	return c.derive(ctx, lot, items, current, query), nil
}

func (c *availabilityCalculator) ForLots(ctx context.Context, lots []InventoryLot) (map[string]Availability, error) {
	result := make(map[string]Availability, len(lots))
	if len(lots) == 0 {
		return result, nil
	}

	itemsByLot := make(map[string][]OrderLineItem, len(lots))
	var orderIDs []string
	for _, lot := range lots {
		items, err := c.lineItems.ListActiveByLot(ctx, lot.ID)
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		itemsByLot[lot.ID] = items
		orderIDs = append(orderIDs, orderIDsOf(items)...)
	}

	current, err := c.ledger.CurrentMany(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for _, lot := range lots {
		result[lot.ID] = c.derive(ctx, lot, itemsByLot[lot.ID], current, availabilityQuery{})
	}
	return result, nil
}

// derive sums active items whose order currently sits in a reserving status. Orders without any
// status history do not reserve.
func (c *availabilityCalculator) derive(ctx context.Context, lot InventoryLot, items []OrderLineItem, current map[string]OrderStatusRecord, query availabilityQuery) Availability {
	reserved := 0
	for _, item := range items {
		if !item.Active || item.LotID != lot.ID || item.ID == query.excludeItemID {
			continue
		}
		record, ok := current[item.OrderID]
		if !ok || !c.ledger.IsReserving(record.StatusID) {
			continue
		}
		reserved += item.Quantity
	}

	result := Availability{
		LotID:      lot.ID,
		Stock:      lot.Stock,
		Reserved:   reserved,
		Available:  lot.Stock - reserved,
		Version:    lot.Version,
		ComputedAt: c.clock(),
	}
	if result.Available < 0 {
		result.Oversold = -result.Available
		result.Available = 0
		result.Inconsistent = true
		c.reportOversold(ctx, lot, result)
	}
	return result
}

// reportOversold logs every detection and publishes once per lot version.
func (c *availabilityCalculator) reportOversold(ctx context.Context, lot InventoryLot, result Availability) {
	fields := map[string]any{
		"lotId":    lot.ID,
		"stock":    result.Stock,
		"reserved": result.Reserved,
		"oversold": result.Oversold,
		"version":  lot.Version,
		"error":    ErrInconsistency.Error(),
	}
	c.logger(ctx, "availability.inconsistent", fields)

	if previous, loaded := c.reported.Swap(lot.ID, lot.Version); loaded && previous.(int64) == lot.Version {
		return
	}
	c.events.emit(ctx, FulfillmentEvent{
		Type:  EventInventoryOversold,
		LotID: lot.ID,
		Payload: map[string]any{
			"catalogId": lot.CatalogID,
			"stock":     result.Stock,
			"reserved":  result.Reserved,
			"oversold":  result.Oversold,
			"version":   lot.Version,
		},
	})
}

func orderIDsOf(items []OrderLineItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.OrderID)
	}
	return uniqueIDs(ids)
}

func newULID() string {
	return ulid.Make().String()
}
