package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	"github.com/AlanaPvart7/Proyect2/internal/platform/locks"
	"github.com/AlanaPvart7/Proyect2/internal/platform/textutil"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

const (
	lineItemIDPrefix       = "itm_"
	maxLineItemNoteLength  = 500
	defaultReserveAttempts = 3

	warningTotalsStale = "order totals may be stale: reconciliation failed; retry the order recompute"
)

// LineItemServiceDeps bundles the collaborators required by the line-item manager.
type LineItemServiceDeps struct {
	Orders       repositories.OrderRepository
	LineItems    repositories.LineItemRepository
	Inventory    repositories.InventoryRepository
	Catalog      CatalogReference
	Availability AvailabilityCalculator
	Reconciler   Reconciler
	Locker       locks.Locker
	Events       EventPublisher
	// ReserveAttempts bounds the re-reads after a lot version mismatch.
	ReserveAttempts int
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type lineItemService struct {
	orders       repositories.OrderRepository
	items        repositories.LineItemRepository
	inventory    repositories.InventoryRepository
	catalog      CatalogReference
	availability AvailabilityCalculator
	reconciler   Reconciler
	locks        lockSet
	events       eventEmitter
	attempts     int
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
}

// NewLineItemService wires the line-item manager.
func NewLineItemService(deps LineItemServiceDeps) (LineItemService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("line item service: order repository is required")
	case deps.LineItems == nil:
		return nil, errors.New("line item service: line item repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("line item service: inventory repository is required")
	case deps.Catalog == nil:
		return nil, errors.New("line item service: catalog reference is required")
	case deps.Availability == nil:
		return nil, errors.New("line item service: availability calculator is required")
	case deps.Reconciler == nil:
		return nil, errors.New("line item service: reconciler is required")
	}

	attempts := deps.ReserveAttempts
	if attempts <= 0 {
		attempts = defaultReserveAttempts
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = newULID
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	utc := func() time.Time { return clock().UTC() }

	return &lineItemService{
		orders:       deps.Orders,
		items:        deps.LineItems,
		inventory:    deps.Inventory,
		catalog:      deps.Catalog,
		availability: deps.Availability,
		reconciler:   deps.Reconciler,
		locks:        lockSet{locker: deps.Locker},
		events:       eventEmitter{publisher: deps.Events, newID: idGen, clock: utc, logger: logger},
		attempts:     attempts,
		clock:        utc,
		newID:        idGen,
		logger:       logger,
	}, nil
}

func (s *lineItemService) Add(ctx context.Context, cmd AddLineItemCommand) (LineItemResult, error) {
	orderID, err := ValidateIdentifier("order id", cmd.OrderID)
	if err != nil {
		return LineItemResult{}, err
	}
	productID, err := ValidateIdentifier("product id", cmd.ProductID)
	if err != nil {
		return LineItemResult{}, err
	}
	lotID := ""
	if cmd.LotID != "" {
		if lotID, err = ValidateIdentifier("lot id", cmd.LotID); err != nil {
			return LineItemResult{}, err
		}
	}
	if cmd.Quantity <= 0 {
		return LineItemResult{}, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}

	var result LineItemResult
	err = s.locks.with(ctx, s.lockKeys(orderID, lotID), func(ctx context.Context) error {
		order, err := s.loadAccessibleOrder(ctx, orderID, cmd.Requester)
		if err != nil {
			return err
		}

		product, err := s.catalog.ResolveProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !product.Active {
			return fmt.Errorf("%w: product %s is inactive", ErrNotFound, productID)
		}

		if _, exists, err := s.items.FindActiveByProduct(ctx, orderID, productID); err != nil {
			return mapRepositoryError(err)
		} else if exists {
			return fmt.Errorf("%w: product %s already has an active line item on order %s", ErrConflict, productID, orderID)
		}

		now := s.clock()
		item := OrderLineItem{
			ID:        lineItemIDPrefix + s.newID(),
			OrderID:   orderID,
			ProductID: productID,
			LotID:     lotID,
			Quantity:  cmd.Quantity,
			Note:      textutil.SanitizePlainText(cmd.Note, maxLineItemNoteLength),
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		check := func(ctx context.Context, lot InventoryLot) error {
			if lot.CatalogID != productID {
				return fmt.Errorf("%w: lot %s does not stock product %s", ErrInvalidInput, lot.ID, productID)
			}
			return s.ensureAvailable(ctx, lot, item.Quantity)
		}
		if err := s.guardedWrite(ctx, lotID, check, func(guard repositories.LotGuard) error {
			return s.items.Insert(ctx, item, guard)
		}); err != nil {
			return err
		}

		s.logger(ctx, "line_item.added", map[string]any{
			"orderId":    orderID,
			"lineItemId": item.ID,
			"productId":  productID,
			"lotId":      lotID,
			"quantity":   item.Quantity,
		})
		s.events.emit(ctx, FulfillmentEvent{
			Type:    EventLineItemAdded,
			OrderID: orderID,
			LotID:   lotID,
			ActorID: cmd.Requester.UserID,
			Payload: map[string]any{"lineItemId": item.ID, "productId": productID, "quantity": item.Quantity},
		})

		result = s.reconcile(ctx, order, item)
		return nil
	})
	if err != nil {
		return LineItemResult{}, err
	}
	return result, nil
}

func (s *lineItemService) Update(ctx context.Context, cmd UpdateLineItemCommand) (LineItemResult, error) {
	orderID, err := ValidateIdentifier("order id", cmd.OrderID)
	if err != nil {
		return LineItemResult{}, err
	}
	itemID, err := ValidateIdentifier("line item id", cmd.LineItemID)
	if err != nil {
		return LineItemResult{}, err
	}
	if cmd.Quantity == nil && cmd.Note == nil {
		return LineItemResult{}, fmt.Errorf("%w: quantity or note is required", ErrInvalidInput)
	}
	if cmd.Quantity != nil && *cmd.Quantity <= 0 {
		return LineItemResult{}, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}

	var result LineItemResult
	err = s.locks.with(ctx, []string{locks.OrderKey(orderID)}, func(ctx context.Context) error {
		order, err := s.loadAccessibleOrder(ctx, orderID, cmd.Requester)
		if err != nil {
			return err
		}
		item, err := s.loadActiveItem(ctx, orderID, itemID)
		if err != nil {
			return err
		}

		// Lot lock needs the item, so it nests under the order lock.
		return s.locks.with(ctx, s.lockKeys(orderID, item.LotID), func(ctx context.Context) error {
			previous := item.Quantity
			if cmd.Quantity != nil {
				item.Quantity = *cmd.Quantity
			}
			if cmd.Note != nil {
				item.Note = textutil.SanitizePlainText(*cmd.Note, maxLineItemNoteLength)
			}
			item.UpdatedAt = s.clock()

			lotID := ""
			var check func(context.Context, InventoryLot) error
			if item.LotID != "" && item.Quantity != previous {
				lotID = item.LotID
				if item.Quantity > previous {
					check = func(ctx context.Context, lot InventoryLot) error {
						return s.ensureAvailable(ctx, lot, item.Quantity, ExcludingLineItem(item.ID))
					}
				}
			}
			if err := s.guardedWrite(ctx, lotID, check, func(guard repositories.LotGuard) error {
				return s.items.Update(ctx, item, guard)
			}); err != nil {
				return err
			}

			s.logger(ctx, "line_item.updated", map[string]any{
				"orderId":          orderID,
				"lineItemId":       item.ID,
				"quantity":         item.Quantity,
				"previousQuantity": previous,
			})
			s.events.emit(ctx, FulfillmentEvent{
				Type:    EventLineItemUpdated,
				OrderID: orderID,
				LotID:   item.LotID,
				ActorID: cmd.Requester.UserID,
				Payload: map[string]any{"lineItemId": item.ID, "quantity": item.Quantity, "previousQuantity": previous},
			})

			result = s.reconcile(ctx, order, item)
			return nil
		})
	})
	if err != nil {
		return LineItemResult{}, err
	}
	return result, nil
}

func (s *lineItemService) Remove(ctx context.Context, cmd RemoveLineItemCommand) (LineItemResult, error) {
	orderID, err := ValidateIdentifier("order id", cmd.OrderID)
	if err != nil {
		return LineItemResult{}, err
	}
	itemID, err := ValidateIdentifier("line item id", cmd.LineItemID)
	if err != nil {
		return LineItemResult{}, err
	}

	var result LineItemResult
	err = s.locks.with(ctx, []string{locks.OrderKey(orderID)}, func(ctx context.Context) error {
		order, err := s.loadAccessibleOrder(ctx, orderID, cmd.Requester)
		if err != nil {
			return err
		}
		item, err := s.loadActiveItem(ctx, orderID, itemID)
		if err != nil {
			return err
		}

		return s.locks.with(ctx, s.lockKeys(orderID, item.LotID), func(ctx context.Context) error {
			item.Active = false
			item.UpdatedAt = s.clock()
			if err := s.guardedWrite(ctx, item.LotID, nil, func(guard repositories.LotGuard) error {
				return s.items.Update(ctx, item, guard)
			}); err != nil {
				return err
			}

			s.logger(ctx, "line_item.removed", map[string]any{
				"orderId":    orderID,
				"lineItemId": item.ID,
			})
			s.events.emit(ctx, FulfillmentEvent{
				Type:    EventLineItemRemoved,
				OrderID: orderID,
				LotID:   item.LotID,
				ActorID: cmd.Requester.UserID,
				Payload: map[string]any{"lineItemId": item.ID, "productId": item.ProductID},
			})

			result = s.reconcile(ctx, order, item)
			return nil
		})
	})
	if err != nil {
		return LineItemResult{}, err
	}
	return result, nil
}

func (s *lineItemService) List(ctx context.Context, orderID string, requester Requester) ([]LineItemView, error) {
	orderID, err := ValidateIdentifier("order id", orderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadAccessibleOrder(ctx, orderID, requester); err != nil {
		return nil, err
	}

	items, err := s.items.ListActiveByOrder(ctx, orderID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	products, err := s.catalog.ResolveProducts(ctx, productIDsOf(items))
	if err != nil {
		return nil, err
	}

	views := make([]LineItemView, 0, len(items))
	for _, item := range items {
		view := LineItemView{Item: item, UnitCost: decimal.Zero, LineTotal: decimal.Zero}
		if product, ok := products[item.ProductID]; ok {
			view.ProductName = product.Name
			view.UnitCost = product.UnitCost
			view.LineTotal = domain.RoundMoney(product.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
			view.Resolved = true
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *lineItemService) lockKeys(orderID, lotID string) []string {
	keys := []string{locks.OrderKey(orderID)}
	if lotID != "" {
		keys = append(keys, locks.LotKey(lotID))
	}
	return keys
}

func (s *lineItemService) loadAccessibleOrder(ctx context.Context, orderID string, requester Requester) (Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err)
	}
	if !CanAccessOrder(order, requester) {
		return Order{}, fmt.Errorf("%w: order %s belongs to another user", ErrForbidden, orderID)
	}
	return order, nil
}

func (s *lineItemService) loadActiveItem(ctx context.Context, orderID, itemID string) (OrderLineItem, error) {
	item, err := s.items.Get(ctx, orderID, itemID)
	if err != nil {
		return OrderLineItem{}, mapRepositoryError(err)
	}
	if !item.Active || item.OrderID != orderID {
		return OrderLineItem{}, fmt.Errorf("%w: line item %s", ErrNotFound, itemID)
	}
	return item, nil
}

func (s *lineItemService) ensureAvailable(ctx context.Context, lot InventoryLot, quantity int, opts ...AvailabilityOption) error {
	if !lot.Active {
		return fmt.Errorf("%w: lot %s is inactive", ErrNotFound, lot.ID)
	}
	availability, err := s.availability.ForLot(ctx, lot, opts...)
	if err != nil {
		return err
	}
	if availability.Available < quantity {
		return fmt.Errorf("%w: lot %s has %d available, %d requested", ErrInsufficientStock, lot.ID, availability.Available, quantity)
	}
	return nil
}

// guardedWrite re-reads the lot, runs check and writes with a compare-and-set on the lot version.
// A version mismatch means another reservation landed in between; the check is repeated against
// the fresh lot up to the configured number of attempts.
func (s *lineItemService) guardedWrite(ctx context.Context, lotID string, check func(context.Context, InventoryLot) error, write func(repositories.LotGuard) error) error {
	if lotID == "" {
		return mapRepositoryError(write(repositories.LotGuard{}))
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		lot, err := s.inventory.Get(ctx, lotID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if check != nil {
			if err := check(ctx, lot); err != nil {
				return err
			}
		}
		err = write(repositories.LotGuard{LotID: lot.ID, Version: lot.Version})
		if err == nil {
			return nil
		}
		if !isLotVersionConflict(err) {
			return mapRepositoryError(err)
		}
		lastErr = err
		s.logger(ctx, "line_item.lot_version_conflict", map[string]any{
			"lotId":   lotID,
			"version": lot.Version,
			"attempt": attempt,
		})
	}
	return fmt.Errorf("%w: lot %s kept changing after %d attempts: %v", ErrConflict, lotID, s.attempts, lastErr)
}

// reconcile runs under the order lock held by the mutation. A failure is downgraded to a warning.
func (s *lineItemService) reconcile(ctx context.Context, order Order, item OrderLineItem) LineItemResult {
	updated, err := s.reconciler.RecomputeOrder(ctx, order.ID)
	if err != nil {
		s.logger(ctx, "line_item.reconcile.warning", map[string]any{
			"orderId":    order.ID,
			"lineItemId": item.ID,
			"error":      err.Error(),
		})
		order.Revision++
		return LineItemResult{Item: item, Order: order, Warnings: []string{warningTotalsStale}}
	}
	return LineItemResult{Item: item, Order: updated}
}
