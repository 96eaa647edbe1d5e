package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AlanaPvart7/Proyect2/internal/platform/locks"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// LifecycleControllerDeps bundles the collaborators of the lifecycle controller.
type LifecycleControllerDeps struct {
	Orders      repositories.OrderRepository
	LineItems   repositories.LineItemRepository
	Inventory   repositories.InventoryRepository
	Statuses    repositories.StatusDefinitionRepository
	Ledger      StatusLedger
	Locker      locks.Locker
	Events      EventPublisher
	InProgress  string
	Ordered     string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type lifecycleController struct {
	orders     repositories.OrderRepository
	items      repositories.LineItemRepository
	inventory  repositories.InventoryRepository
	statuses   repositories.StatusDefinitionRepository
	ledger     StatusLedger
	locks      lockSet
	events     eventEmitter
	inProgress string
	ordered    string
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewLifecycleController wires the order lifecycle controller.
func NewLifecycleController(deps LifecycleControllerDeps) (LifecycleController, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("lifecycle controller: order repository is required")
	case deps.LineItems == nil:
		return nil, errors.New("lifecycle controller: line item repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("lifecycle controller: inventory repository is required")
	case deps.Statuses == nil:
		return nil, errors.New("lifecycle controller: status definition repository is required")
	case deps.Ledger == nil:
		return nil, errors.New("lifecycle controller: status ledger is required")
	}
	inProgress := strings.TrimSpace(deps.InProgress)
	ordered := strings.TrimSpace(deps.Ordered)
	if inProgress == "" || ordered == "" || inProgress == ordered {
		return nil, errors.New("lifecycle controller: distinct in-progress and ordered statuses are required")
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

	return &lifecycleController{
		orders:     deps.Orders,
		items:      deps.LineItems,
		inventory:  deps.Inventory,
		statuses:   deps.Statuses,
		ledger:     deps.Ledger,
		locks:      lockSet{locker: deps.Locker},
		events:     eventEmitter{publisher: deps.Events, newID: idGen, clock: utc, logger: logger},
		inProgress: inProgress,
		ordered:    ordered,
		clock:      utc,
		logger:     logger,
	}, nil
}

// Transition routes admins to Override and everyone else to the owner finalize path, which only
// accepts the ordered status as target.
func (c *lifecycleController) Transition(ctx context.Context, cmd TransitionCommand) (TransitionResult, error) {
	if cmd.Requester.IsAdmin {
		return c.Override(ctx, cmd)
	}
	orderID, err := ValidateIdentifier("order id", cmd.OrderID)
	if err != nil {
		return TransitionResult{}, err
	}
	target, err := ValidateIdentifier("status id", cmd.StatusID)
	if err != nil {
		return TransitionResult{}, err
	}

	var result TransitionResult
	err = c.locks.with(ctx, []string{locks.OrderKey(orderID)}, func(ctx context.Context) error {
		order, err := c.orders.Get(ctx, orderID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if !CanAccessOrder(order, cmd.Requester) {
			return fmt.Errorf("%w: order %s belongs to another user", ErrForbidden, orderID)
		}
		if target != c.ordered {
			return fmt.Errorf("%w: owners may only move orders to %q", ErrInvalidTransition, c.ordered)
		}
		result, err = c.finalizeLocked(ctx, order, cmd.Requester)
		return err
	})
	return result, err
}

func (c *lifecycleController) Finalize(ctx context.Context, orderID string, requester Requester) (TransitionResult, error) {
	orderID, err := ValidateIdentifier("order id", orderID)
	if err != nil {
		return TransitionResult{}, err
	}

	var result TransitionResult
	err = c.locks.with(ctx, []string{locks.OrderKey(orderID)}, func(ctx context.Context) error {
		order, err := c.orders.Get(ctx, orderID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if !CanAccessOrder(order, requester) {
			return fmt.Errorf("%w: order %s belongs to another user", ErrForbidden, orderID)
		}
		result, err = c.finalizeLocked(ctx, order, requester)
		return err
	})
	return result, err
}

func (c *lifecycleController) finalizeLocked(ctx context.Context, order Order, requester Requester) (TransitionResult, error) {
	current, ok, err := c.ledger.Current(ctx, order.ID)
	if err != nil {
		return TransitionResult{}, err
	}
	if !ok || current.StatusID != c.inProgress {
		from := "none"
		if ok {
			from = current.StatusID
		}
		return TransitionResult{}, fmt.Errorf("%w: cannot finalize order in status %q", ErrInvalidTransition, from)
	}

	result, err := c.appendTransition(ctx, order.ID, c.ordered, requester, &current)
	if err != nil {
		return TransitionResult{}, err
	}
	c.events.emit(ctx, FulfillmentEvent{
		Type:    EventOrderFinalized,
		OrderID: order.ID,
		ActorID: requester.UserID,
		Payload: map[string]any{
			"from":  current.StatusID,
			"to":    c.ordered,
			"total": order.Totals.Total.StringFixed(2),
		},
	})
	return result, nil
}

// Override moves an order to any existing, active status. Admin only.
func (c *lifecycleController) Override(ctx context.Context, cmd TransitionCommand) (TransitionResult, error) {
	orderID, err := ValidateIdentifier("order id", cmd.OrderID)
	if err != nil {
		return TransitionResult{}, err
	}
	target, err := ValidateIdentifier("status id", cmd.StatusID)
	if err != nil {
		return TransitionResult{}, err
	}
	if !cmd.Requester.IsAdmin {
		return TransitionResult{}, fmt.Errorf("%w: status override requires an admin", ErrForbidden)
	}

	var result TransitionResult
	err = c.locks.with(ctx, []string{locks.OrderKey(orderID)}, func(ctx context.Context) error {
		if _, err := c.orders.Get(ctx, orderID); err != nil {
			return mapRepositoryError(err)
		}
		def, err := c.statuses.Get(ctx, target)
		if err != nil {
			return mapRepositoryError(err)
		}
		if !def.Active {
			return fmt.Errorf("%w: status %s is inactive", ErrNotFound, target)
		}

		current, ok, err := c.ledger.Current(ctx, orderID)
		if err != nil {
			return err
		}
		var previous *OrderStatusRecord
		if ok {
			previous = &current
		}
		result, err = c.appendTransition(ctx, orderID, target, cmd.Requester, previous)
		if err != nil {
			return err
		}

		payload := map[string]any{"to": target}
		if previous != nil {
			payload["from"] = previous.StatusID
		}
		c.events.emit(ctx, FulfillmentEvent{
			Type:    EventOrderStatusChanged,
			OrderID: orderID,
			ActorID: cmd.Requester.UserID,
			Payload: payload,
		})
		return nil
	})
	return result, err
}

// appendTransition writes the record. When the order starts reserving stock again it holds the locks
// of the lots it draws from, appends, and only then bumps their versions: a reservation that read
// availability before the append fails its version check and retries against the reserving order.
func (c *lifecycleController) appendTransition(ctx context.Context, orderID, target string, requester Requester, previous *OrderStatusRecord) (TransitionResult, error) {
	wasReserving := previous != nil && c.ledger.IsReserving(previous.StatusID)
	var lotIDs []string
	if !wasReserving && c.ledger.IsReserving(target) {
		var err error
		if lotIDs, err = c.lotsOf(ctx, orderID); err != nil {
			return TransitionResult{}, err
		}
	}
	lotKeys := make([]string, 0, len(lotIDs))
	for _, id := range lotIDs {
		lotKeys = append(lotKeys, locks.LotKey(id))
	}

	var record OrderStatusRecord
	err := c.locks.with(ctx, lotKeys, func(ctx context.Context) error {
		var err error
		if record, err = c.ledger.Append(ctx, orderID, target, requester.UserID); err != nil {
			return err
		}
		if len(lotIDs) == 0 {
			return nil
		}
		if err := c.inventory.BumpVersions(ctx, lotIDs, c.clock()); err != nil {
			// the record is committed and the held lot locks already kept reservations out
			c.logger(ctx, "order.status.lot_bump_failed", map[string]any{
				"orderId": orderID,
				"lotIds":  lotIDs,
				"error":   err.Error(),
			})
		}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	fields := map[string]any{
		"orderId": orderID,
		"to":      target,
		"actorId": requester.UserID,
		"admin":   requester.IsAdmin,
	}
	if previous != nil {
		fields["from"] = previous.StatusID
	}
	c.logger(ctx, "order.status.appended", fields)
	return TransitionResult{Record: record, Previous: previous}, nil
}

// lotsOf returns the sorted lot ids drawn on by the order's active items.
func (c *lifecycleController) lotsOf(ctx context.Context, orderID string) ([]string, error) {
	items, err := c.items.ListActiveByOrder(ctx, orderID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	lotIDs := make([]string, 0, len(items))
	for _, item := range items {
		if item.LotID != "" {
			lotIDs = append(lotIDs, item.LotID)
		}
	}
	lotIDs = uniqueIDs(lotIDs)
	sort.Strings(lotIDs)
	return lotIDs, nil
}
