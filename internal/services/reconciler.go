package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	"github.com/AlanaPvart7/Proyect2/internal/platform/locks"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// DefaultTaxRate applies when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.15")

// ReconcilerDeps bundles the collaborators of the order total reconciler.
type ReconcilerDeps struct {
	Orders  repositories.OrderRepository
	Catalog CatalogReference
	Locker  locks.Locker
	Events  EventPublisher
	TaxRate *decimal.Decimal
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type reconciler struct {
	orders  repositories.OrderRepository
	catalog CatalogReference
	locks   lockSet
	events  eventEmitter
	taxRate decimal.Decimal
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewReconciler builds the reconciler. A nil TaxRate falls back to DefaultTaxRate; zero is a valid rate.
func NewReconciler(deps ReconcilerDeps) (Reconciler, error) {
	if deps.Orders == nil {
		return nil, errors.New("reconciler: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("reconciler: catalog reference is required")
	}
	rate := DefaultTaxRate
	if deps.TaxRate != nil {
		rate = *deps.TaxRate
	}
	if rate.IsNegative() {
		return nil, errors.New("reconciler: tax rate must not be negative")
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
	return &reconciler{
		orders:  deps.Orders,
		catalog: deps.Catalog,
		locks:   lockSet{locker: deps.Locker},
		events:  eventEmitter{publisher: deps.Events, newID: newULID, clock: utc, logger: logger},
		taxRate: rate,
		clock:   utc,
		logger:  logger,
	}, nil
}

func (r *reconciler) Recompute(ctx context.Context, orderID string) (OrderTotals, error) {
	order, err := r.RecomputeOrder(ctx, orderID)
	if err != nil {
		return OrderTotals{}, err
	}
	return order.Totals, nil
}

// RecomputeOrder rederives and stores the totals of orderID. Missing orders and malformed ids keep
// their own error kinds; every other failure wraps ErrReconciliationFailed.
func (r *reconciler) RecomputeOrder(ctx context.Context, orderID string) (Order, error) {
	orderID, err := ValidateIdentifier("order id", orderID)
	if err != nil {
		return Order{}, err
	}

	var updated Order
	err = r.locks.with(ctx, []string{locks.OrderKey(orderID)}, func(ctx context.Context) error {
		var txErr error
		updated, txErr = r.orders.ReconcileTotals(ctx, orderID, r.clock(), r.totals)
		return txErr
	})
	if err != nil {
		mapped := mapRepositoryError(err)
		if errors.Is(mapped, ErrNotFound) {
			return Order{}, mapped
		}
		r.logger(ctx, "reconcile.failed", map[string]any{
			"orderId": orderID,
			"error":   err.Error(),
		})
		return Order{}, fmt.Errorf("%w: order %s: %v", ErrReconciliationFailed, orderID, mapped)
	}

	r.logger(ctx, "reconcile.completed", map[string]any{
		"orderId":  orderID,
		"subtotal": updated.Totals.Subtotal.StringFixed(domain.MoneyPlaces),
		"total":    updated.Totals.Total.StringFixed(domain.MoneyPlaces),
		"revision": updated.TotalsRevision,
	})
	r.events.emit(ctx, FulfillmentEvent{
		Type:    EventOrderTotalsReconciled,
		OrderID: orderID,
		Payload: map[string]any{
			"subtotal": updated.Totals.Subtotal.StringFixed(domain.MoneyPlaces),
			"taxes":    updated.Totals.Taxes.StringFixed(domain.MoneyPlaces),
			"discount": updated.Totals.Discount.StringFixed(domain.MoneyPlaces),
			"total":    updated.Totals.Total.StringFixed(domain.MoneyPlaces),
			"revision": updated.TotalsRevision,
		},
	})
	return updated, nil
}

// totals runs inside the reconcile transaction with the order's current active items.
func (r *reconciler) totals(ctx context.Context, _ Order, items []OrderLineItem) (OrderTotals, error) {
	products, err := r.catalog.ResolveProducts(ctx, productIDsOf(items))
	if err != nil {
		return OrderTotals{}, err
	}
	return ComputeTotals(items, products, r.taxRate), nil
}

// ComputeTotals rederives order totals from scratch. Items whose product does not resolve
// contribute zero; inactive items and non-positive quantities are ignored.
func ComputeTotals(items []OrderLineItem, products map[string]CatalogProduct, taxRate decimal.Decimal) OrderTotals {
	subtotal := decimal.Zero
	for _, item := range items {
		if !item.Active || item.Quantity <= 0 {
			continue
		}
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		subtotal = subtotal.Add(product.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if subtotal.IsZero() {
		return domain.ZeroTotals()
	}

	subtotal = domain.RoundMoney(subtotal)
	taxes := domain.RoundMoney(subtotal.Mul(taxRate))
	discount := decimal.Zero
	return OrderTotals{
		Subtotal: subtotal,
		Taxes:    taxes,
		Discount: discount,
		Total:    subtotal.Add(taxes).Sub(discount),
	}
}

func productIDsOf(items []OrderLineItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return uniqueIDs(ids)
}
