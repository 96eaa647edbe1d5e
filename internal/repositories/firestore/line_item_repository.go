package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	pfirestore "github.com/AlanaPvart7/Proyect2/internal/platform/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// LineItemRepository stores order details. Each write runs in one transaction with the parent
// order revision bump and, when guarded, the lot version compare-and-set.
type LineItemRepository struct {
	provider *pfirestore.Provider
	items    *pfirestore.Collection[lineItemDocument]
	orders   *pfirestore.Collection[orderDocument]
	lots     *pfirestore.Collection[lotDocument]
}

var _ repositories.LineItemRepository = (*LineItemRepository)(nil)

func NewLineItemRepository(provider *pfirestore.Provider) (*LineItemRepository, error) {
	if provider == nil {
		return nil, errors.New("line item repository requires firestore provider")
	}
	return &LineItemRepository{
		provider: provider,
		items:    pfirestore.NewCollection[lineItemDocument](provider, lineItemsCollection),
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		lots:     pfirestore.NewCollection[lotDocument](provider, inventoryCollection),
	}, nil
}

func (r *LineItemRepository) Insert(ctx context.Context, item domain.OrderLineItem, guard repositories.LotGuard) error {
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.readOrder(ctx, tx, item.OrderID)
		if err != nil {
			return err
		}
		existing, err := r.items.QueryTx(ctx, tx, func(q firestore.Query) firestore.Query {
			return q.Where("orderId", "==", item.OrderID).
				Where("productId", "==", item.ProductID).
				Where("active", "==", true).
				Limit(1)
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return repositories.NewOrderError(repositories.OrderErrorDuplicateProduct,
				fmt.Sprintf("order %s already has an active line item for product %s", item.OrderID, item.ProductID), nil)
		}
		lotRef, err := r.checkGuard(ctx, tx, guard)
		if err != nil {
			return err
		}

		itemRef, err := r.items.Doc(ctx, item.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(itemRef, newLineItemDocument(item)); err != nil {
			return err
		}
		return r.bump(tx, orderRef, lotRef, item)
	})
	return wrapRepositoryError("order_details.insert", err)
}

func (r *LineItemRepository) Update(ctx context.Context, item domain.OrderLineItem, guard repositories.LotGuard) error {
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		itemRef, err := r.items.Doc(ctx, item.ID)
		if err != nil {
			return err
		}
		current, err := r.items.GetTx(tx, itemRef)
		if err != nil {
			if pfirestore.IsNotFound(err) {
				return repositories.NewOrderError(repositories.OrderErrorLineItemNotFound, fmt.Sprintf("line item %s not found", item.ID), err)
			}
			return err
		}
		if current.Data.OrderID != item.OrderID {
			return repositories.NewOrderError(repositories.OrderErrorLineItemNotFound,
				fmt.Sprintf("line item %s does not belong to order %s", item.ID, item.OrderID), nil)
		}
		orderRef, err := r.readOrder(ctx, tx, item.OrderID)
		if err != nil {
			return err
		}
		lotRef, err := r.checkGuard(ctx, tx, guard)
		if err != nil {
			return err
		}

		doc := current.Data
		doc.Quantity = item.Quantity
		doc.Note = item.Note
		doc.Active = item.Active
		doc.UpdatedAt = item.UpdatedAt.UTC()
		if err := tx.Set(itemRef, doc); err != nil {
			return err
		}
		return r.bump(tx, orderRef, lotRef, item)
	})
	return wrapRepositoryError("order_details.update", err)
}

func (r *LineItemRepository) Get(ctx context.Context, orderID, itemID string) (domain.OrderLineItem, error) {
	doc, err := r.items.Get(ctx, itemID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.OrderLineItem{}, repositories.NewOrderError(repositories.OrderErrorLineItemNotFound, fmt.Sprintf("line item %s not found", itemID), err)
		}
		return domain.OrderLineItem{}, err
	}
	if doc.Data.OrderID != orderID {
		return domain.OrderLineItem{}, repositories.NewOrderError(repositories.OrderErrorLineItemNotFound,
			fmt.Sprintf("line item %s not found on order %s", itemID, orderID), nil)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *LineItemRepository) ListActiveByOrder(ctx context.Context, orderID string) ([]domain.OrderLineItem, error) {
	return r.listActive(ctx, "orderId", orderID)
}

func (r *LineItemRepository) FindActiveByProduct(ctx context.Context, orderID, productID string) (domain.OrderLineItem, bool, error) {
	docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).
			Where("productId", "==", productID).
			Where("active", "==", true).
			Limit(1)
	})
	if err != nil {
		return domain.OrderLineItem{}, false, err
	}
	if len(docs) == 0 {
		return domain.OrderLineItem{}, false, nil
	}
	return docs[0].Data.toDomain(docs[0].ID), true, nil
}

func (r *LineItemRepository) ListActiveByLot(ctx context.Context, lotID string) ([]domain.OrderLineItem, error) {
	return r.listActive(ctx, "lotId", lotID)
}

func (r *LineItemRepository) listActive(ctx context.Context, field, value string) ([]domain.OrderLineItem, error) {
	docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(field, "==", value).Where("active", "==", true)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.OrderLineItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *LineItemRepository) readOrder(ctx context.Context, tx *firestore.Transaction, orderID string) (*firestore.DocumentRef, error) {
	ref, err := r.orders.Doc(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := r.orders.GetTx(tx, ref); err != nil {
		if pfirestore.IsNotFound(err) {
			return nil, repositories.NewOrderError(repositories.OrderErrorOrderNotFound, fmt.Sprintf("order %s not found", orderID), err)
		}
		return nil, err
	}
	return ref, nil
}

// checkGuard reads the guarded lot inside tx and rejects the write when its version moved.
func (r *LineItemRepository) checkGuard(ctx context.Context, tx *firestore.Transaction, guard repositories.LotGuard) (*firestore.DocumentRef, error) {
	if !guard.Enabled() {
		return nil, nil
	}
	ref, err := r.lots.Doc(ctx, guard.LotID)
	if err != nil {
		return nil, err
	}
	lot, err := r.lots.GetTx(tx, ref)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return nil, repositories.NewInventoryError(repositories.InventoryErrorLotNotFound, fmt.Sprintf("lot %s not found", guard.LotID), err)
		}
		return nil, err
	}
	if lot.Data.Version != guard.Version {
		return nil, repositories.NewInventoryError(repositories.InventoryErrorVersionConflict,
			fmt.Sprintf("lot %s is at version %d, expected %d", guard.LotID, lot.Data.Version, guard.Version), nil)
	}
	return ref, nil
}

func (r *LineItemRepository) bump(tx *firestore.Transaction, orderRef, lotRef *firestore.DocumentRef, item domain.OrderLineItem) error {
	at := item.UpdatedAt.UTC()
	if err := tx.Update(orderRef, []firestore.Update{
		{Path: "revision", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: at},
	}); err != nil {
		return err
	}
	if lotRef == nil {
		return nil
	}
	return tx.Update(lotRef, []firestore.Update{
		{Path: "version", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: at},
	})
}
