package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	pfirestore "github.com/AlanaPvart7/Proyect2/internal/platform/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/platform/pagination"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

const defaultOrderPageSize = 50

// OrderRepository persists orders. Line-item writes bump the order revision in the same transaction,
// so ReconcileTotals, which reads the order inside its own transaction, retries when they race.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
	items    *pfirestore.Collection[lineItemDocument]
	records  *pfirestore.Collection[statusRecordDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		items:    pfirestore.NewCollection[lineItemDocument](provider, lineItemsCollection),
		records:  pfirestore.NewCollection[statusRecordDocument](provider, statusRecordsCollection),
	}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order, initial domain.OrderStatusRecord) error {
	if strings.TrimSpace(order.ID) == "" || strings.TrimSpace(initial.ID) == "" {
		return errors.New("order insert: order and status record ids are required")
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.Doc(ctx, order.ID)
		if err != nil {
			return err
		}
		recordRef, err := r.records.Doc(ctx, initial.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}
		return tx.Create(recordRef, newStatusRecordDocument(initial))
	})
	return wrapRepositoryError("orders.insert", err)
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorOrderNotFound, fmt.Sprintf("order %s not found", orderID), err)
		}
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// List pages orders newest first. The page token encodes the last order's creation time and id.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := filter.Pagination.PageSize
	if size <= 0 {
		size = defaultOrderPageSize
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, min(len(docs), size))}
	for i, doc := range docs {
		if i == size {
			break
		}
		order, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
	}
	if len(docs) > size {
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func (r *OrderRepository) ReconcileTotals(ctx context.Context, orderID string, reconciledAt time.Time, fn repositories.TotalsFunc) (domain.Order, error) {
	if fn == nil {
		return domain.Order{}, errors.New("order reconcile: totals function is required")
	}
	at := reconciledAt.UTC()

	var result domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.Doc(ctx, orderID)
		if err != nil {
			return err
		}
		current, err := r.orders.GetTx(tx, ref)
		if err != nil {
			if pfirestore.IsNotFound(err) {
				return repositories.NewOrderError(repositories.OrderErrorOrderNotFound, fmt.Sprintf("order %s not found", orderID), err)
			}
			return err
		}
		itemDocs, err := r.items.QueryTx(ctx, tx, func(q firestore.Query) firestore.Query {
			return q.Where("orderId", "==", orderID).Where("active", "==", true)
		})
		if err != nil {
			return err
		}

		order, err := current.Data.toDomain(current.ID)
		if err != nil {
			return err
		}
		items := make([]domain.OrderLineItem, 0, len(itemDocs))
		for _, doc := range itemDocs {
			items = append(items, doc.Data.toDomain(doc.ID))
		}

		totals, err := fn(ctx, order, items)
		if err != nil {
			return err
		}

		doc := current.Data
		doc.setTotals(totals)
		doc.TotalsRevision = doc.Revision
		doc.UpdatedAt = at
		doc.ReconciledAt = &at
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result, err = doc.toDomain(orderID)
		return err
	})
	if err != nil {
		return domain.Order{}, wrapRepositoryError("orders.reconcile", err)
	}
	return result, nil
}
