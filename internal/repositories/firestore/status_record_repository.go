package firestore

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	pfirestore "github.com/AlanaPvart7/Proyect2/internal/platform/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

const latestManyConcurrency = 8

// StatusRecordRepository stores the append-only order status log. Records are never updated.
type StatusRecordRepository struct {
	records *pfirestore.Collection[statusRecordDocument]
}

var _ repositories.StatusRecordRepository = (*StatusRecordRepository)(nil)

func NewStatusRecordRepository(provider *pfirestore.Provider) (*StatusRecordRepository, error) {
	if provider == nil {
		return nil, errors.New("status record repository requires firestore provider")
	}
	return &StatusRecordRepository{records: pfirestore.NewCollection[statusRecordDocument](provider, statusRecordsCollection)}, nil
}

func (r *StatusRecordRepository) Append(ctx context.Context, record domain.OrderStatusRecord) error {
	return r.records.Create(ctx, record.ID, newStatusRecordDocument(record))
}

func (r *StatusRecordRepository) Latest(ctx context.Context, orderID string) (domain.OrderStatusRecord, bool, error) {
	docs, err := r.records.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).
			OrderBy("timestamp", firestore.Desc).
			Limit(1)
	})
	if err != nil {
		return domain.OrderStatusRecord{}, false, err
	}
	if len(docs) == 0 {
		return domain.OrderStatusRecord{}, false, nil
	}
	return docs[0].Data.toDomain(docs[0].ID), true, nil
}

// LatestMany runs one bounded query per order concurrently.
func (r *StatusRecordRepository) LatestMany(ctx context.Context, orderIDs []string) (map[string]domain.OrderStatusRecord, error) {
	results := make([]*domain.OrderStatusRecord, len(orderIDs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(latestManyConcurrency)
	for i, id := range orderIDs {
		group.Go(func() error {
			record, ok, err := r.Latest(groupCtx, id)
			if err != nil {
				return err
			}
			if ok {
				results[i] = &record
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]domain.OrderStatusRecord, len(orderIDs))
	for _, record := range results {
		if record != nil {
			out[record.OrderID] = *record
		}
	}
	return out, nil
}

func (r *StatusRecordRepository) History(ctx context.Context, orderID string) ([]domain.OrderStatusRecord, error) {
	docs, err := r.records.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).OrderBy("timestamp", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	history := make([]domain.OrderStatusRecord, 0, len(docs))
	for _, doc := range docs {
		history = append(history, doc.Data.toDomain(doc.ID))
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Timestamp.Before(history[j].Timestamp) })
	return history, nil
}
