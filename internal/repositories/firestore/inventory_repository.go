package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	pfirestore "github.com/AlanaPvart7/Proyect2/internal/platform/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// InventoryRepository persists inventory lots. Every write bumps the lot version so availability
// checks made against an older version fail their guarded write.
type InventoryRepository struct {
	provider *pfirestore.Provider
	lots     *pfirestore.Collection[lotDocument]
}

var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	return &InventoryRepository{
		provider: provider,
		lots:     pfirestore.NewCollection[lotDocument](provider, inventoryCollection),
	}, nil
}

func (r *InventoryRepository) Insert(ctx context.Context, lot domain.InventoryLot) error {
	if lot.Stock < 0 {
		return repositories.NewInventoryError(repositories.InventoryErrorInvalidStock, fmt.Sprintf("lot %s stock must be >= 0", lot.ID), nil)
	}
	if err := r.lots.Create(ctx, lot.ID, newLotDocument(lot)); err != nil {
		return wrapRepositoryError("inventory.insert", err)
	}
	return nil
}

func (r *InventoryRepository) Get(ctx context.Context, lotID string) (domain.InventoryLot, error) {
	doc, err := r.lots.Get(ctx, lotID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.InventoryLot{}, repositories.NewInventoryError(repositories.InventoryErrorLotNotFound, fmt.Sprintf("lot %s not found", lotID), err)
		}
		return domain.InventoryLot{}, wrapRepositoryError("inventory.get", err)
	}
	return doc.Data.toDomain(doc.ID)
}

// List returns lots ordered by entry date, newest first.
func (r *InventoryRepository) List(ctx context.Context, filter repositories.InventoryListFilter) ([]domain.InventoryLot, error) {
	docs, err := r.lots.Query(ctx, func(q firestore.Query) firestore.Query {
		if !filter.IncludeAll {
			q = q.Where("active", "==", true)
		}
		if id := strings.TrimSpace(filter.CatalogID); id != "" {
			q = q.Where("catalogId", "==", id)
		}
		if filter.AvailableOnly {
			// Firestore requires the first order on the inequality field.
			q = q.Where("stock", ">", 0).OrderBy("stock", firestore.Asc)
		}
		q = q.OrderBy("entryDate", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if !filter.AvailableOnly {
			if filter.Pagination.Skip > 0 {
				q = q.Offset(filter.Pagination.Skip)
			}
			if filter.Pagination.Limit > 0 {
				q = q.Limit(filter.Pagination.Limit)
			}
		}
		return q
	})
	if err != nil {
		return nil, wrapRepositoryError("inventory.list", err)
	}

	lots := make([]domain.InventoryLot, 0, len(docs))
	for _, doc := range docs {
		lot, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	if filter.AvailableOnly {
		sortLotsByEntryDesc(lots)
		lots = pageLots(lots, filter.Pagination)
	}
	return lots, nil
}

func (r *InventoryRepository) Update(ctx context.Context, lot domain.InventoryLot, expectedVersion int64) (domain.InventoryLot, error) {
	if lot.Stock < 0 {
		return domain.InventoryLot{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidStock, fmt.Sprintf("lot %s stock must be >= 0", lot.ID), nil)
	}

	var updated domain.InventoryLot
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.lots.Doc(ctx, lot.ID)
		if err != nil {
			return err
		}
		current, err := r.lots.GetTx(tx, ref)
		if err != nil {
			if pfirestore.IsNotFound(err) {
				return repositories.NewInventoryError(repositories.InventoryErrorLotNotFound, fmt.Sprintf("lot %s not found", lot.ID), err)
			}
			return err
		}
		doc := current.Data
		if expectedVersion != 0 && doc.Version != expectedVersion {
			return repositories.NewInventoryError(repositories.InventoryErrorVersionConflict,
				fmt.Sprintf("lot %s is at version %d, expected %d", lot.ID, doc.Version, expectedVersion), nil)
		}
		doc.Stock = lot.Stock
		doc.Observation = lot.Observation
		doc.Active = lot.Active
		doc.UpdatedAt = lot.UpdatedAt.UTC()
		doc.Version++
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated, err = doc.toDomain(lot.ID)
		return err
	})
	if err != nil {
		return domain.InventoryLot{}, wrapRepositoryError("inventory.update", err)
	}
	return updated, nil
}

func (r *InventoryRepository) BumpVersions(ctx context.Context, lotIDs []string, now time.Time) error {
	if len(lotIDs) == 0 {
		return nil
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		refs := make([]*firestore.DocumentRef, 0, len(lotIDs))
		for _, id := range lotIDs {
			ref, err := r.lots.Doc(ctx, id)
			if err != nil {
				return err
			}
			if _, err := r.lots.GetTx(tx, ref); err != nil {
				if pfirestore.IsNotFound(err) {
					continue
				}
				return err
			}
			refs = append(refs, ref)
		}
		for _, ref := range refs {
			if err := tx.Update(ref, []firestore.Update{
				{Path: "version", Value: firestore.Increment(1)},
				{Path: "updatedAt", Value: now.UTC()},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapRepositoryError("inventory.bump_versions", err)
}

func wrapRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	return pfirestore.WrapError(op, err)
}

func sortLotsByEntryDesc(lots []domain.InventoryLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].EntryDate.Equal(lots[j].EntryDate) {
			return lots[i].ID < lots[j].ID
		}
		return lots[i].EntryDate.After(lots[j].EntryDate)
	})
}

func pageLots(lots []domain.InventoryLot, page domain.OffsetPagination) []domain.InventoryLot {
	if page.Skip >= len(lots) {
		return []domain.InventoryLot{}
	}
	lots = lots[page.Skip:]
	if page.Limit > 0 && page.Limit < len(lots) {
		lots = lots[:page.Limit]
	}
	return lots
}
