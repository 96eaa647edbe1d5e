package firestore

import (
	"context"
	"errors"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	pfirestore "github.com/AlanaPvart7/Proyect2/internal/platform/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// CatalogRepository reads catalog entries. The collection is owned by the catalog service.
type CatalogRepository struct {
	docs *pfirestore.Collection[catalogDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{docs: pfirestore.NewCollection[catalogDocument](provider, catalogCollection)}, nil
}

func (r *CatalogRepository) Get(ctx context.Context, productID string) (domain.CatalogProduct, error) {
	doc, err := r.docs.Get(ctx, productID)
	if err != nil {
		return domain.CatalogProduct{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CatalogRepository) GetMany(ctx context.Context, productIDs []string) (map[string]domain.CatalogProduct, error) {
	docs, err := r.docs.GetAll(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.CatalogProduct, len(docs))
	for _, doc := range docs {
		out[doc.ID] = doc.Data.toDomain(doc.ID)
	}
	return out, nil
}
