package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// CatalogReferenceDeps bundles the collaborators of the catalog reference.
type CatalogReferenceDeps struct {
	Catalog repositories.CatalogRepository
}

type catalogReference struct {
	repo repositories.CatalogRepository
}

// NewCatalogReference returns a read-only CatalogReference backed by the catalog store.
func NewCatalogReference(deps CatalogReferenceDeps) (CatalogReference, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog reference: catalog repository is required")
	}
	return &catalogReference{repo: deps.Catalog}, nil
}

func (c *catalogReference) ResolveProduct(ctx context.Context, productID string) (CatalogProduct, error) {
	id, err := ValidateIdentifier("product id", productID)
	if err != nil {
		return CatalogProduct{}, err
	}
	product, err := c.repo.Get(ctx, id)
	if err != nil {
		return CatalogProduct{}, mapRepositoryError(err)
	}
	if product.ID == "" {
		product.ID = id
	}
	return product, nil
}

func (c *catalogReference) ResolveProducts(ctx context.Context, productIDs []string) (map[string]CatalogProduct, error) {
	ids := uniqueIDs(productIDs)
	if len(ids) == 0 {
		return map[string]CatalogProduct{}, nil
	}
	products, err := c.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog reference: resolve %d products: %w", len(ids), mapRepositoryError(err))
	}
	if products == nil {
		products = map[string]CatalogProduct{}
	}
	return products, nil
}

// uniqueIDs trims, drops empty values and de-duplicates while keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
