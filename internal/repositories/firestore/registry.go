package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/AlanaPvart7/Proyect2/internal/platform/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// Registry bundles the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider *pfirestore.Provider

	catalog   *CatalogRepository
	inventory *InventoryRepository
	orders    *OrderRepository
	lineItems *LineItemRepository
	records   *StatusRecordRepository
	statuses  *StatusDefinitionRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on provider. Firestore is always probed for readiness;
// extra checks cover the other dependencies.
func NewRegistry(provider *pfirestore.Provider, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}

	reg := &Registry{provider: provider}
	var err error
	if reg.catalog, err = NewCatalogRepository(provider); err != nil {
		return nil, err
	}
	if reg.inventory, err = NewInventoryRepository(provider); err != nil {
		return nil, err
	}
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.lineItems, err = NewLineItemRepository(provider); err != nil {
		return nil, err
	}
	if reg.records, err = NewStatusRecordRepository(provider); err != nil {
		return nil, err
	}
	if reg.statuses, err = NewStatusDefinitionRepository(provider); err != nil {
		return nil, err
	}

	checks := append([]repositories.DependencyCheck{{Name: "firestore", Check: provider.Ping}}, extraChecks...)
	if reg.health, err = repositories.NewDependencyHealthRepository(checks); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Inventory() repositories.InventoryRepository { return r.inventory }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) LineItems() repositories.LineItemRepository { return r.lineItems }

func (r *Registry) StatusRecords() repositories.StatusRecordRepository { return r.records }

func (r *Registry) StatusDefinitions() repositories.StatusDefinitionRepository { return r.statuses }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
