package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	"github.com/AlanaPvart7/Proyect2/internal/platform/locks"
	"github.com/AlanaPvart7/Proyect2/internal/platform/textutil"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

const (
	lotIDPrefix          = "lot_"
	maxObservationLength = 1000
	defaultLotPageSize   = 50
	maxLotPageSize       = 200
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Inventory       repositories.InventoryRepository
	Catalog         CatalogReference
	Availability    AvailabilityCalculator
	Locker          locks.Locker
	Events          EventPublisher
	ReserveAttempts int
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	repo         repositories.InventoryRepository
	catalog      CatalogReference
	availability AvailabilityCalculator
	locks        lockSet
	events       eventEmitter
	attempts     int
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("inventory service: catalog reference is required")
	}
	if deps.Availability == nil {
		return nil, errors.New("inventory service: availability calculator is required")
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

	return &inventoryService{
		repo:         deps.Inventory,
		catalog:      deps.Catalog,
		availability: deps.Availability,
		locks:        lockSet{locker: deps.Locker},
		events:       eventEmitter{publisher: deps.Events, newID: idGen, clock: utc, logger: logger},
		attempts:     attempts,
		clock:        utc,
		newID:        idGen,
		logger:       logger,
	}, nil
}

func (s *inventoryService) CreateLot(ctx context.Context, cmd CreateLotCommand) (InventoryLotView, error) {
	if !cmd.Requester.IsAdmin {
		return InventoryLotView{}, fmt.Errorf("%w: stock intake requires an admin", ErrForbidden)
	}
	catalogID, err := ValidateIdentifier("catalog id", cmd.CatalogID)
	if err != nil {
		return InventoryLotView{}, err
	}
	if cmd.Stock < 0 {
		return InventoryLotView{}, fmt.Errorf("%w: stock must be >= 0", ErrInvalidInput)
	}
	purchase, err := parsePositiveMoney("purchase price", cmd.PurchasePrice)
	if err != nil {
		return InventoryLotView{}, err
	}
	sale, err := parsePositiveMoney("sale price", cmd.SalePrice)
	if err != nil {
		return InventoryLotView{}, err
	}

	product, err := s.catalog.ResolveProduct(ctx, catalogID)
	if err != nil {
		return InventoryLotView{}, err
	}
	if !product.Active {
		return InventoryLotView{}, fmt.Errorf("%w: catalog %s is inactive", ErrNotFound, catalogID)
	}

	now := s.clock()
	entry := cmd.EntryDate
	if entry.IsZero() {
		entry = now
	}
	lot := InventoryLot{
		ID:            lotIDPrefix + s.newID(),
		CatalogID:     catalogID,
		Stock:         cmd.Stock,
		EntryDate:     entry.UTC(),
		PurchasePrice: purchase,
		SalePrice:     sale,
		Observation:   textutil.SanitizePlainText(cmd.Observation, maxObservationLength),
		Active:        true,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, lot); err != nil {
		return InventoryLotView{}, mapRepositoryError(err)
	}

	s.logger(ctx, "inventory.lot.created", map[string]any{
		"lotId":     lot.ID,
		"catalogId": catalogID,
		"stock":     lot.Stock,
	})
	s.events.emit(ctx, FulfillmentEvent{
		Type:    EventInventoryLotCreated,
		LotID:   lot.ID,
		ActorID: cmd.Requester.UserID,
		Payload: map[string]any{"catalogId": catalogID, "stock": lot.Stock},
	})

	return InventoryLotView{
		Lot:          lot,
		Catalog:      &product,
		Availability: Availability{LotID: lot.ID, Stock: lot.Stock, Available: lot.Stock, Version: lot.Version, ComputedAt: now},
	}, nil
}

func (s *inventoryService) GetLot(ctx context.Context, lotID string) (InventoryLotView, error) {
	lotID, err := ValidateIdentifier("lot id", lotID)
	if err != nil {
		return InventoryLotView{}, err
	}
	lot, err := s.repo.Get(ctx, lotID)
	if err != nil {
		return InventoryLotView{}, mapRepositoryError(err)
	}
	if !lot.Active {
		return InventoryLotView{}, fmt.Errorf("%w: lot %s is inactive", ErrNotFound, lotID)
	}
	return s.view(ctx, lot)
}

// ListLots returns lots sorted by entry date, newest first. AvailableOnly keeps lots with stock.
func (s *inventoryService) ListLots(ctx context.Context, filter LotListFilter) ([]InventoryLotView, error) {
	if filter.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", ErrInvalidInput)
	}
	limit := filter.Limit
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must be >= 0", ErrInvalidInput)
	case limit == 0:
		limit = defaultLotPageSize
	case limit > maxLotPageSize:
		limit = maxLotPageSize
	}
	catalogID := strings.TrimSpace(filter.CatalogID)
	if catalogID != "" {
		var err error
		if catalogID, err = ValidateIdentifier("catalog id", catalogID); err != nil {
			return nil, err
		}
	}

	lots, err := s.repo.List(ctx, repositories.InventoryListFilter{
		CatalogID:     catalogID,
		AvailableOnly: filter.AvailableOnly,
		IncludeAll:    filter.IncludeAll,
		Pagination:    domain.OffsetPagination{Skip: filter.Skip, Limit: limit},
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if len(lots) == 0 {
		return []InventoryLotView{}, nil
	}

	availability, err := s.availability.ForLots(ctx, lots)
	if err != nil {
		return nil, err
	}
	catalogIDs := make([]string, 0, len(lots))
	for _, lot := range lots {
		catalogIDs = append(catalogIDs, lot.CatalogID)
	}
	products, err := s.catalog.ResolveProducts(ctx, catalogIDs)
	if err != nil {
		return nil, err
	}

	views := make([]InventoryLotView, 0, len(lots))
	for _, lot := range lots {
		view := InventoryLotView{Lot: lot, Availability: availability[lot.ID]}
		if product, ok := products[lot.CatalogID]; ok {
			view.Catalog = &product
		}
		views = append(views, view)
	}
	return views, nil
}

// UpdateLot edits stock and observation. Stock may not drop below what active orders reserve.
func (s *inventoryService) UpdateLot(ctx context.Context, cmd UpdateLotCommand) (InventoryLotView, error) {
	if !cmd.Requester.IsAdmin {
		return InventoryLotView{}, fmt.Errorf("%w: lot updates require an admin", ErrForbidden)
	}
	lotID, err := ValidateIdentifier("lot id", cmd.LotID)
	if err != nil {
		return InventoryLotView{}, err
	}
	if cmd.Stock == nil && cmd.Observation == nil {
		return InventoryLotView{}, fmt.Errorf("%w: stock or observation is required", ErrInvalidInput)
	}
	if cmd.Stock != nil && *cmd.Stock < 0 {
		return InventoryLotView{}, fmt.Errorf("%w: stock must be >= 0", ErrInvalidInput)
	}

	var updated InventoryLot
	err = s.locks.with(ctx, []string{locks.LotKey(lotID)}, func(ctx context.Context) error {
		var lastErr error
		for attempt := 1; attempt <= s.attempts; attempt++ {
			lot, err := s.repo.Get(ctx, lotID)
			if err != nil {
				return mapRepositoryError(err)
			}
			if !lot.Active {
				return fmt.Errorf("%w: lot %s is inactive", ErrNotFound, lotID)
			}
			expected := lot.Version
			if cmd.Stock != nil {
				if *cmd.Stock < lot.Stock {
					current, err := s.availability.ForLot(ctx, lot)
					if err != nil {
						return err
					}
					if *cmd.Stock < current.Reserved {
						return fmt.Errorf("%w: lot %s has %d reserved, cannot set stock to %d", ErrInsufficientStock, lotID, current.Reserved, *cmd.Stock)
					}
				}
				lot.Stock = *cmd.Stock
			}
			if cmd.Observation != nil {
				lot.Observation = textutil.SanitizePlainText(*cmd.Observation, maxObservationLength)
			}
			lot.UpdatedAt = s.clock()

			updated, err = s.repo.Update(ctx, lot, expected)
			if err == nil {
				return nil
			}
			if !isLotVersionConflict(err) {
				return mapRepositoryError(err)
			}
			lastErr = err
		}
		return fmt.Errorf("%w: lot %s kept changing after %d attempts: %v", ErrConflict, lotID, s.attempts, lastErr)
	})
	if err != nil {
		return InventoryLotView{}, err
	}

	s.logger(ctx, "inventory.lot.updated", map[string]any{
		"lotId":   updated.ID,
		"stock":   updated.Stock,
		"version": updated.Version,
	})
	s.events.emit(ctx, FulfillmentEvent{
		Type:    EventInventoryLotUpdated,
		LotID:   updated.ID,
		ActorID: cmd.Requester.UserID,
		Payload: map[string]any{"stock": updated.Stock, "active": updated.Active, "version": updated.Version},
	})
	return s.view(ctx, updated)
}

// DeactivateLot soft-deletes a lot. Existing line items keep their reference.
func (s *inventoryService) DeactivateLot(ctx context.Context, lotID string, requester Requester) (InventoryLotView, error) {
	if !requester.IsAdmin {
		return InventoryLotView{}, fmt.Errorf("%w: lot deactivation requires an admin", ErrForbidden)
	}
	lotID, err := ValidateIdentifier("lot id", lotID)
	if err != nil {
		return InventoryLotView{}, err
	}

	var updated InventoryLot
	err = s.locks.with(ctx, []string{locks.LotKey(lotID)}, func(ctx context.Context) error {
		lot, err := s.repo.Get(ctx, lotID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if !lot.Active {
			updated = lot
			return nil
		}
		lot.Active = false
		lot.UpdatedAt = s.clock()
		updated, err = s.repo.Update(ctx, lot, lot.Version)
		return mapRepositoryError(err)
	})
	if err != nil {
		return InventoryLotView{}, err
	}

	s.logger(ctx, "inventory.lot.deactivated", map[string]any{"lotId": lotID})
	s.events.emit(ctx, FulfillmentEvent{
		Type:    EventInventoryLotUpdated,
		LotID:   lotID,
		ActorID: requester.UserID,
		Payload: map[string]any{"active": false, "version": updated.Version},
	})
	return s.view(ctx, updated)
}

func (s *inventoryService) Availability(ctx context.Context, lotID string) (Availability, error) {
	return s.availability.Availability(ctx, lotID)
}

func (s *inventoryService) view(ctx context.Context, lot InventoryLot) (InventoryLotView, error) {
	availability, err := s.availability.ForLot(ctx, lot)
	if err != nil {
		return InventoryLotView{}, err
	}
	view := InventoryLotView{Lot: lot, Availability: availability}
	product, err := s.catalog.ResolveProduct(ctx, lot.CatalogID)
	switch {
	case err == nil:
		view.Catalog = &product
	case !errors.Is(err, ErrNotFound):
		return InventoryLotView{}, err
	}
	return view, nil
}

func parsePositiveMoney(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a number", ErrInvalidInput, field)
	}
	if !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be greater than zero", ErrInvalidInput, field)
	}
	return domain.RoundMoney(value), nil
}
