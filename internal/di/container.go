package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/AlanaPvart7/Proyect2/internal/platform/config"
	"github.com/AlanaPvart7/Proyect2/internal/platform/locks"
	"github.com/AlanaPvart7/Proyect2/internal/platform/observability"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog      services.CatalogReference
	Ledger       services.StatusLedger
	Availability services.AvailabilityCalculator
	Reconciler   services.Reconciler
	LineItems    services.LineItemService
	Lifecycle    services.LifecycleController
	Orders       services.OrderService
	Inventory    services.InventoryService
	Statuses     services.StatusDefinitionService
	System       services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Locker       locks.Locker
	Services     Services
}

type containerOptions struct {
	locker locks.Locker
	events services.EventPublisher
	logger *zap.Logger
	build  services.BuildInfo
	clock  func() time.Time
	newID  func() string
}

// Option customises container construction.
type Option func(*containerOptions)

// WithLocker overrides the lock backend. Defaults to an in-process keyed mutex.
func WithLocker(locker locks.Locker) Option {
	return func(o *containerOptions) {
		if locker != nil {
			o.locker = locker
		}
	}
}

// WithEventPublisher enables fulfillment event publishing.
func WithEventPublisher(publisher services.EventPublisher) Option {
	return func(o *containerOptions) {
		o.events = publisher
	}
}

// WithLogger sets the base logger used by the services' event logs.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBuildInfo sets the metadata reported by the health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = build
	}
}

// WithClock overrides the time source shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *containerOptions) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// NewContainer constructs the runtime dependencies on top of reg.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{
		logger: zap.NewNop(),
		clock:  time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.locker == nil {
		options.locker = locks.NewKeyedMutex(cfg.Redis.LockWait)
	}
	if options.build.Environment == "" {
		options.build.Environment = cfg.Security.Environment
	}
	if options.build.StartedAt.IsZero() {
		options.build.StartedAt = options.clock().UTC()
	}

	svc, err := buildServices(reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Locker:       options.locker,
		Services:     svc,
	}, nil
}

// SeedStatuses inserts the configured status definitions that do not exist yet.
func (c *Container) SeedStatuses(ctx context.Context) (int, error) {
	if c == nil || c.Services.Statuses == nil {
		return 0, errors.New("status definition service not configured")
	}
	return c.Services.Statuses.Seed(ctx, c.Config.Fulfillment.KnownStatuses)
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, opts containerOptions) (Services, error) {
	var (
		svc    Services
		err    error
		logger = observability.NewEventLogger(opts.logger)
		f      = cfg.Fulfillment
	)

	if svc.Catalog, err = services.NewCatalogReference(services.CatalogReferenceDeps{
		Catalog: reg.Catalog(),
	}); err != nil {
		return Services{}, fmt.Errorf("build catalog reference: %w", err)
	}

	if svc.Ledger, err = services.NewStatusLedger(services.StatusLedgerDeps{
		Records:           reg.StatusRecords(),
		ReservingStatuses: f.ReservingStatuses,
		Clock:             opts.clock,
		IDGenerator:       opts.newID,
	}); err != nil {
		return Services{}, fmt.Errorf("build status ledger: %w", err)
	}

	if svc.Availability, err = services.NewAvailabilityCalculator(services.AvailabilityCalculatorDeps{
		Inventory: reg.Inventory(),
		LineItems: reg.LineItems(),
		Ledger:    svc.Ledger,
		Events:    opts.events,
		Clock:     opts.clock,
		Logger:    logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build availability calculator: %w", err)
	}

	if svc.Reconciler, err = services.NewReconciler(services.ReconcilerDeps{
		Orders:  reg.Orders(),
		Catalog: svc.Catalog,
		Locker:  opts.locker,
		Events:  opts.events,
		TaxRate: &f.TaxRate,
		Clock:   opts.clock,
		Logger:  logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build reconciler: %w", err)
	}

	if svc.LineItems, err = services.NewLineItemService(services.LineItemServiceDeps{
		Orders:          reg.Orders(),
		LineItems:       reg.LineItems(),
		Inventory:       reg.Inventory(),
		Catalog:         svc.Catalog,
		Availability:    svc.Availability,
		Reconciler:      svc.Reconciler,
		Locker:          opts.locker,
		Events:          opts.events,
		ReserveAttempts: f.ReserveAttempts,
		Clock:           opts.clock,
		IDGenerator:     opts.newID,
		Logger:          logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build line item service: %w", err)
	}

	if svc.Lifecycle, err = services.NewLifecycleController(services.LifecycleControllerDeps{
		Orders:      reg.Orders(),
		LineItems:   reg.LineItems(),
		Inventory:   reg.Inventory(),
		Statuses:    reg.StatusDefinitions(),
		Ledger:      svc.Ledger,
		Locker:      opts.locker,
		Events:      opts.events,
		InProgress:  f.InProgressStatus,
		Ordered:     f.OrderedStatus,
		Clock:       opts.clock,
		IDGenerator: opts.newID,
		Logger:      logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build lifecycle controller: %w", err)
	}

	if svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Ledger:      svc.Ledger,
		Reconciler:  svc.Reconciler,
		Events:      opts.events,
		InProgress:  f.InProgressStatus,
		Clock:       opts.clock,
		IDGenerator: opts.newID,
		Logger:      logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	if svc.Inventory, err = services.NewInventoryService(services.InventoryServiceDeps{
		Inventory:       reg.Inventory(),
		Catalog:         svc.Catalog,
		Availability:    svc.Availability,
		Locker:          opts.locker,
		Events:          opts.events,
		ReserveAttempts: f.ReserveAttempts,
		Clock:           opts.clock,
		IDGenerator:     opts.newID,
		Logger:          logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}

	if svc.Statuses, err = services.NewStatusDefinitionService(services.StatusDefinitionServiceDeps{
		Statuses: reg.StatusDefinitions(),
		Clock:    opts.clock,
		Logger:   logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build status definition service: %w", err)
	}

	if svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		HealthRepository:  reg.Health(),
		StatusDefinitions: reg.StatusDefinitions(),
		RequiredStatuses:  append([]string{f.InProgressStatus, f.OrderedStatus}, f.ReservingStatuses...),
		Clock:             opts.clock,
		Build:             opts.build,
	}); err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}

	return svc, nil
}
