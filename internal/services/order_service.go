package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	"github.com/AlanaPvart7/Proyect2/internal/platform/textutil"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

const (
	orderIDPrefix        = "ord_"
	maxOrderFieldLength  = 64
	defaultOrderPageSize = 50
)

// OrderServiceDeps bundles the collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Ledger      StatusLedger
	Reconciler  Reconciler
	Events      EventPublisher
	InProgress  string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	ledger     StatusLedger
	reconciler Reconciler
	events     eventEmitter
	inProgress string
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires the order service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Ledger == nil:
		return nil, errors.New("order service: status ledger is required")
	case deps.Reconciler == nil:
		return nil, errors.New("order service: reconciler is required")
	case strings.TrimSpace(deps.InProgress) == "":
		return nil, errors.New("order service: in-progress status is required")
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

	return &orderService{
		orders:     deps.Orders,
		ledger:     deps.Ledger,
		reconciler: deps.Reconciler,
		events:     eventEmitter{publisher: deps.Events, newID: idGen, clock: utc, logger: logger},
		inProgress: strings.TrimSpace(deps.InProgress),
		clock:      utc,
		newID:      idGen,
		logger:     logger,
	}, nil
}

// Create opens an empty order with zero totals and its initial in-progress status in one write.
func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (OrderView, error) {
	userID := strings.TrimSpace(cmd.Requester.UserID)
	if userID == "" {
		return OrderView{}, fmt.Errorf("%w: authenticated user required", ErrForbidden)
	}
	payment := textutil.SanitizePlainText(cmd.PaymentMethod, maxOrderFieldLength)
	if payment == "" {
		return OrderView{}, fmt.Errorf("%w: payment method is required", ErrInvalidInput)
	}
	delivery := textutil.SanitizePlainText(cmd.DeliveryType, maxOrderFieldLength)
	if delivery == "" {
		return OrderView{}, fmt.Errorf("%w: delivery type is required", ErrInvalidInput)
	}

	now := s.clock()
	order := Order{
		ID:            orderIDPrefix + s.newID(),
		UserID:        userID,
		PaymentMethod: payment,
		DeliveryType:  delivery,
		Totals:        domain.ZeroTotals(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	initial := OrderStatusRecord{
		ID:        statusRecordIDPrefix + s.newID(),
		OrderID:   order.ID,
		StatusID:  s.inProgress,
		ActorID:   userID,
		Timestamp: now,
	}
	if err := s.orders.Insert(ctx, order, initial); err != nil {
		return OrderView{}, mapRepositoryError(err)
	}

	s.logger(ctx, "order.created", map[string]any{"orderId": order.ID, "userId": userID})
	s.events.emit(ctx, FulfillmentEvent{
		Type:    EventOrderCreated,
		OrderID: order.ID,
		ActorID: userID,
		Payload: map[string]any{"status": s.inProgress, "paymentMethod": payment, "deliveryType": delivery},
	})
	return OrderView{Order: order, CurrentStatus: &initial}, nil
}

func (s *orderService) Get(ctx context.Context, orderID string, requester Requester) (OrderView, error) {
	order, err := s.loadAccessible(ctx, orderID, requester)
	if err != nil {
		return OrderView{}, err
	}
	return s.withStatus(ctx, order)
}

// List returns the requester's orders. Admins may list another user's orders or all orders.
func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error) {
	userID := strings.TrimSpace(filter.UserID)
	switch {
	case !filter.Requester.IsAdmin && (filter.AllUsers || (userID != "" && userID != filter.Requester.UserID)):
		return domain.CursorPage[OrderView]{}, fmt.Errorf("%w: only admins may list other users' orders", ErrForbidden)
	case filter.Requester.IsAdmin && filter.AllUsers:
		userID = ""
	case userID == "":
		userID = strings.TrimSpace(filter.Requester.UserID)
		if userID == "" {
			return domain.CursorPage[OrderView]{}, fmt.Errorf("%w: authenticated user required", ErrForbidden)
		}
	}

	pagination := filter.Pagination
	if pagination.PageSize <= 0 {
		pagination.PageSize = defaultOrderPageSize
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{UserID: userID, Pagination: pagination})
	if err != nil {
		return domain.CursorPage[OrderView]{}, mapRepositoryError(err)
	}

	ids := make([]string, 0, len(page.Items))
	for _, order := range page.Items {
		ids = append(ids, order.ID)
	}
	current, err := s.ledger.CurrentMany(ctx, ids)
	if err != nil {
		return domain.CursorPage[OrderView]{}, err
	}

	views := make([]OrderView, 0, len(page.Items))
	for _, order := range page.Items {
		view := OrderView{Order: order}
		if record, ok := current[order.ID]; ok {
			view.CurrentStatus = &record
		}
		views = append(views, view)
	}
	return domain.CursorPage[OrderView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

func (s *orderService) History(ctx context.Context, orderID string, requester Requester) ([]OrderStatusRecord, error) {
	order, err := s.loadAccessible(ctx, orderID, requester)
	if err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, order.ID)
}

// Recompute retries reconciliation without touching line items.
func (s *orderService) Recompute(ctx context.Context, orderID string, requester Requester) (OrderView, error) {
	order, err := s.loadAccessible(ctx, orderID, requester)
	if err != nil {
		return OrderView{}, err
	}
	updated, err := s.reconciler.RecomputeOrder(ctx, order.ID)
	if err != nil {
		return OrderView{}, err
	}
	return s.withStatus(ctx, updated)
}

func (s *orderService) loadAccessible(ctx context.Context, orderID string, requester Requester) (Order, error) {
	orderID, err := ValidateIdentifier("order id", orderID)
	if err != nil {
		return Order{}, err
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err)
	}
	if !CanAccessOrder(order, requester) {
		return Order{}, fmt.Errorf("%w: order %s belongs to another user", ErrForbidden, orderID)
	}
	return order, nil
}

func (s *orderService) withStatus(ctx context.Context, order Order) (OrderView, error) {
	record, ok, err := s.ledger.Current(ctx, order.ID)
	if err != nil {
		return OrderView{}, err
	}
	view := OrderView{Order: order}
	if ok {
		view.CurrentStatus = &record
	}
	return view, nil
}
