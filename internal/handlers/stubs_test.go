package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	"github.com/AlanaPvart7/Proyect2/internal/platform/auth"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

var errNotStubbed = errors.New("not implemented")

type stubOrderService struct {
	createFn    func(context.Context, services.CreateOrderCommand) (services.OrderView, error)
	getFn       func(context.Context, string, services.Requester) (services.OrderView, error)
	listFn      func(context.Context, services.OrderListFilter) (domain.CursorPage[services.OrderView], error)
	historyFn   func(context.Context, string, services.Requester) ([]services.OrderStatusRecord, error)
	recomputeFn func(context.Context, string, services.Requester) (services.OrderView, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.OrderView, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.OrderView{}, errNotStubbed
}

func (s *stubOrderService) Get(ctx context.Context, orderID string, requester services.Requester) (services.OrderView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID, requester)
	}
	return services.OrderView{}, errNotStubbed
}

func (s *stubOrderService) List(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.OrderView], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.OrderView]{}, nil
}

func (s *stubOrderService) History(ctx context.Context, orderID string, requester services.Requester) ([]services.OrderStatusRecord, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, orderID, requester)
	}
	return nil, nil
}

func (s *stubOrderService) Recompute(ctx context.Context, orderID string, requester services.Requester) (services.OrderView, error) {
	if s.recomputeFn != nil {
		return s.recomputeFn(ctx, orderID, requester)
	}
	return services.OrderView{}, errNotStubbed
}

type stubLineItemService struct {
	addFn    func(context.Context, services.AddLineItemCommand) (services.LineItemResult, error)
	updateFn func(context.Context, services.UpdateLineItemCommand) (services.LineItemResult, error)
	removeFn func(context.Context, services.RemoveLineItemCommand) (services.LineItemResult, error)
	listFn   func(context.Context, string, services.Requester) ([]services.LineItemView, error)
}

func (s *stubLineItemService) Add(ctx context.Context, cmd services.AddLineItemCommand) (services.LineItemResult, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.LineItemResult{}, errNotStubbed
}

func (s *stubLineItemService) Update(ctx context.Context, cmd services.UpdateLineItemCommand) (services.LineItemResult, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.LineItemResult{}, errNotStubbed
}

func (s *stubLineItemService) Remove(ctx context.Context, cmd services.RemoveLineItemCommand) (services.LineItemResult, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.LineItemResult{}, errNotStubbed
}

func (s *stubLineItemService) List(ctx context.Context, orderID string, requester services.Requester) ([]services.LineItemView, error) {
	if s.listFn != nil {
		return s.listFn(ctx, orderID, requester)
	}
	return nil, nil
}

type stubLifecycle struct {
	transitionFn func(context.Context, services.TransitionCommand) (services.TransitionResult, error)
	finalizeFn   func(context.Context, string, services.Requester) (services.TransitionResult, error)
}

func (s *stubLifecycle) Transition(ctx context.Context, cmd services.TransitionCommand) (services.TransitionResult, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.TransitionResult{}, errNotStubbed
}

func (s *stubLifecycle) Finalize(ctx context.Context, orderID string, requester services.Requester) (services.TransitionResult, error) {
	if s.finalizeFn != nil {
		return s.finalizeFn(ctx, orderID, requester)
	}
	return services.TransitionResult{}, errNotStubbed
}

func (s *stubLifecycle) Override(ctx context.Context, cmd services.TransitionCommand) (services.TransitionResult, error) {
	return s.Transition(ctx, cmd)
}

type stubInventoryService struct {
	createFn       func(context.Context, services.CreateLotCommand) (services.InventoryLotView, error)
	getFn          func(context.Context, string) (services.InventoryLotView, error)
	listFn         func(context.Context, services.LotListFilter) ([]services.InventoryLotView, error)
	updateFn       func(context.Context, services.UpdateLotCommand) (services.InventoryLotView, error)
	deactivateFn   func(context.Context, string, services.Requester) (services.InventoryLotView, error)
	availabilityFn func(context.Context, string) (services.Availability, error)
}

func (s *stubInventoryService) CreateLot(ctx context.Context, cmd services.CreateLotCommand) (services.InventoryLotView, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.InventoryLotView{}, errNotStubbed
}

func (s *stubInventoryService) GetLot(ctx context.Context, lotID string) (services.InventoryLotView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, lotID)
	}
	return services.InventoryLotView{}, errNotStubbed
}

func (s *stubInventoryService) ListLots(ctx context.Context, filter services.LotListFilter) ([]services.InventoryLotView, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubInventoryService) UpdateLot(ctx context.Context, cmd services.UpdateLotCommand) (services.InventoryLotView, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.InventoryLotView{}, errNotStubbed
}

func (s *stubInventoryService) DeactivateLot(ctx context.Context, lotID string, requester services.Requester) (services.InventoryLotView, error) {
	if s.deactivateFn != nil {
		return s.deactivateFn(ctx, lotID, requester)
	}
	return services.InventoryLotView{}, errNotStubbed
}

func (s *stubInventoryService) Availability(ctx context.Context, lotID string) (services.Availability, error) {
	if s.availabilityFn != nil {
		return s.availabilityFn(ctx, lotID)
	}
	return services.Availability{}, errNotStubbed
}

type stubStatusDefinitionService struct {
	createFn     func(context.Context, services.StatusDefinitionCommand) (services.StatusDefinition, error)
	listFn       func(context.Context, bool) ([]services.StatusDefinition, error)
	updateFn     func(context.Context, services.StatusDefinitionCommand) (services.StatusDefinition, error)
	deactivateFn func(context.Context, string, services.Requester) (services.StatusDefinition, error)
}

func (s *stubStatusDefinitionService) Create(ctx context.Context, cmd services.StatusDefinitionCommand) (services.StatusDefinition, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.StatusDefinition{}, errNotStubbed
}

func (s *stubStatusDefinitionService) Get(context.Context, string) (services.StatusDefinition, error) {
	return services.StatusDefinition{}, errNotStubbed
}

func (s *stubStatusDefinitionService) List(ctx context.Context, includeInactive bool) ([]services.StatusDefinition, error) {
	if s.listFn != nil {
		return s.listFn(ctx, includeInactive)
	}
	return nil, nil
}

func (s *stubStatusDefinitionService) Update(ctx context.Context, cmd services.StatusDefinitionCommand) (services.StatusDefinition, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.StatusDefinition{}, errNotStubbed
}

func (s *stubStatusDefinitionService) Deactivate(ctx context.Context, statusID string, requester services.Requester) (services.StatusDefinition, error) {
	if s.deactivateFn != nil {
		return s.deactivateFn(ctx, statusID, requester)
	}
	return services.StatusDefinition{}, errNotStubbed
}

func (s *stubStatusDefinitionService) Seed(context.Context, map[string]string) (int, error) {
	return 0, nil
}

type stubReconciler struct {
	recomputeFn func(context.Context, string) (services.Order, error)
}

func (s *stubReconciler) Recompute(ctx context.Context, orderID string) (services.OrderTotals, error) {
	order, err := s.RecomputeOrder(ctx, orderID)
	return order.Totals, err
}

func (s *stubReconciler) RecomputeOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.recomputeFn != nil {
		return s.recomputeFn(ctx, orderID)
	}
	return services.Order{}, errNotStubbed
}

var (
	_ services.OrderService            = (*stubOrderService)(nil)
	_ services.LineItemService         = (*stubLineItemService)(nil)
	_ services.LifecycleController     = (*stubLifecycle)(nil)
	_ services.InventoryService        = (*stubInventoryService)(nil)
	_ services.StatusDefinitionService = (*stubStatusDefinitionService)(nil)
	_ services.Reconciler              = (*stubReconciler)(nil)
)

// withIdentity mounts routes behind a middleware that authenticates every request as uid.
func withIdentity(uid string, roles []string, routes RouteRegistrar) chi.Router {
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := auth.WithIdentity(r.Context(), &auth.Identity{UID: uid, Roles: roles})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	routes(router)
	return router
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Error    string          `json:"error"`
	Status   int             `json:"status"`
	Data     json.RawMessage `json:"data"`
	Warnings []string        `json:"warnings"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return env
}
