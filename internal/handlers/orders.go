package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlanaPvart7/Proyect2/internal/platform/auth"
	"github.com/AlanaPvart7/Proyect2/internal/platform/httpx"
	"github.com/AlanaPvart7/Proyect2/internal/platform/pagination"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

type createOrderRequest struct {
	PaymentMethod string `json:"payment_method"`
	DeliveryType  string `json:"delivery_type"`
}

type addLineItemRequest struct {
	ProductID string `json:"product_id"`
	LotID     string `json:"lot_id"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note"`
}

type updateLineItemRequest struct {
	Quantity *int    `json:"quantity"`
	Note     *string `json:"note"`
}

type transitionRequest struct {
	StatusID string `json:"status_id"`
}

// OrderHandlers exposes orders, their line items and their status lifecycle.
type OrderHandlers struct {
	authn     *auth.Authenticator
	orders    services.OrderService
	lineItems services.LineItemService
	lifecycle services.LifecycleController
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, lineItems services.LineItemService, lifecycle services.LifecycleController) *OrderHandlers {
	return &OrderHandlers{
		authn:     authn,
		orders:    orders,
		lineItems: lineItems,
		lifecycle: lifecycle,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:finalize", h.finalizeOrder)
	r.Post("/{orderID}:recompute", h.recomputeOrder)

	r.Get("/{orderID}/details", h.listLineItems)
	r.Post("/{orderID}/details", h.addLineItem)
	r.Put("/{orderID}/details/{detailID}", h.updateLineItem)
	r.Delete("/{orderID}/details/{detailID}", h.removeLineItem)

	r.Get("/{orderID}/statuses", h.statusHistory)
	r.Post("/{orderID}/statuses", h.transition)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	view, err := h.orders.Create(ctx, services.CreateOrderCommand{
		PaymentMethod: req.PaymentMethod,
		DeliveryType:  req.DeliveryType,
		Requester:     requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Status: http.StatusCreated, Message: "order created", Data: buildOrderViewPayload(view)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := pagination.ParsePage(query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	allUsers, err := parseBoolParam(query.Get("all"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "all must be a boolean", http.StatusBadRequest))
		return
	}

	result, err := h.orders.List(ctx, services.OrderListFilter{
		UserID:     strings.TrimSpace(query.Get("user_id")),
		AllUsers:   allUsers,
		Pagination: page,
		Requester:  requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(result.Items))
	for _, view := range result.Items {
		items = append(items, buildOrderViewPayload(view))
	}
	httpx.WriteSuccess(w, httpx.Response{Data: orderListPayload{
		Items:         items,
		NextPageToken: strings.TrimSpace(result.NextPageToken),
	}})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	view, err := h.orders.Get(ctx, chi.URLParam(r, "orderID"), requester)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Data: buildOrderViewPayload(view)})
}

func (h *OrderHandlers) recomputeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	view, err := h.orders.Recompute(ctx, chi.URLParam(r, "orderID"), requester)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Message: "order totals recomputed", Data: buildOrderViewPayload(view)})
}

func (h *OrderHandlers) listLineItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lineItems == nil {
		writeUnavailable(ctx, w, "line_item")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	views, err := h.lineItems.List(ctx, chi.URLParam(r, "orderID"), requester)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]lineItemPayload, 0, len(views))
	for _, view := range views {
		items = append(items, buildLineItemViewPayload(view))
	}
	httpx.WriteSuccess(w, httpx.Response{Data: map[string]any{"items": items}})
}

func (h *OrderHandlers) addLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lineItems == nil {
		writeUnavailable(ctx, w, "line_item")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	var req addLineItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	result, err := h.lineItems.Add(ctx, services.AddLineItemCommand{
		OrderID:   chi.URLParam(r, "orderID"),
		ProductID: req.ProductID,
		LotID:     req.LotID,
		Quantity:  req.Quantity,
		Note:      req.Note,
		Requester: requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeLineItemResult(w, http.StatusCreated, "line item added", result)
}

func (h *OrderHandlers) updateLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lineItems == nil {
		writeUnavailable(ctx, w, "line_item")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	var req updateLineItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	result, err := h.lineItems.Update(ctx, services.UpdateLineItemCommand{
		OrderID:    chi.URLParam(r, "orderID"),
		LineItemID: chi.URLParam(r, "detailID"),
		Quantity:   req.Quantity,
		Note:       req.Note,
		Requester:  requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeLineItemResult(w, http.StatusOK, "line item updated", result)
}

func (h *OrderHandlers) removeLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lineItems == nil {
		writeUnavailable(ctx, w, "line_item")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	result, err := h.lineItems.Remove(ctx, services.RemoveLineItemCommand{
		OrderID:    chi.URLParam(r, "orderID"),
		LineItemID: chi.URLParam(r, "detailID"),
		Requester:  requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeLineItemResult(w, http.StatusOK, "line item removed", result)
}

func (h *OrderHandlers) statusHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	records, err := h.orders.History(ctx, chi.URLParam(r, "orderID"), requester)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]statusRecordPayload, 0, len(records))
	for _, record := range records {
		items = append(items, buildStatusRecordPayload(record))
	}
	httpx.WriteSuccess(w, httpx.Response{Data: map[string]any{"items": items}})
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		writeUnavailable(ctx, w, "lifecycle")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	result, err := h.lifecycle.Transition(ctx, services.TransitionCommand{
		OrderID:   chi.URLParam(r, "orderID"),
		StatusID:  req.StatusID,
		Requester: requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Status: http.StatusCreated, Message: "order status updated", Data: buildTransitionPayload(result)})
}

func (h *OrderHandlers) finalizeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		writeUnavailable(ctx, w, "lifecycle")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	result, err := h.lifecycle.Finalize(ctx, chi.URLParam(r, "orderID"), requester)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Message: "order finalized", Data: buildTransitionPayload(result)})
}

func writeLineItemResult(w http.ResponseWriter, status int, message string, result services.LineItemResult) {
	httpx.WriteSuccess(w, httpx.Response{
		Status:  status,
		Message: message,
		Data: lineItemResultPayload{
			Item:  buildLineItemPayload(result.Item),
			Order: buildOrderPayload(result.Order, nil),
		},
		Warnings: result.Warnings,
	})
}
