package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AlanaPvart7/Proyect2/internal/platform/auth"
	"github.com/AlanaPvart7/Proyect2/internal/platform/httpx"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

type statusDefinitionRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// StatusDefinitionHandlers manages the catalogue of order statuses.
type StatusDefinitionHandlers struct {
	authn    *auth.Authenticator
	statuses services.StatusDefinitionService
}

// NewStatusDefinitionHandlers constructs a new StatusDefinitionHandlers instance.
func NewStatusDefinitionHandlers(authn *auth.Authenticator, statuses services.StatusDefinitionService) *StatusDefinitionHandlers {
	return &StatusDefinitionHandlers{authn: authn, statuses: statuses}
}

// Routes registers the /order-statuses endpoints.
func (h *StatusDefinitionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{statusID}", h.get)
	r.Put("/{statusID}", h.update)
	r.Delete("/{statusID}", h.deactivate)
}

func (h *StatusDefinitionHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.statuses == nil {
		writeUnavailable(ctx, w, "order_status")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}
	includeInactive, err := parseBoolParam(r.URL.Query().Get("include_inactive"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "include_inactive must be a boolean", http.StatusBadRequest))
		return
	}

	defs, err := h.statuses.List(ctx, includeInactive && requester.IsAdmin)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]statusDefinitionPayload, 0, len(defs))
	for _, def := range defs {
		items = append(items, buildStatusDefinitionPayload(def))
	}
	httpx.WriteSuccess(w, httpx.Response{Data: map[string]any{"items": items}})
}

func (h *StatusDefinitionHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.statuses == nil {
		writeUnavailable(ctx, w, "order_status")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	var req statusDefinitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	def, err := h.statuses.Create(ctx, services.StatusDefinitionCommand{
		ID:          req.ID,
		Description: req.Description,
		Active:      req.Active,
		Requester:   requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Status: http.StatusCreated, Message: "order status created", Data: buildStatusDefinitionPayload(def)})
}

func (h *StatusDefinitionHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.statuses == nil {
		writeUnavailable(ctx, w, "order_status")
		return
	}
	if _, ok := requireRequester(ctx, w); !ok {
		return
	}

	def, err := h.statuses.Get(ctx, chi.URLParam(r, "statusID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Data: buildStatusDefinitionPayload(def)})
}

func (h *StatusDefinitionHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.statuses == nil {
		writeUnavailable(ctx, w, "order_status")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	var req statusDefinitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}
	statusID := chi.URLParam(r, "statusID")
	if req.ID != "" && req.ID != statusID {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "id in body does not match path", http.StatusBadRequest))
		return
	}

	def, err := h.statuses.Update(ctx, services.StatusDefinitionCommand{
		ID:          statusID,
		Description: req.Description,
		Active:      req.Active,
		Requester:   requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Message: "order status updated", Data: buildStatusDefinitionPayload(def)})
}

func (h *StatusDefinitionHandlers) deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.statuses == nil {
		writeUnavailable(ctx, w, "order_status")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	def, err := h.statuses.Deactivate(ctx, chi.URLParam(r, "statusID"), requester)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Message: "order status deactivated", Data: buildStatusDefinitionPayload(def)})
}
