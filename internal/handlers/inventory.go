package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlanaPvart7/Proyect2/internal/platform/auth"
	"github.com/AlanaPvart7/Proyect2/internal/platform/httpx"
	"github.com/AlanaPvart7/Proyect2/internal/platform/pagination"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

// amountInput accepts monetary amounts as JSON strings or numbers without going through float64.
type amountInput string

func (a *amountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountInput(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("amount must be a number or numeric string")
	}
	*a = amountInput(n.String())
	return nil
}

type createLotRequest struct {
	CatalogID     string      `json:"catalog_id"`
	Stock         *int        `json:"stock"`
	EntryDate     string      `json:"entry_date"`
	PurchasePrice amountInput `json:"purchase_price"`
	SalePrice     amountInput `json:"sale_price"`
	Observation   string      `json:"observation"`
}

type updateLotRequest struct {
	Stock       *int    `json:"stock"`
	Observation *string `json:"observation"`
}

// InventoryHandlers exposes lot intake, listing and availability.
type InventoryHandlers struct {
	authn     *auth.Authenticator
	inventory services.InventoryService
}

// NewInventoryHandlers constructs a new InventoryHandlers instance.
func NewInventoryHandlers(authn *auth.Authenticator, inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{
		authn:     authn,
		inventory: inventory,
	}
}

// Routes registers the /inventory endpoints.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listLots)
	r.Post("/", h.createLot)
	r.Get("/{lotID}", h.getLot)
	r.Patch("/{lotID}", h.updateLot)
	r.Delete("/{lotID}", h.deactivateLot)
	r.Get("/{lotID}/availability", h.availability)
}

func (h *InventoryHandlers) listLots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeUnavailable(ctx, w, "inventory")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := pagination.ParseOffset(query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	availableOnly, err := parseBoolParam(query.Get("available_only"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "available_only must be a boolean", http.StatusBadRequest))
		return
	}
	includeInactive, err := parseBoolParam(query.Get("include_inactive"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "include_inactive must be a boolean", http.StatusBadRequest))
		return
	}
	if includeInactive && !requester.IsAdmin {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "only admins may list inactive lots", http.StatusForbidden))
		return
	}

	views, err := h.inventory.ListLots(ctx, services.LotListFilter{
		CatalogID:     strings.TrimSpace(query.Get("catalog_id")),
		AvailableOnly: availableOnly,
		IncludeAll:    includeInactive,
		Skip:          page.Skip,
		Limit:         page.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]lotPayload, 0, len(views))
	for _, view := range views {
		items = append(items, buildLotPayload(view))
	}
	httpx.WriteSuccess(w, httpx.Response{Data: map[string]any{"items": items}})
}

func (h *InventoryHandlers) createLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeUnavailable(ctx, w, "inventory")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	var req createLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}
	if req.Stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stock is required", http.StatusBadRequest))
		return
	}
	var entry time.Time
	if raw := strings.TrimSpace(req.EntryDate); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "entry_date must be an RFC3339 timestamp or YYYY-MM-DD", http.StatusBadRequest))
			return
		}
		entry = parsed
	}

	view, err := h.inventory.CreateLot(ctx, services.CreateLotCommand{
		CatalogID:     req.CatalogID,
		Stock:         *req.Stock,
		EntryDate:     entry,
		PurchasePrice: string(req.PurchasePrice),
		SalePrice:     string(req.SalePrice),
		Observation:   req.Observation,
		Requester:     requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Status: http.StatusCreated, Message: "lot created", Data: buildLotPayload(view)})
}

func (h *InventoryHandlers) getLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeUnavailable(ctx, w, "inventory")
		return
	}
	if _, ok := requireRequester(ctx, w); !ok {
		return
	}

	view, err := h.inventory.GetLot(ctx, chi.URLParam(r, "lotID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Data: buildLotPayload(view)})
}

func (h *InventoryHandlers) updateLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeUnavailable(ctx, w, "inventory")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	var req updateLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	view, err := h.inventory.UpdateLot(ctx, services.UpdateLotCommand{
		LotID:       chi.URLParam(r, "lotID"),
		Stock:       req.Stock,
		Observation: req.Observation,
		Requester:   requester,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Message: "lot updated", Data: buildLotPayload(view)})
}

func (h *InventoryHandlers) deactivateLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeUnavailable(ctx, w, "inventory")
		return
	}
	requester, ok := requireRequester(ctx, w)
	if !ok {
		return
	}

	view, err := h.inventory.DeactivateLot(ctx, chi.URLParam(r, "lotID"), requester)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Message: "lot deactivated", Data: buildLotPayload(view)})
}

func (h *InventoryHandlers) availability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeUnavailable(ctx, w, "inventory")
		return
	}
	if _, ok := requireRequester(ctx, w); !ok {
		return
	}

	availability, err := h.inventory.Availability(ctx, chi.URLParam(r, "lotID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, httpx.Response{Data: buildAvailabilityPayload(availability)})
}

func parseBoolParam(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func parseTimeParam(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
