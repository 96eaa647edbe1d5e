package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AlanaPvart7/Proyect2/internal/services"
)

type catalogPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitCost    string `json:"unit_cost"`
	Active      bool   `json:"active"`
}

type availabilityPayload struct {
	LotID        string `json:"lot_id"`
	Stock        int    `json:"stock"`
	Reserved     int    `json:"reserved"`
	Available    int    `json:"available"`
	Oversold     int    `json:"oversold,omitempty"`
	Inconsistent bool   `json:"inconsistent,omitempty"`
	Version      int64  `json:"version"`
	ComputedAt   string `json:"computed_at"`
}

type lotPayload struct {
	ID            string              `json:"id"`
	CatalogID     string              `json:"catalog_id"`
	Catalog       *catalogPayload     `json:"catalog,omitempty"`
	Stock         int                 `json:"stock"`
	EntryDate     string              `json:"entry_date"`
	PurchasePrice string              `json:"purchase_price"`
	SalePrice     string              `json:"sale_price"`
	Observation   string              `json:"observation,omitempty"`
	Active        bool                `json:"active"`
	Version       int64               `json:"version"`
	Availability  availabilityPayload `json:"availability"`
	CreatedAt     string              `json:"created_at"`
	UpdatedAt     string              `json:"updated_at"`
}

type totalsPayload struct {
	Subtotal string `json:"subtotal"`
	Taxes    string `json:"taxes"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

type statusRecordPayload struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	StatusID  string `json:"status_id"`
	ActorID   string `json:"actor_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

type orderPayload struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	PaymentMethod string               `json:"payment_method"`
	DeliveryType  string               `json:"delivery_type"`
	Totals        totalsPayload        `json:"totals"`
	TotalsStale   bool                 `json:"totals_stale"`
	Status        *statusRecordPayload `json:"status,omitempty"`
	CreatedAt     string               `json:"created_at"`
	UpdatedAt     string               `json:"updated_at"`
	ReconciledAt  string               `json:"reconciled_at,omitempty"`
}

type orderListPayload struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type lineItemPayload struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	LotID       string `json:"lot_id,omitempty"`
	Quantity    int    `json:"quantity"`
	Note        string `json:"note,omitempty"`
	Active      bool   `json:"active"`
	ProductName string `json:"product_name,omitempty"`
	UnitCost    string `json:"unit_cost,omitempty"`
	LineTotal   string `json:"line_total,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type lineItemResultPayload struct {
	Item  lineItemPayload `json:"item"`
	Order orderPayload    `json:"order"`
}

type transitionPayload struct {
	Record   statusRecordPayload  `json:"record"`
	Previous *statusRecordPayload `json:"previous,omitempty"`
}

type statusDefinitionPayload struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func buildLotPayload(view services.InventoryLotView) lotPayload {
	lot := view.Lot
	payload := lotPayload{
		ID:            lot.ID,
		CatalogID:     lot.CatalogID,
		Stock:         lot.Stock,
		EntryDate:     formatTime(lot.EntryDate),
		PurchasePrice: lot.PurchasePrice.StringFixed(2),
		SalePrice:     lot.SalePrice.StringFixed(2),
		Observation:   lot.Observation,
		Active:        lot.Active,
		Version:       lot.Version,
		Availability:  buildAvailabilityPayload(view.Availability),
		CreatedAt:     formatTime(lot.CreatedAt),
		UpdatedAt:     formatTime(lot.UpdatedAt),
	}
	if view.Catalog != nil {
		payload.Catalog = &catalogPayload{
			ID:          view.Catalog.ID,
			Name:        view.Catalog.Name,
			Description: view.Catalog.Description,
			UnitCost:    view.Catalog.UnitCost.StringFixed(2),
			Active:      view.Catalog.Active,
		}
	}
	return payload
}

func buildAvailabilityPayload(a services.Availability) availabilityPayload {
	return availabilityPayload{
		LotID:        a.LotID,
		Stock:        a.Stock,
		Reserved:     a.Reserved,
		Available:    a.Available,
		Oversold:     a.Oversold,
		Inconsistent: a.Inconsistent,
		Version:      a.Version,
		ComputedAt:   formatTime(a.ComputedAt),
	}
}

func buildTotalsPayload(t services.OrderTotals) totalsPayload {
	return totalsPayload{
		Subtotal: t.Subtotal.StringFixed(2),
		Taxes:    t.Taxes.StringFixed(2),
		Discount: t.Discount.StringFixed(2),
		Total:    t.Total.StringFixed(2),
	}
}

func buildOrderPayload(order services.Order, current *services.OrderStatusRecord) orderPayload {
	payload := orderPayload{
		ID:            order.ID,
		UserID:        order.UserID,
		PaymentMethod: order.PaymentMethod,
		DeliveryType:  order.DeliveryType,
		Totals:        buildTotalsPayload(order.Totals),
		TotalsStale:   order.TotalsStale(),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
	if current != nil {
		record := buildStatusRecordPayload(*current)
		payload.Status = &record
	}
	if order.ReconciledAt != nil {
		payload.ReconciledAt = formatTime(*order.ReconciledAt)
	}
	return payload
}

func buildOrderViewPayload(view services.OrderView) orderPayload {
	return buildOrderPayload(view.Order, view.CurrentStatus)
}

func buildLineItemPayload(item services.OrderLineItem) lineItemPayload {
	return lineItemPayload{
		ID:        item.ID,
		OrderID:   item.OrderID,
		ProductID: item.ProductID,
		LotID:     item.LotID,
		Quantity:  item.Quantity,
		Note:      item.Note,
		Active:    item.Active,
		CreatedAt: formatTime(item.CreatedAt),
		UpdatedAt: formatTime(item.UpdatedAt),
	}
}

func buildLineItemViewPayload(view services.LineItemView) lineItemPayload {
	payload := buildLineItemPayload(view.Item)
	if view.Resolved {
		payload.ProductName = view.ProductName
		payload.UnitCost = view.UnitCost.StringFixed(2)
	}
	payload.LineTotal = view.LineTotal.StringFixed(2)
	return payload
}

func buildStatusRecordPayload(record services.OrderStatusRecord) statusRecordPayload {
	return statusRecordPayload{
		ID:        record.ID,
		OrderID:   record.OrderID,
		StatusID:  record.StatusID,
		ActorID:   record.ActorID,
		Timestamp: formatTime(record.Timestamp),
	}
}

func buildTransitionPayload(result services.TransitionResult) transitionPayload {
	payload := transitionPayload{Record: buildStatusRecordPayload(result.Record)}
	if result.Previous != nil {
		previous := buildStatusRecordPayload(*result.Previous)
		payload.Previous = &previous
	}
	return payload
}

func buildStatusDefinitionPayload(def services.StatusDefinition) statusDefinitionPayload {
	return statusDefinitionPayload{
		ID:          def.ID,
		Description: def.Description,
		Active:      def.Active,
		CreatedAt:   formatTime(def.CreatedAt),
		UpdatedAt:   formatTime(def.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
