package services

import (
	"context"
	"maps"
	"time"
)

const (
	EventOrderCreated          = "order.created"
	EventOrderStatusChanged    = "order.status_changed"
	EventOrderFinalized        = "order.finalized"
	EventOrderTotalsReconciled = "order.totals_reconciled"
	EventLineItemAdded         = "order.line_item.added"
	EventLineItemUpdated       = "order.line_item.updated"
	EventLineItemRemoved       = "order.line_item.removed"
	EventInventoryLotCreated   = "inventory.lot.created"
	EventInventoryLotUpdated   = "inventory.lot.updated"
	EventInventoryOversold     = "inventory.oversold"
)

// FulfillmentEvent is the payload published for order and inventory changes.
type FulfillmentEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OrderID    string         `json:"orderId,omitempty"`
	LotID      string         `json:"lotId,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// EventPublisher emits fulfillment events to downstream consumers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event FulfillmentEvent) (string, error)
}

type eventEmitter struct {
	publisher EventPublisher
	newID     func() string
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// emit publishes best effort; publish failures are logged and never fail the operation.
func (e eventEmitter) emit(ctx context.Context, event FulfillmentEvent) {
	if e.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = "evt_" + e.newID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.clock()
	}
	if event.Payload != nil {
		event.Payload = maps.Clone(event.Payload)
	}
	if _, err := e.publisher.PublishEvent(ctx, event); err != nil && e.logger != nil {
		e.logger(ctx, "event.publish.failed", map[string]any{
			"eventType": event.Type,
			"orderId":   event.OrderID,
			"lotId":     event.LotID,
			"error":     err.Error(),
		})
	}
}
